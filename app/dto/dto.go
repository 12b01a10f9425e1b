// Package dto contains Data Transfer Objects for API request and response structures
package dto

// APIResponse represents the standard API response structure. Failures set Error and, for
// form-originated problems, IsFormError so clients can attach the message to the form.
type APIResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	Data        any    `json:"data,omitempty"`
	Error       string `json:"error,omitempty"`
	IsFormError bool   `json:"isFormError,omitempty"`
	Code        string `json:"code,omitempty"`
	Details     any    `json:"details,omitempty"`
}

// IDQuery binds the ?id= parameter used by detail and admin endpoints
type IDQuery struct {
	ID string `query:"id" validate:"required,uuid"`
}
