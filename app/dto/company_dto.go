package dto

import "time"

// AddCompanyDetailsRequest fills in the descriptive company fields
type AddCompanyDetailsRequest struct {
	Mission     string `json:"mission" form:"mission" validate:"required,min=5,max=350"`
	Vision      string `json:"vision" form:"vision" validate:"required,min=5,max=350"`
	Description string `json:"description" form:"description" validate:"required,min=5,max=350"`
}

// UpdateCompanyRequest changes any subset of company fields
type UpdateCompanyRequest struct {
	BusinessName *string `json:"businessName,omitempty" form:"businessName" validate:"omitempty,min=3,max=30"`
	Email        *string `json:"email,omitempty" form:"email" validate:"omitempty,email,max=255"`
	Mission      *string `json:"mission,omitempty" form:"mission" validate:"omitempty,min=5,max=350"`
	Vision       *string `json:"vision,omitempty" form:"vision" validate:"omitempty,min=5,max=350"`
	Description  *string `json:"description,omitempty" form:"description" validate:"omitempty,min=5,max=350"`
}

// CompanyDTO is the public view of a company
type CompanyDTO struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	BusinessName string     `json:"businessName"`
	Mission      *string    `json:"mission,omitempty"`
	Vision       *string    `json:"vision,omitempty"`
	Description  *string    `json:"description,omitempty"`
	Status       bool       `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
}
