package dto

import "time"

// RegisterRequest creates a company together with its main branch
type RegisterRequest struct {
	Name         string `json:"name" form:"name" validate:"required,min=3,max=30" example:"Head Office"`
	BusinessName string `json:"businessName" form:"businessName" validate:"required,min=3,max=30" example:"Acme"`
	Email        string `json:"email" form:"email" validate:"required,email,max=255" example:"owner@acme.io"`
	Username     string `json:"username" form:"username" validate:"required,username_format" example:"acme01"`
	Password     string `json:"password" form:"password" validate:"required,min=8,max=15,password_strength" example:"Secret123"`
}

// LoginRequest carries plain credentials. They are not shape-validated so every mismatch looks the same.
type LoginRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

// BranchDTO is the public view of a branch
type BranchDTO struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Name      string     `json:"name"`
	Kind      string     `json:"kind"`
	Status    bool       `json:"status"`
	AccountID string     `json:"accountId"`
	CompanyID string     `json:"companyId"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// LoginResponse is what a successful login yields. The token travels in the cookie, never in the body.
type LoginResponse struct {
	Branch    BranchDTO
	Token     string
	ExpiresAt time.Time
}
