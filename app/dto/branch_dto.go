package dto

// CreateBranchRequest adds a sub-branch to the caller's company
type CreateBranchRequest struct {
	Name     string `json:"name" form:"name" validate:"required,min=3,max=30" example:"Downtown"`
	Username string `json:"username" form:"username" validate:"required,username_format" example:"acmedowntown"`
	Password string `json:"password" form:"password" validate:"required,min=8,max=15,password_strength" example:"Secret123"`
}

// UpdateBranchRequest renames a branch. Omitted fields are left as they are.
type UpdateBranchRequest struct {
	Name     *string `json:"name,omitempty" form:"name" validate:"omitempty,min=3,max=30"`
	Username *string `json:"username,omitempty" form:"username" validate:"omitempty,username_format"`
}

// UpdatePasswordRequest replaces the password of a branch's account
type UpdatePasswordRequest struct {
	Password string `json:"password" form:"password" validate:"required,min=8,max=15,password_strength" example:"Secret456"`
}
