package models

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	BranchID     *uuid.UUID `gorm:"type:uuid;index:idx_audit_branch_id" json:"branch_id,omitempty"`
	CompanyID    *uuid.UUID `gorm:"type:uuid;index:idx_audit_company_id" json:"company_id,omitempty"`
	Action       string     `gorm:"size:64;not null;index:idx_audit_action" json:"action"`
	Description  *string    `gorm:"type:text" json:"description,omitempty"`
	IPAddress    *string    `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent    *string    `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID    *string    `gorm:"size:255;index:idx_audit_request_id" json:"request_id,omitempty"`
	Success      *bool      `gorm:"not null;default:true" json:"success"`
	ErrorMessage *string    `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time  `gorm:"default:CURRENT_TIMESTAMP;index:idx_audit_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}

// Audit action constants
const (
	AuditActionRegistered         = "registered"
	AuditActionLoginSuccess       = "login_success"
	AuditActionLoginFailed        = "login_failed"
	AuditActionLogout             = "logout"
	AuditActionSessionExpired     = "session_expired"
	AuditActionBranchCreated      = "branch_created"
	AuditActionBranchUpdated      = "branch_updated"
	AuditActionPasswordChanged    = "password_changed"
	AuditActionBranchActivated    = "branch_activated"
	AuditActionBranchDeactivated  = "branch_deactivated"
	AuditActionCompanyUpdated     = "company_updated"
	AuditActionCompanyActivated   = "company_activated"
	AuditActionCompanyDeactivated = "company_deactivated"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	BranchID      *uuid.UUID
	CompanyID     *uuid.UUID
	Action        *string
	Success       *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
