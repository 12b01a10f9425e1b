package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session proves that a branch is authenticated. Its token rotates on every authenticated request.
type Session struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Token     string    `gorm:"size:255;not null;uniqueIndex:uk_sessions_token" json:"-"` // Never serialize token
	BranchID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_sessions_branch_id" json:"branch_id"`
	Branch    *Branch   `gorm:"foreignKey:BranchID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
	ExpiresAt time.Time `gorm:"not null;index:idx_sessions_expires_at" json:"expires_at"`
	IPAddress *string   `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent *string   `gorm:"type:text" json:"user_agent,omitempty"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Session) TableName() string {
	return "sessions"
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// IsExpiredAt reports whether the session is no longer usable at now. The boundary instant counts as expired.
func (s *Session) IsExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
