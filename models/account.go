package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account holds the credential of exactly one branch.
type Account struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"` // Never serialize password hash
	CompanyID    uuid.UUID `gorm:"type:uuid;not null;index:idx_accounts_company_id" json:"company_id"`
	Company      *Company  `gorm:"foreignKey:CompanyID;references:ID" json:"-"`
	CreatedAt    time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// AccountFilter represents filter criteria for account queries
type AccountFilter struct {
	ID        *uuid.UUID
	CompanyID *uuid.UUID
}
