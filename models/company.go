// Package models contains domain entities for companies, their branches and the sessions branches hold
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Company is the tenant root. It owns accounts and branches.
type Company struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string     `gorm:"size:255;not null;uniqueIndex:uk_companies_email" json:"email"`
	BusinessName string     `gorm:"size:255;not null" json:"business_name"`
	Mission      *string    `gorm:"type:text" json:"mission,omitempty"`
	Vision       *string    `gorm:"type:text" json:"vision,omitempty"`
	Description  *string    `gorm:"type:text" json:"description,omitempty"`
	Status       *bool      `gorm:"not null;default:true" json:"status"`
	CreatedAt    time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`

	Accounts []Account `gorm:"foreignKey:CompanyID" json:"-"`
	Branches []Branch  `gorm:"foreignKey:CompanyID" json:"-"`
}

func (Company) TableName() string {
	return "companies"
}

func (c *Company) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// IsActive reports whether branches of the company may log in.
func (c *Company) IsActive() bool {
	return c.Status == nil || *c.Status
}

// CompanyFilter represents filter criteria for company queries
type CompanyFilter struct {
	ID            *uuid.UUID
	Email         *string
	Status        *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// CompanyUpdate carries the optional columns an administrator may change.
type CompanyUpdate struct {
	Email        *string
	BusinessName *string
	Mission      *string
	Vision       *string
	Description  *string
}

// IsEmpty reports whether no column would change.
func (u CompanyUpdate) IsEmpty() bool {
	return u.Email == nil && u.BusinessName == nil && u.Mission == nil && u.Vision == nil && u.Description == nil
}
