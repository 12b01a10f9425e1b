package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BranchKind is the role of a branch inside its company.
type BranchKind string

const (
	// BranchKindMain administers the company and its sibling branches.
	BranchKindMain BranchKind = "main"
	// BranchKindSub is an ordinary branch.
	BranchKindSub BranchKind = "branch"
)

func (k BranchKind) IsValid() bool {
	return k == BranchKindMain || k == BranchKindSub
}

// Satisfies reports whether a branch of kind k holds the privileges of required.
// Main holds every privilege, sub only its own.
func (k BranchKind) Satisfies(required BranchKind) bool {
	switch required {
	case BranchKindMain:
		return k == BranchKindMain
	case BranchKindSub:
		return k.IsValid()
	default:
		return false
	}
}

func (k BranchKind) String() string {
	return string(k)
}

// Branch is an authenticable identity belonging to a company.
type Branch struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Username  string     `gorm:"size:20;not null;uniqueIndex:uk_branches_username" json:"username"`
	Name      string     `gorm:"size:255;not null" json:"name"`
	Kind      BranchKind `gorm:"column:type;type:branch_kind;not null;default:branch" json:"type"`
	Status    *bool      `gorm:"not null;default:true" json:"status"`
	AccountID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_branches_account_id" json:"account_id"`
	Account   *Account   `gorm:"foreignKey:AccountID;references:ID" json:"-"`
	CompanyID uuid.UUID  `gorm:"type:uuid;not null;index:idx_branches_company_id" json:"company_id"`
	Company   *Company   `gorm:"foreignKey:CompanyID;references:ID" json:"-"`
	CreatedAt time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

func (Branch) TableName() string {
	return "branches"
}

func (b *Branch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

func (b *Branch) IsActive() bool {
	return b.Status == nil || *b.Status
}

func (b *Branch) IsMain() bool {
	return b.Kind == BranchKindMain
}

// BranchFilter represents filter criteria for branch queries
type BranchFilter struct {
	ID        *uuid.UUID
	Username  *string
	Kind      *BranchKind
	Status    *bool
	AccountID *uuid.UUID
	CompanyID *uuid.UUID
}

// BranchUpdate carries the optional columns an administrator may change.
type BranchUpdate struct {
	Name     *string
	Username *string
}

func (u BranchUpdate) IsEmpty() bool {
	return u.Name == nil && u.Username == nil
}
