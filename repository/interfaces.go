// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/Shiten/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uuid.UUID) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// CompanyRepository defines operations for companies
type CompanyRepository interface {
	Repository[models.Company, models.CompanyFilter]
	ByEmail(ctx context.Context, email string) (*models.Company, error)
	Update(ctx context.Context, id uuid.UUID, update models.CompanyUpdate) (bool, error)
	SetStatus(ctx context.Context, id uuid.UUID, active bool) (bool, error)
}

// AccountRepository defines operations for accounts
type AccountRepository interface {
	Repository[models.Account, models.AccountFilter]
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) (bool, error)
}

// BranchRepository defines operations for branches. Mutations are scoped to a company.
type BranchRepository interface {
	Repository[models.Branch, models.BranchFilter]
	ByUsername(ctx context.Context, username string) (*models.Branch, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.Branch, error)
	Update(ctx context.Context, id, companyID uuid.UUID, update models.BranchUpdate) (bool, error)
	SetStatus(ctx context.Context, id, companyID uuid.UUID, active bool, at time.Time) (bool, error)
}

// SessionRepository defines operations for sessions
type SessionRepository interface {
	ByToken(ctx context.Context, token string) (*models.Session, error)
	ByBranchID(ctx context.Context, branchID uuid.UUID) (*models.Session, error)
	// Upsert stores session, replacing whatever session the branch already had.
	Upsert(ctx context.Context, session *models.Session) error
	// Rotate swaps the token only while it still equals currentToken. It reports false when another request rotated first.
	Rotate(ctx context.Context, id uuid.UUID, currentToken, newToken string, expiresAt time.Time) (bool, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
	DeleteByBranchID(ctx context.Context, branchID uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Save(ctx context.Context, entry *models.AuditLog) error
	ByFilter(ctx context.Context, filter models.AuditLogFilter, orderBy string, limit, offset int) ([]*models.AuditLog, error)
}
