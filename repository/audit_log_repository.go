package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/Shiten/models"
	"gorm.io/gorm"
)

// AuditLogRepositoryImpl implements AuditLogRepository interface
type AuditLogRepositoryImpl struct {
	*BaseRepository[models.AuditLog, models.AuditLogFilter]
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &AuditLogRepositoryImpl{
		BaseRepository: NewBaseRepository[models.AuditLog, models.AuditLogFilter](db, applyAuditLogFilter),
	}
}

func applyAuditLogFilter(db *gorm.DB, filter models.AuditLogFilter) *gorm.DB {
	if filter.BranchID != nil {
		db = db.Where("branch_id = ?", *filter.BranchID)
	}
	if filter.CompanyID != nil {
		db = db.Where("company_id = ?", *filter.CompanyID)
	}
	if filter.Action != nil {
		db = db.Where("action = ?", *filter.Action)
	}
	if filter.Success != nil {
		db = db.Where("success = ?", *filter.Success)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at < ?", *filter.CreatedBefore)
	}
	return db
}

// Save appends an audit entry. It joins the caller's transaction when there is one.
func (r *AuditLogRepositoryImpl) Save(ctx context.Context, entry *models.AuditLog) error {
	if err := r.getDB(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to save audit log: %w", err)
	}
	return nil
}
