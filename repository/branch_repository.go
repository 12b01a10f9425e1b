package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/Shiten/models"
	"github.com/amirphl/Shiten/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BranchRepositoryImpl implements BranchRepository interface
type BranchRepositoryImpl struct {
	*BaseRepository[models.Branch, models.BranchFilter]
}

// NewBranchRepository creates a new branch repository
func NewBranchRepository(db *gorm.DB) BranchRepository {
	return &BranchRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Branch, models.BranchFilter](db, applyBranchFilter),
	}
}

func applyBranchFilter(db *gorm.DB, filter models.BranchFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.Username != nil {
		db = db.Where("username = ?", *filter.Username)
	}
	if filter.Kind != nil {
		db = db.Where("type = ?", string(*filter.Kind))
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.AccountID != nil {
		db = db.Where("account_id = ?", *filter.AccountID)
	}
	if filter.CompanyID != nil {
		db = db.Where("company_id = ?", *filter.CompanyID)
	}
	return db
}

// ByUsername retrieves a branch by its globally unique username
func (r *BranchRepositoryImpl) ByUsername(ctx context.Context, username string) (*models.Branch, error) {
	var branch models.Branch
	err := r.getDB(ctx).Where("username = ?", username).First(&branch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find branch by username: %w", err)
	}
	return &branch, nil
}

// ListByCompany lists every branch of a company, main branch first
func (r *BranchRepositoryImpl) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.Branch, error) {
	var branches []*models.Branch
	err := r.getDB(ctx).
		Where("company_id = ?", companyID).
		Order("CASE WHEN type = 'main' THEN 0 ELSE 1 END, created_at ASC").
		Find(&branches).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list branches by company: %w", err)
	}
	return branches, nil
}

// Update renames a branch inside companyID
func (r *BranchRepositoryImpl) Update(ctx context.Context, id, companyID uuid.UUID, update models.BranchUpdate) (bool, error) {
	values := map[string]any{"updated_at": utils.UTCNow()}
	if update.Name != nil {
		values["name"] = *update.Name
	}
	if update.Username != nil {
		values["username"] = *update.Username
	}

	var affected int64
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.Branch{}).
			Where("id = ? AND company_id = ?", id, companyID).
			Updates(values)
		if res.Error != nil {
			return fmt.Errorf("failed to update branch: %w", translateError(res.Error))
		}
		affected = res.RowsAffected
		return nil
	})
	return affected > 0, err
}

// SetStatus activates or deactivates a branch inside companyID. Deactivation stamps deleted_at with at.
func (r *BranchRepositoryImpl) SetStatus(ctx context.Context, id, companyID uuid.UUID, active bool, at time.Time) (bool, error) {
	values := map[string]any{"status": active, "updated_at": at}
	if active {
		values["deleted_at"] = nil
	} else {
		values["deleted_at"] = at
	}

	var affected int64
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.Branch{}).
			Where("id = ? AND company_id = ?", id, companyID).
			Updates(values)
		if res.Error != nil {
			return fmt.Errorf("failed to set branch status: %w", res.Error)
		}
		affected = res.RowsAffected
		return nil
	})
	return affected > 0, err
}
