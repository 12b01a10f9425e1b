package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/Shiten/models"
	"github.com/amirphl/Shiten/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CompanyRepositoryImpl implements CompanyRepository interface
type CompanyRepositoryImpl struct {
	*BaseRepository[models.Company, models.CompanyFilter]
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db *gorm.DB) CompanyRepository {
	return &CompanyRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Company, models.CompanyFilter](db, applyCompanyFilter),
	}
}

func applyCompanyFilter(db *gorm.DB, filter models.CompanyFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.Email != nil {
		db = db.Where("email = ?", *filter.Email)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at < ?", *filter.CreatedBefore)
	}
	return db
}

// ByEmail retrieves a company by email
func (r *CompanyRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.Company, error) {
	var company models.Company
	err := r.getDB(ctx).Where("email = ?", email).First(&company).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find company by email: %w", err)
	}
	return &company, nil
}

// Update writes the non-nil fields of update
func (r *CompanyRepositoryImpl) Update(ctx context.Context, id uuid.UUID, update models.CompanyUpdate) (bool, error) {
	values := map[string]any{"updated_at": utils.UTCNow()}
	if update.Email != nil {
		values["email"] = *update.Email
	}
	if update.BusinessName != nil {
		values["business_name"] = *update.BusinessName
	}
	if update.Mission != nil {
		values["mission"] = *update.Mission
	}
	if update.Vision != nil {
		values["vision"] = *update.Vision
	}
	if update.Description != nil {
		values["description"] = *update.Description
	}

	var affected int64
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.Company{}).Where("id = ?", id).Updates(values)
		if res.Error != nil {
			return fmt.Errorf("failed to update company: %w", translateError(res.Error))
		}
		affected = res.RowsAffected
		return nil
	})
	return affected > 0, err
}

// SetStatus toggles the company status flag
func (r *CompanyRepositoryImpl) SetStatus(ctx context.Context, id uuid.UUID, active bool) (bool, error) {
	var affected int64
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.Company{}).Where("id = ?", id).
			Updates(map[string]any{"status": active, "updated_at": utils.UTCNow()})
		if res.Error != nil {
			return fmt.Errorf("failed to set company status: %w", res.Error)
		}
		affected = res.RowsAffected
		return nil
	})
	return affected > 0, err
}
