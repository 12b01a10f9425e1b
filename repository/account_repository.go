package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/Shiten/models"
	"github.com/amirphl/Shiten/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccountRepositoryImpl implements AccountRepository interface
type AccountRepositoryImpl struct {
	*BaseRepository[models.Account, models.AccountFilter]
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &AccountRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Account, models.AccountFilter](db, applyAccountFilter),
	}
}

func applyAccountFilter(db *gorm.DB, filter models.AccountFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.CompanyID != nil {
		db = db.Where("company_id = ?", *filter.CompanyID)
	}
	return db
}

// UpdatePasswordHash replaces the stored password hash
func (r *AccountRepositoryImpl) UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) (bool, error) {
	var affected int64
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.Account{}).Where("id = ?", id).
			Updates(map[string]any{"password_hash": passwordHash, "updated_at": utils.UTCNow()})
		if res.Error != nil {
			return fmt.Errorf("failed to update password hash: %w", res.Error)
		}
		affected = res.RowsAffected
		return nil
	})
	return affected > 0, err
}
