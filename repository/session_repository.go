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
	"gorm.io/gorm/clause"
)

// SessionRepositoryImpl implements SessionRepository interface
type SessionRepositoryImpl struct {
	*BaseRepository[models.Session, struct{}]
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &SessionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Session, struct{}](db, func(db *gorm.DB, _ struct{}) *gorm.DB { return db }),
	}
}

// ByToken retrieves a session by token regardless of expiry. Expiry is the caller's decision.
func (r *SessionRepositoryImpl) ByToken(ctx context.Context, token string) (*models.Session, error) {
	var session models.Session
	err := r.getDB(ctx).Where("token = ?", token).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find session by token: %w", err)
	}
	return &session, nil
}

// ByBranchID retrieves the session held by a branch
func (r *SessionRepositoryImpl) ByBranchID(ctx context.Context, branchID uuid.UUID) (*models.Session, error) {
	var session models.Session
	err := r.getDB(ctx).Where("branch_id = ?", branchID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find session by branch: %w", err)
	}
	return &session, nil
}

// Upsert inserts session or overwrites the row already owned by the same branch
func (r *SessionRepositoryImpl) Upsert(ctx context.Context, session *models.Session) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	now := utils.UTCNow()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	return r.write(ctx, func(db *gorm.DB) error {
		err := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "branch_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"id", "token", "expires_at", "ip_address", "user_agent", "created_at", "updated_at",
			}),
		}).Create(session).Error
		if err != nil {
			return fmt.Errorf("failed to upsert session: %w", translateError(err))
		}
		return nil
	})
}

// Rotate is a compare-and-swap on the token column
func (r *SessionRepositoryImpl) Rotate(ctx context.Context, id uuid.UUID, currentToken, newToken string, expiresAt time.Time) (bool, error) {
	var affected int64
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.Session{}).
			Where("id = ? AND token = ?", id, currentToken).
			Updates(map[string]any{
				"token":      newToken,
				"expires_at": expiresAt,
				"updated_at": utils.UTCNow(),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to rotate session: %w", translateError(res.Error))
		}
		affected = res.RowsAffected
		return nil
	})
	return affected == 1, err
}

// DeleteByID deletes a session row
func (r *SessionRepositoryImpl) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return r.write(ctx, func(db *gorm.DB) error {
		if err := db.Where("id = ?", id).Delete(&models.Session{}).Error; err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		return nil
	})
}

// DeleteByBranchID deletes the session held by a branch, if any
func (r *SessionRepositoryImpl) DeleteByBranchID(ctx context.Context, branchID uuid.UUID) error {
	return r.write(ctx, func(db *gorm.DB) error {
		if err := db.Where("branch_id = ?", branchID).Delete(&models.Session{}).Error; err != nil {
			return fmt.Errorf("failed to delete branch session: %w", err)
		}
		return nil
	})
}

// DeleteExpired removes every session whose expiry is not after now
func (r *SessionRepositoryImpl) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var affected int64
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Where("expires_at <= ?", now).Delete(&models.Session{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete expired sessions: %w", res.Error)
		}
		affected = res.RowsAffected
		return nil
	})
	return affected, err
}
