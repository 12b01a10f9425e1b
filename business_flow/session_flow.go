package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/Shiten/app/services"
	"github.com/amirphl/Shiten/models"
	"github.com/amirphl/Shiten/repository"
	"github.com/amirphl/Shiten/utils"
	"github.com/google/uuid"
)

// SessionFlow owns the session lifecycle: issue at login, resolve and rotate on every
// authenticated request, revoke at sign-out and purge once expired.
type SessionFlow interface {
	Issue(ctx context.Context, branch *models.Branch, metadata *ClientMetadata) (*models.Session, error)
	// Resolve checks token and, when it is valid, rotates it. The returned identity carries the new token.
	Resolve(ctx context.Context, token string, metadata *ClientMetadata) (*Identity, error)
	Revoke(ctx context.Context, identity *Identity) error
	PurgeExpired(ctx context.Context) (int64, error)
	TTL() time.Duration
}

// SessionFlowImpl implements SessionFlow on top of the session and branch stores
type SessionFlowImpl struct {
	sessionRepo  repository.SessionRepository
	branchRepo   repository.BranchRepository
	auditRepo    repository.AuditLogRepository
	tokenService services.SessionTokenService
	ttl          time.Duration
	now          utils.Clock
}

// NewSessionFlow creates a new session manager. A non-positive ttl falls back to one day and a nil clock to UTCNow.
func NewSessionFlow(
	sessionRepo repository.SessionRepository,
	branchRepo repository.BranchRepository,
	auditRepo repository.AuditLogRepository,
	tokenService services.SessionTokenService,
	ttl time.Duration,
	now utils.Clock,
) SessionFlow {
	if ttl <= 0 {
		ttl = utils.DefaultSessionTTL
	}
	if now == nil {
		now = utils.UTCNow
	}
	return &SessionFlowImpl{
		sessionRepo:  sessionRepo,
		branchRepo:   branchRepo,
		auditRepo:    auditRepo,
		tokenService: tokenService,
		ttl:          ttl,
		now:          now,
	}
}

func (sf *SessionFlowImpl) TTL() time.Duration {
	return sf.ttl
}

// Issue creates the branch's session, replacing any session it already held
func (sf *SessionFlowImpl) Issue(ctx context.Context, branch *models.Branch, metadata *ClientMetadata) (*models.Session, error) {
	token, err := sf.tokenService.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := sf.now()
	session := &models.Session{
		ID:        uuid.New(),
		Token:     token,
		BranchID:  branch.ID,
		ExpiresAt: now.Add(sf.ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if metadata != nil {
		session.IPAddress = utils.NonEmptyPtr(metadata.IPAddress)
		session.UserAgent = utils.NonEmptyPtr(metadata.UserAgent)
	}

	if err := sf.sessionRepo.Upsert(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return session, nil
}

// Resolve evaluates the checks in order and stops at the first failure
func (sf *SessionFlowImpl) Resolve(ctx context.Context, token string, metadata *ClientMetadata) (*Identity, error) {
	if token == "" {
		return nil, ErrNoSessionPresented
	}

	session, err := sf.sessionRepo.ByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	branch, err := sf.branchRepo.ByID(ctx, session.BranchID)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		if err := sf.sessionRepo.DeleteByID(ctx, session.ID); err != nil {
			return nil, err
		}
		return nil, ErrSessionAccountNotFound
	}

	now := sf.now()
	if session.IsExpiredAt(now) {
		if err := sf.sessionRepo.DeleteByID(ctx, session.ID); err != nil {
			return nil, err
		}
		recordAudit(ctx, sf.auditRepo, metadata, auditEntry{
			action:      models.AuditActionSessionExpired,
			branchID:    &branch.ID,
			companyID:   &branch.CompanyID,
			description: "Session expired",
		})
		return nil, ErrSessionExpired
	}

	newToken, err := sf.tokenService.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}
	expiresAt := now.Add(sf.ttl)

	rotated, err := sf.sessionRepo.Rotate(ctx, session.ID, token, newToken, expiresAt)
	if err != nil {
		return nil, err
	}
	if !rotated {
		return nil, ErrSessionRotated
	}

	session.Token = newToken
	session.ExpiresAt = expiresAt
	session.UpdatedAt = now

	return &Identity{Branch: branch, Session: session}, nil
}

// Revoke deletes the identity's session. Revoking an already deleted session is not an error.
func (sf *SessionFlowImpl) Revoke(ctx context.Context, identity *Identity) error {
	if identity == nil || identity.Session == nil {
		return nil
	}
	return sf.sessionRepo.DeleteByID(ctx, identity.Session.ID)
}

// PurgeExpired deletes every session that expired before now
func (sf *SessionFlowImpl) PurgeExpired(ctx context.Context) (int64, error) {
	return sf.sessionRepo.DeleteExpired(ctx, sf.now())
}
