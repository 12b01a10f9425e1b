package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/amirphl/Shiten/app/dto"
	"github.com/amirphl/Shiten/app/services"
	"github.com/amirphl/Shiten/models"
	"github.com/amirphl/Shiten/repository"
)

// LoginFlow handles branch authentication and the session-bound account endpoints
type LoginFlow interface {
	Login(ctx context.Context, request *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error)
	SignOut(ctx context.Context, identity *Identity, metadata *ClientMetadata) error
	Me(ctx context.Context, identity *Identity) (*dto.BranchDTO, error)
}

// LoginFlowImpl implements the login business flow
type LoginFlowImpl struct {
	branchRepo      repository.BranchRepository
	companyRepo     repository.CompanyRepository
	accountRepo     repository.AccountRepository
	auditRepo       repository.AuditLogRepository
	passwordService services.PasswordService
	throttle        services.LoginThrottle
	sessions        SessionFlow

	dummyOnce sync.Once
	dummyHash string
}

// NewLoginFlow creates a new login flow instance
func NewLoginFlow(
	branchRepo repository.BranchRepository,
	companyRepo repository.CompanyRepository,
	accountRepo repository.AccountRepository,
	auditRepo repository.AuditLogRepository,
	passwordService services.PasswordService,
	throttle services.LoginThrottle,
	sessions SessionFlow,
) LoginFlow {
	if throttle == nil {
		throttle = services.NewLoginThrottle(nil, "", 0, 0)
	}
	return &LoginFlowImpl{
		branchRepo:      branchRepo,
		companyRepo:     companyRepo,
		accountRepo:     accountRepo,
		auditRepo:       auditRepo,
		passwordService: passwordService,
		throttle:        throttle,
		sessions:        sessions,
	}
}

// Login authenticates a branch by username and password. Every credential failure yields ErrIncorrectCredentials.
func (lf *LoginFlowImpl) Login(ctx context.Context, request *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error) {
	ip := metadata.clientIP()
	if err := lf.throttle.Check(ctx, request.Username, ip); err != nil {
		if errors.Is(err, services.ErrLoginThrottled) {
			recordAudit(ctx, lf.auditRepo, metadata, auditEntry{
				action:      models.AuditActionLoginFailed,
				description: fmt.Sprintf("Login throttled for username %s", request.Username),
				err:         err,
			})
			return nil, NewBusinessError("LOGIN_THROTTLED", "Login failed", ErrTooManyLoginAttempts)
		}
		log.Printf("login throttle check skipped: %v", err)
	}

	branch, err := lf.authenticate(ctx, request)
	var rejected *credentialRejection
	if errors.As(err, &rejected) {
		if err := lf.throttle.RecordFailure(ctx, request.Username, ip); err != nil {
			log.Printf("login throttle record skipped: %v", err)
		}
		entry := auditEntry{
			action:      models.AuditActionLoginFailed,
			description: fmt.Sprintf("Login failed for username %s", request.Username),
			err:         rejected,
		}
		if branch != nil {
			entry.branchID = &branch.ID
			entry.companyID = &branch.CompanyID
		}
		recordAudit(ctx, lf.auditRepo, metadata, entry)
		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", ErrIncorrectCredentials)
	}
	if err != nil {
		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", err)
	}

	session, err := lf.sessions.Issue(ctx, branch, metadata)
	if err != nil {
		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", err)
	}

	if err := lf.throttle.Reset(ctx, request.Username, ip); err != nil {
		log.Printf("login throttle reset skipped: %v", err)
	}

	recordAudit(ctx, lf.auditRepo, metadata, auditEntry{
		action:      models.AuditActionLoginSuccess,
		branchID:    &branch.ID,
		companyID:   &branch.CompanyID,
		description: fmt.Sprintf("Branch %s logged in", branch.Username),
	})

	return &dto.LoginResponse{
		Branch:    ToBranchDTO(*branch),
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// credentialRejection records why a login was refused. It is audited but never shown to the client.
type credentialRejection struct {
	reason string
}

func (r *credentialRejection) Error() string {
	return r.reason
}

func reject(reason string) error {
	return &credentialRejection{reason: reason}
}

// authenticate walks the credential chain. Rejections come back as *credentialRejection, storage failures as is.
func (lf *LoginFlowImpl) authenticate(ctx context.Context, request *dto.LoginRequest) (*models.Branch, error) {
	branch, err := lf.branchRepo.ByUsername(ctx, request.Username)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		// Spend the same bcrypt time an existing username would
		lf.passwordService.Verify(request.Password, lf.dummyDigest())
		return nil, reject("unknown username")
	}

	if !branch.IsActive() {
		lf.passwordService.Verify(request.Password, lf.dummyDigest())
		return branch, reject("branch is deactivated")
	}

	company, err := lf.companyRepo.ByID(ctx, branch.CompanyID)
	if err != nil {
		return nil, err
	}
	if company == nil || !company.IsActive() {
		lf.passwordService.Verify(request.Password, lf.dummyDigest())
		return branch, reject("company is missing or deactivated")
	}

	account, err := lf.accountRepo.ByID(ctx, branch.AccountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		lf.passwordService.Verify(request.Password, lf.dummyDigest())
		return branch, reject("account not found")
	}

	if !lf.passwordService.Verify(request.Password, account.PasswordHash) {
		return branch, reject("password mismatch")
	}

	return branch, nil
}

func (lf *LoginFlowImpl) dummyDigest() string {
	lf.dummyOnce.Do(func() {
		hash, err := lf.passwordService.Hash("shiten-timing-equalizer")
		if err != nil {
			log.Printf("failed to prepare dummy password digest: %v", err)
			return
		}
		lf.dummyHash = hash
	})
	return lf.dummyHash
}

// SignOut deletes the caller's session
func (lf *LoginFlowImpl) SignOut(ctx context.Context, identity *Identity, metadata *ClientMetadata) error {
	if identity == nil || identity.Branch == nil {
		return ErrIdentityRequired
	}

	if err := lf.sessions.Revoke(ctx, identity); err != nil {
		return NewBusinessError("SIGN_OUT_FAILED", "Sign out failed", err)
	}

	recordAudit(ctx, lf.auditRepo, metadata, auditEntry{
		action:      models.AuditActionLogout,
		branchID:    &identity.Branch.ID,
		companyID:   &identity.Branch.CompanyID,
		description: fmt.Sprintf("Branch %s signed out", identity.Branch.Username),
	})
	return nil
}

// Me returns the branch behind the current session
func (lf *LoginFlowImpl) Me(ctx context.Context, identity *Identity) (*dto.BranchDTO, error) {
	if identity == nil || identity.Branch == nil {
		return nil, ErrIdentityRequired
	}
	result := ToBranchDTO(*identity.Branch)
	return &result, nil
}
