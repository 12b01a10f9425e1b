package businessflow

import (
	"context"
	"fmt"

	"github.com/amirphl/Shiten/app/dto"
	"github.com/amirphl/Shiten/app/services"
	"github.com/amirphl/Shiten/models"
	"github.com/amirphl/Shiten/repository"
	"github.com/amirphl/Shiten/utils"
	"github.com/google/uuid"
)

// BranchFlow handles branch management. Mutations require the caller to be the main branch and
// only ever touch branches of the caller's own company.
type BranchFlow interface {
	CreateBranch(ctx context.Context, identity *Identity, req *dto.CreateBranchRequest, metadata *ClientMetadata) (*dto.BranchDTO, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]dto.BranchDTO, error)
	GetBranch(ctx context.Context, id uuid.UUID) (*dto.BranchDTO, error)
	UpdateBranch(ctx context.Context, identity *Identity, id uuid.UUID, req *dto.UpdateBranchRequest, metadata *ClientMetadata) (*dto.BranchDTO, error)
	UpdatePassword(ctx context.Context, identity *Identity, id uuid.UUID, req *dto.UpdatePasswordRequest, metadata *ClientMetadata) error
	SetStatus(ctx context.Context, identity *Identity, id uuid.UUID, active bool, metadata *ClientMetadata) (*dto.BranchDTO, error)
}

// BranchFlowImpl implements the branch business flow
type BranchFlowImpl struct {
	branchRepo      repository.BranchRepository
	accountRepo     repository.AccountRepository
	sessionRepo     repository.SessionRepository
	auditRepo       repository.AuditLogRepository
	passwordService services.PasswordService
	transactor      repository.Transactor
	now             utils.Clock
}

// NewBranchFlow creates a new branch flow instance
func NewBranchFlow(
	branchRepo repository.BranchRepository,
	accountRepo repository.AccountRepository,
	sessionRepo repository.SessionRepository,
	auditRepo repository.AuditLogRepository,
	passwordService services.PasswordService,
	transactor repository.Transactor,
	now utils.Clock,
) BranchFlow {
	if now == nil {
		now = utils.UTCNow
	}
	return &BranchFlowImpl{
		branchRepo:      branchRepo,
		accountRepo:     accountRepo,
		sessionRepo:     sessionRepo,
		auditRepo:       auditRepo,
		passwordService: passwordService,
		transactor:      transactor,
		now:             now,
	}
}

// CreateBranch adds a sub-branch and its account to the caller's company
func (bf *BranchFlowImpl) CreateBranch(ctx context.Context, identity *Identity, req *dto.CreateBranchRequest, metadata *ClientMetadata) (*dto.BranchDTO, error) {
	if err := RequireAdministrator(identity); err != nil {
		return nil, err
	}

	hash, err := bf.passwordService.Hash(req.Password)
	if err != nil {
		return nil, NewBusinessError("CREATE_BRANCH_FAILED", "Branch creation failed", err)
	}

	companyID := identity.CompanyID()
	var branch *models.Branch
	err = bf.transactor.WithTransaction(ctx, func(txCtx context.Context) error {
		account := &models.Account{
			PasswordHash: hash,
			CompanyID:    companyID,
		}
		if err := bf.accountRepo.Save(txCtx, account); err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}

		branch = &models.Branch{
			Username:  req.Username,
			Name:      req.Name,
			Kind:      models.BranchKindSub,
			Status:    utils.ToPtr(true),
			AccountID: account.ID,
			CompanyID: companyID,
		}
		if err := bf.branchRepo.Save(txCtx, branch); err != nil {
			return fmt.Errorf("failed to create branch: %w", translateUniqueViolation(err))
		}
		return nil
	})
	if err != nil {
		return nil, NewBusinessError("CREATE_BRANCH_FAILED", "Branch creation failed", err)
	}

	bf.audit(ctx, metadata, identity, models.AuditActionBranchCreated, branch.ID, fmt.Sprintf("Branch %s created", branch.Username))

	result := ToBranchDTO(*branch)
	return &result, nil
}

// ListByCompany returns every branch of a company, main branch first
func (bf *BranchFlowImpl) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]dto.BranchDTO, error) {
	branches, err := bf.branchRepo.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, NewBusinessError("LIST_BRANCHES_FAILED", "Failed to list branches", err)
	}
	if len(branches) == 0 {
		return nil, ErrNoBranchesFound
	}

	result := make([]dto.BranchDTO, 0, len(branches))
	for _, branch := range branches {
		result = append(result, ToBranchDTO(*branch))
	}
	return result, nil
}

func (bf *BranchFlowImpl) GetBranch(ctx context.Context, id uuid.UUID) (*dto.BranchDTO, error) {
	branch, err := bf.branchRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("GET_BRANCH_FAILED", "Failed to get branch", err)
	}
	if branch == nil {
		return nil, ErrBranchNotFound
	}
	result := ToBranchDTO(*branch)
	return &result, nil
}

// UpdateBranch changes the name and/or username of a branch in the caller's company
func (bf *BranchFlowImpl) UpdateBranch(ctx context.Context, identity *Identity, id uuid.UUID, req *dto.UpdateBranchRequest, metadata *ClientMetadata) (*dto.BranchDTO, error) {
	if err := RequireAdministrator(identity); err != nil {
		return nil, err
	}

	update := models.BranchUpdate{Name: req.Name, Username: req.Username}
	if update.IsEmpty() {
		return nil, ErrNoFieldsToUpdate
	}

	updated, err := bf.branchRepo.Update(ctx, id, identity.CompanyID(), update)
	if err != nil {
		return nil, NewBusinessError("UPDATE_BRANCH_FAILED", "Branch update failed", translateUniqueViolation(err))
	}
	if !updated {
		return nil, ErrBranchNotFound
	}

	branch, err := bf.branchRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("UPDATE_BRANCH_FAILED", "Branch update failed", err)
	}
	if branch == nil {
		return nil, ErrBranchNotFound
	}

	bf.audit(ctx, metadata, identity, models.AuditActionBranchUpdated, branch.ID, fmt.Sprintf("Branch %s updated", branch.Username))

	result := ToBranchDTO(*branch)
	return &result, nil
}

// UpdatePassword replaces the password of a branch in the caller's company and signs that branch out
func (bf *BranchFlowImpl) UpdatePassword(ctx context.Context, identity *Identity, id uuid.UUID, req *dto.UpdatePasswordRequest, metadata *ClientMetadata) error {
	if err := RequireAdministrator(identity); err != nil {
		return err
	}

	branch, err := bf.ownedBranch(ctx, identity, id)
	if err != nil {
		return err
	}

	hash, err := bf.passwordService.Hash(req.Password)
	if err != nil {
		return NewBusinessError("UPDATE_PASSWORD_FAILED", "Password update failed", err)
	}

	err = bf.transactor.WithTransaction(ctx, func(txCtx context.Context) error {
		updated, err := bf.accountRepo.UpdatePasswordHash(txCtx, branch.AccountID, hash)
		if err != nil {
			return err
		}
		if !updated {
			return ErrAccountNotFound
		}
		return bf.sessionRepo.DeleteByBranchID(txCtx, branch.ID)
	})
	if err != nil {
		return NewBusinessError("UPDATE_PASSWORD_FAILED", "Password update failed", err)
	}

	bf.audit(ctx, metadata, identity, models.AuditActionPasswordChanged, branch.ID, fmt.Sprintf("Password of branch %s changed", branch.Username))
	return nil
}

// SetStatus activates or deactivates a branch in the caller's company. Deactivation also ends the branch's session.
func (bf *BranchFlowImpl) SetStatus(ctx context.Context, identity *Identity, id uuid.UUID, active bool, metadata *ClientMetadata) (*dto.BranchDTO, error) {
	if err := RequireAdministrator(identity); err != nil {
		return nil, err
	}

	branch, err := bf.ownedBranch(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	if !active && branch.IsMain() {
		return nil, ErrMainBranchImmutable
	}

	now := bf.now()
	err = bf.transactor.WithTransaction(ctx, func(txCtx context.Context) error {
		updated, err := bf.branchRepo.SetStatus(txCtx, branch.ID, branch.CompanyID, active, now)
		if err != nil {
			return err
		}
		if !updated {
			return ErrBranchNotFound
		}
		if active {
			return nil
		}
		return bf.sessionRepo.DeleteByBranchID(txCtx, branch.ID)
	})
	if err != nil {
		return nil, NewBusinessError("SET_BRANCH_STATUS_FAILED", "Branch status update failed", err)
	}

	branch.Status = utils.ToPtr(active)
	branch.UpdatedAt = now
	action := models.AuditActionBranchActivated
	branch.DeletedAt = nil
	if !active {
		action = models.AuditActionBranchDeactivated
		branch.DeletedAt = &now
	}
	bf.audit(ctx, metadata, identity, action, branch.ID, fmt.Sprintf("Branch %s status set to %t", branch.Username, active))

	result := ToBranchDTO(*branch)
	return &result, nil
}

// ownedBranch loads a branch and hides branches of other companies behind ErrBranchNotFound
func (bf *BranchFlowImpl) ownedBranch(ctx context.Context, identity *Identity, id uuid.UUID) (*models.Branch, error) {
	branch, err := bf.branchRepo.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if branch == nil || branch.CompanyID != identity.CompanyID() {
		return nil, ErrBranchNotFound
	}
	return branch, nil
}

func (bf *BranchFlowImpl) audit(ctx context.Context, metadata *ClientMetadata, identity *Identity, action string, targetID uuid.UUID, description string) {
	companyID := identity.CompanyID()
	recordAudit(ctx, bf.auditRepo, metadata, auditEntry{
		action:      action,
		branchID:    &targetID,
		companyID:   &companyID,
		description: description,
	})
}
