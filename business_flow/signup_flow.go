package businessflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirphl/Shiten/app/dto"
	"github.com/amirphl/Shiten/app/services"
	"github.com/amirphl/Shiten/models"
	"github.com/amirphl/Shiten/repository"
	"github.com/amirphl/Shiten/utils"
)

// SignupFlow registers a company together with its main branch
type SignupFlow interface {
	Register(ctx context.Context, req *dto.RegisterRequest, metadata *ClientMetadata) (*dto.BranchDTO, error)
}

// SignupFlowImpl implements the signup business flow
type SignupFlowImpl struct {
	companyRepo     repository.CompanyRepository
	accountRepo     repository.AccountRepository
	branchRepo      repository.BranchRepository
	auditRepo       repository.AuditLogRepository
	passwordService services.PasswordService
	transactor      repository.Transactor
}

// NewSignupFlow creates a new signup flow instance
func NewSignupFlow(
	companyRepo repository.CompanyRepository,
	accountRepo repository.AccountRepository,
	branchRepo repository.BranchRepository,
	auditRepo repository.AuditLogRepository,
	passwordService services.PasswordService,
	transactor repository.Transactor,
) SignupFlow {
	return &SignupFlowImpl{
		companyRepo:     companyRepo,
		accountRepo:     accountRepo,
		branchRepo:      branchRepo,
		auditRepo:       auditRepo,
		passwordService: passwordService,
		transactor:      transactor,
	}
}

// Register creates the company, its account and its main branch in one transaction
func (sf *SignupFlowImpl) Register(ctx context.Context, req *dto.RegisterRequest, metadata *ClientMetadata) (*dto.BranchDTO, error) {
	// Hash outside the transaction so the slow part does not hold a connection
	hash, err := sf.passwordService.Hash(req.Password)
	if err != nil {
		return nil, NewBusinessError("REGISTER_FAILED", "Registration failed", err)
	}

	var branch *models.Branch
	err = sf.transactor.WithTransaction(ctx, func(txCtx context.Context) error {
		company := &models.Company{
			Email:        strings.ToLower(strings.TrimSpace(req.Email)),
			BusinessName: req.BusinessName,
			Status:       utils.ToPtr(true),
		}
		if err := sf.companyRepo.Save(txCtx, company); err != nil {
			return fmt.Errorf("failed to create company: %w", translateUniqueViolation(err))
		}

		account := &models.Account{
			PasswordHash: hash,
			CompanyID:    company.ID,
		}
		if err := sf.accountRepo.Save(txCtx, account); err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}

		branch = &models.Branch{
			Username:  req.Username,
			Name:      req.Name,
			Kind:      models.BranchKindMain,
			Status:    utils.ToPtr(true),
			AccountID: account.ID,
			CompanyID: company.ID,
		}
		if err := sf.branchRepo.Save(txCtx, branch); err != nil {
			return fmt.Errorf("failed to create branch: %w", translateUniqueViolation(err))
		}
		return nil
	})
	if err != nil {
		recordAudit(ctx, sf.auditRepo, metadata, auditEntry{
			action:      models.AuditActionRegistered,
			description: fmt.Sprintf("Registration failed for username %s", req.Username),
			err:         err,
		})
		return nil, NewBusinessError("REGISTER_FAILED", "Registration failed", err)
	}

	recordAudit(ctx, sf.auditRepo, metadata, auditEntry{
		action:      models.AuditActionRegistered,
		branchID:    &branch.ID,
		companyID:   &branch.CompanyID,
		description: fmt.Sprintf("Company registered with main branch %s", branch.Username),
	})

	result := ToBranchDTO(*branch)
	return &result, nil
}

// translateUniqueViolation maps storage unique violations to the business error naming the clashing field
func translateUniqueViolation(err error) error {
	uv, ok := repository.AsUniqueViolation(err)
	if !ok {
		return err
	}
	switch uv.Constraint {
	case repository.ConstraintBranchUsername:
		return fmt.Errorf("%w: %v", ErrUsernameAlreadyExists, err)
	case repository.ConstraintCompanyEmail:
		return fmt.Errorf("%w: %v", ErrEmailAlreadyExists, err)
	case repository.ConstraintBranchCompanyMain:
		return fmt.Errorf("%w: %v", ErrMainBranchAlreadyExists, err)
	default:
		return err
	}
}
