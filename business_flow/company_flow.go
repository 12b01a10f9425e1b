package businessflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirphl/Shiten/app/dto"
	"github.com/amirphl/Shiten/models"
	"github.com/amirphl/Shiten/repository"
	"github.com/google/uuid"
)

// CompanyFlow handles company details and status. Mutations are restricted to the caller's own company.
type CompanyFlow interface {
	AddDetails(ctx context.Context, identity *Identity, id uuid.UUID, req *dto.AddCompanyDetailsRequest, metadata *ClientMetadata) (*dto.CompanyDTO, error)
	UpdateCompany(ctx context.Context, identity *Identity, id uuid.UUID, req *dto.UpdateCompanyRequest, metadata *ClientMetadata) (*dto.CompanyDTO, error)
	SetStatus(ctx context.Context, identity *Identity, id uuid.UUID, active bool, metadata *ClientMetadata) (*dto.CompanyDTO, error)
	ListCompanies(ctx context.Context) ([]dto.CompanyDTO, error)
	GetCompany(ctx context.Context, id uuid.UUID) (*dto.CompanyDTO, error)
}

// CompanyFlowImpl implements the company business flow
type CompanyFlowImpl struct {
	companyRepo repository.CompanyRepository
	auditRepo   repository.AuditLogRepository
}

// NewCompanyFlow creates a new company flow instance
func NewCompanyFlow(companyRepo repository.CompanyRepository, auditRepo repository.AuditLogRepository) CompanyFlow {
	return &CompanyFlowImpl{
		companyRepo: companyRepo,
		auditRepo:   auditRepo,
	}
}

func (cf *CompanyFlowImpl) AddDetails(ctx context.Context, identity *Identity, id uuid.UUID, req *dto.AddCompanyDetailsRequest, metadata *ClientMetadata) (*dto.CompanyDTO, error) {
	update := models.CompanyUpdate{
		Mission:     &req.Mission,
		Vision:      &req.Vision,
		Description: &req.Description,
	}
	return cf.update(ctx, identity, id, update, metadata)
}

func (cf *CompanyFlowImpl) UpdateCompany(ctx context.Context, identity *Identity, id uuid.UUID, req *dto.UpdateCompanyRequest, metadata *ClientMetadata) (*dto.CompanyDTO, error) {
	update := models.CompanyUpdate{
		BusinessName: req.BusinessName,
		Mission:      req.Mission,
		Vision:       req.Vision,
		Description:  req.Description,
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		update.Email = &email
	}
	if update.IsEmpty() {
		return nil, ErrNoFieldsToUpdate
	}
	return cf.update(ctx, identity, id, update, metadata)
}

func (cf *CompanyFlowImpl) update(ctx context.Context, identity *Identity, id uuid.UUID, update models.CompanyUpdate, metadata *ClientMetadata) (*dto.CompanyDTO, error) {
	if err := cf.authorize(identity, id); err != nil {
		return nil, err
	}

	updated, err := cf.companyRepo.Update(ctx, id, update)
	if err != nil {
		return nil, NewBusinessError("UPDATE_COMPANY_FAILED", "Company update failed", translateUniqueViolation(err))
	}
	if !updated {
		return nil, ErrCompanyNotFound
	}

	company, err := cf.reload(ctx, id)
	if err != nil {
		return nil, err
	}

	cf.audit(ctx, metadata, identity, models.AuditActionCompanyUpdated, "Company details updated")

	result := ToCompanyDTO(*company)
	return &result, nil
}

// SetStatus activates or deactivates the caller's company. A deactivated company cannot log in again
// but sessions that already exist stay valid, so its main branch can still reactivate it.
func (cf *CompanyFlowImpl) SetStatus(ctx context.Context, identity *Identity, id uuid.UUID, active bool, metadata *ClientMetadata) (*dto.CompanyDTO, error) {
	if err := cf.authorize(identity, id); err != nil {
		return nil, err
	}

	updated, err := cf.companyRepo.SetStatus(ctx, id, active)
	if err != nil {
		return nil, NewBusinessError("SET_COMPANY_STATUS_FAILED", "Company status update failed", err)
	}
	if !updated {
		return nil, ErrCompanyNotFound
	}

	company, err := cf.reload(ctx, id)
	if err != nil {
		return nil, err
	}

	action := models.AuditActionCompanyActivated
	if !active {
		action = models.AuditActionCompanyDeactivated
	}
	cf.audit(ctx, metadata, identity, action, fmt.Sprintf("Company status set to %t", active))

	result := ToCompanyDTO(*company)
	return &result, nil
}

func (cf *CompanyFlowImpl) ListCompanies(ctx context.Context) ([]dto.CompanyDTO, error) {
	companies, err := cf.companyRepo.ByFilter(ctx, models.CompanyFilter{}, "created_at ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("LIST_COMPANIES_FAILED", "Failed to list companies", err)
	}

	result := make([]dto.CompanyDTO, 0, len(companies))
	for _, company := range companies {
		result = append(result, ToCompanyDTO(*company))
	}
	return result, nil
}

func (cf *CompanyFlowImpl) GetCompany(ctx context.Context, id uuid.UUID) (*dto.CompanyDTO, error) {
	company, err := cf.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	result := ToCompanyDTO(*company)
	return &result, nil
}

// authorize requires a main branch acting on its own company
func (cf *CompanyFlowImpl) authorize(identity *Identity, id uuid.UUID) error {
	if err := RequireAdministrator(identity); err != nil {
		return err
	}
	if identity.CompanyID() != id {
		return ErrUnauthorized
	}
	return nil
}

func (cf *CompanyFlowImpl) reload(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	company, err := cf.companyRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("GET_COMPANY_FAILED", "Failed to get company", err)
	}
	if company == nil {
		return nil, ErrCompanyNotFound
	}
	return company, nil
}

func (cf *CompanyFlowImpl) audit(ctx context.Context, metadata *ClientMetadata, identity *Identity, action, description string) {
	companyID := identity.CompanyID()
	recordAudit(ctx, cf.auditRepo, metadata, auditEntry{
		action:      action,
		branchID:    &identity.Branch.ID,
		companyID:   &companyID,
		description: description,
	})
}
