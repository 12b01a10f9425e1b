package handlers

import (
	"github.com/amirphl/Shiten/app/dto"
	businessflow "github.com/amirphl/Shiten/business_flow"
	"github.com/gofiber/fiber/v3"
)

// CompanyHandlerInterface defines the contract for company handlers
type CompanyHandlerInterface interface {
	AddDetails(c fiber.Ctx) error
	UpdateCompany(c fiber.Ctx) error
	Activate(c fiber.Ctx) error
	Deactivate(c fiber.Ctx) error
	ListCompanies(c fiber.Ctx) error
	GetCompany(c fiber.Ctx) error
}

// CompanyHandler handles company requests
type CompanyHandler struct {
	baseHandler
	companyFlow businessflow.CompanyFlow
}

// NewCompanyHandler creates a new company handler
func NewCompanyHandler(companyFlow businessflow.CompanyFlow, opts Options) *CompanyHandler {
	return &CompanyHandler{
		baseHandler: newBaseHandler(opts),
		companyFlow: companyFlow,
	}
}

// AddDetails sets mission, vision and description of the company given by ?id=
// @Summary Add company details
// @Tags Company
// @Accept json
// @Produce json
// @Param id query string true "Company ID"
// @Param request body dto.AddCompanyDetailsRequest true "Details"
// @Success 200 {object} dto.APIResponse{data=dto.CompanyDTO}
// @Router /api/company/add-details [patch]
func (h *CompanyHandler) AddDetails(c fiber.Ctx) error {
	identity, err := h.identity(c)
	if err != nil {
		return h.respondError(c, err, "Company details")
	}
	id, ok, err := h.queryID(c)
	if !ok {
		return err
	}

	var req dto.AddCompanyDetailsRequest
	if ok, err := h.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	company, err := h.companyFlow.AddDetails(ctx, identity, id, &req, h.metadata(c))
	if err != nil {
		return h.respondError(c, err, "Company details")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Successfully added details!", company)
}

// UpdateCompany changes fields of the company given by ?id=
// @Summary Update company
// @Tags Company
// @Accept json
// @Produce json
// @Param id query string true "Company ID"
// @Param request body dto.UpdateCompanyRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.CompanyDTO}
// @Router /api/company/update-company [patch]
func (h *CompanyHandler) UpdateCompany(c fiber.Ctx) error {
	identity, err := h.identity(c)
	if err != nil {
		return h.respondError(c, err, "Company update")
	}
	id, ok, err := h.queryID(c)
	if !ok {
		return err
	}

	var req dto.UpdateCompanyRequest
	if ok, err := h.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	company, err := h.companyFlow.UpdateCompany(ctx, identity, id, &req, h.metadata(c))
	if err != nil {
		return h.respondError(c, err, "Company update")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Successfully updated details", company)
}

// Activate re-enables logins for the company given by ?id=
// @Summary Activate company
// @Tags Company
// @Param id query string true "Company ID"
// @Success 200 {object} dto.APIResponse{data=dto.CompanyDTO}
// @Router /api/company/active [patch]
func (h *CompanyHandler) Activate(c fiber.Ctx) error {
	return h.setStatus(c, true, "Successfully activate company!")
}

// Deactivate blocks new logins for the company given by ?id=
// @Summary Deactivate company
// @Tags Company
// @Param id query string true "Company ID"
// @Success 200 {object} dto.APIResponse{data=dto.CompanyDTO}
// @Router /api/company/deactive [patch]
func (h *CompanyHandler) Deactivate(c fiber.Ctx) error {
	return h.setStatus(c, false, "Successfully deactivate company!")
}

func (h *CompanyHandler) setStatus(c fiber.Ctx, active bool, message string) error {
	identity, err := h.identity(c)
	if err != nil {
		return h.respondError(c, err, "Company status update")
	}
	id, ok, err := h.queryID(c)
	if !ok {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	company, err := h.companyFlow.SetStatus(ctx, identity, id, active, h.metadata(c))
	if err != nil {
		return h.respondError(c, err, "Company status update")
	}

	return h.SuccessResponse(c, fiber.StatusOK, message, company)
}

// ListCompanies returns every company
// @Summary List companies
// @Tags Company
// @Produce json
// @Success 200 {object} dto.APIResponse{data=[]dto.CompanyDTO}
// @Router /api/company/list [get]
func (h *CompanyHandler) ListCompanies(c fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	companies, err := h.companyFlow.ListCompanies(ctx)
	if err != nil {
		return h.respondError(c, err, "Company listing")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Companies:", companies)
}

// GetCompany returns the company given by ?id=
// @Summary Company detail
// @Tags Company
// @Produce json
// @Param id query string true "Company ID"
// @Success 200 {object} dto.APIResponse{data=dto.CompanyDTO}
// @Failure 404 {object} dto.APIResponse "Company not found"
// @Router /api/company [get]
func (h *CompanyHandler) GetCompany(c fiber.Ctx) error {
	id, ok, err := h.queryID(c)
	if !ok {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	company, err := h.companyFlow.GetCompany(ctx, id)
	if err != nil {
		if businessflow.IsCompanyNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Company not found!", "NOT_FOUND", nil)
		}
		return h.respondError(c, err, "Company lookup")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Company Details", company)
}
