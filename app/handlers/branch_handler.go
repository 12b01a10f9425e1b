package handlers

import (
	"github.com/amirphl/Shiten/app/dto"
	businessflow "github.com/amirphl/Shiten/business_flow"
	"github.com/gofiber/fiber/v3"
)

// BranchHandlerInterface defines the contract for branch handlers
type BranchHandlerInterface interface {
	CreateBranch(c fiber.Ctx) error
	ListByCompany(c fiber.Ctx) error
	GetBranch(c fiber.Ctx) error
	UpdateBranch(c fiber.Ctx) error
	UpdatePassword(c fiber.Ctx) error
	Activate(c fiber.Ctx) error
	Deactivate(c fiber.Ctx) error
}

// BranchHandler handles branch management requests
type BranchHandler struct {
	baseHandler
	branchFlow businessflow.BranchFlow
}

// NewBranchHandler creates a new branch handler
func NewBranchHandler(branchFlow businessflow.BranchFlow, opts Options) *BranchHandler {
	return &BranchHandler{
		baseHandler: newBaseHandler(opts),
		branchFlow:  branchFlow,
	}
}

// CreateBranch adds a sub-branch to the caller's company
// @Summary Create branch
// @Tags Branch
// @Accept json
// @Produce json
// @Param request body dto.CreateBranchRequest true "Branch data"
// @Success 201 {object} dto.APIResponse{data=dto.BranchDTO}
// @Failure 403 {object} dto.APIResponse "Caller is not the main branch"
// @Failure 409 {object} dto.APIResponse "Username already used"
// @Router /api/branch/create-branch [post]
func (h *BranchHandler) CreateBranch(c fiber.Ctx) error {
	identity, err := h.identity(c)
	if err != nil {
		return h.respondError(c, err, "Branch creation")
	}

	var req dto.CreateBranchRequest
	if ok, err := h.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	branch, err := h.branchFlow.CreateBranch(ctx, identity, &req, h.metadata(c))
	if err != nil {
		return h.respondError(c, err, "Branch creation")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Successfully created account!", branch)
}

// ListByCompany lists the branches of the company given by ?id=
// @Summary List branches
// @Tags Branch
// @Produce json
// @Param id query string true "Company ID"
// @Success 200 {object} dto.APIResponse{data=[]dto.BranchDTO}
// @Failure 404 {object} dto.APIResponse "No branches found"
// @Router /api/branch/list [get]
func (h *BranchHandler) ListByCompany(c fiber.Ctx) error {
	companyID, ok, err := h.queryID(c)
	if !ok {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	branches, err := h.branchFlow.ListByCompany(ctx, companyID)
	if err != nil {
		if businessflow.IsNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "No branches found!", "NOT_FOUND", nil)
		}
		return h.respondError(c, err, "Branch listing")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Branch list!", branches)
}

// GetBranch returns the branch given by ?id=
// @Summary Branch detail
// @Tags Branch
// @Produce json
// @Param id query string true "Branch ID"
// @Success 200 {object} dto.APIResponse{data=dto.BranchDTO}
// @Failure 404 {object} dto.APIResponse "Not found"
// @Router /api/branch [get]
func (h *BranchHandler) GetBranch(c fiber.Ctx) error {
	id, ok, err := h.queryID(c)
	if !ok {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	branch, err := h.branchFlow.GetBranch(ctx, id)
	if err != nil {
		if businessflow.IsBranchNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Not Found!", "NOT_FOUND", nil)
		}
		return h.respondError(c, err, "Branch lookup")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Branch details!", branch)
}

// UpdateBranch renames the branch given by ?id=
// @Summary Update branch
// @Tags Branch
// @Accept json
// @Produce json
// @Param id query string true "Branch ID"
// @Param request body dto.UpdateBranchRequest true "New name and/or username"
// @Success 200 {object} dto.APIResponse{data=dto.BranchDTO}
// @Router /api/branch/update-branch [patch]
func (h *BranchHandler) UpdateBranch(c fiber.Ctx) error {
	identity, err := h.identity(c)
	if err != nil {
		return h.respondError(c, err, "Branch update")
	}
	id, ok, err := h.queryID(c)
	if !ok {
		return err
	}

	var req dto.UpdateBranchRequest
	if ok, err := h.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	branch, err := h.branchFlow.UpdateBranch(ctx, identity, id, &req, h.metadata(c))
	if err != nil {
		return h.respondError(c, err, "Branch update")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Successfully updated branch!", branch)
}

// UpdatePassword replaces the password of the branch given by ?id=
// @Summary Update branch password
// @Tags Branch
// @Accept json
// @Produce json
// @Param id query string true "Branch ID"
// @Param request body dto.UpdatePasswordRequest true "New password"
// @Success 200 {object} dto.APIResponse
// @Router /api/branch/update-password [patch]
func (h *BranchHandler) UpdatePassword(c fiber.Ctx) error {
	identity, err := h.identity(c)
	if err != nil {
		return h.respondError(c, err, "Password update")
	}
	id, ok, err := h.queryID(c)
	if !ok {
		return err
	}

	var req dto.UpdatePasswordRequest
	if ok, err := h.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.branchFlow.UpdatePassword(ctx, identity, id, &req, h.metadata(c)); err != nil {
		return h.respondError(c, err, "Password update")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Successfully update password", nil)
}

// Activate re-enables the branch given by ?id=
// @Summary Activate branch
// @Tags Branch
// @Param id query string true "Branch ID"
// @Success 200 {object} dto.APIResponse{data=dto.BranchDTO}
// @Router /api/branch/active [patch]
func (h *BranchHandler) Activate(c fiber.Ctx) error {
	return h.setStatus(c, true, "Successfully activated a branch!")
}

// Deactivate disables the branch given by ?id= and ends its session
// @Summary Deactivate branch
// @Tags Branch
// @Param id query string true "Branch ID"
// @Success 200 {object} dto.APIResponse{data=dto.BranchDTO}
// @Failure 409 {object} dto.APIResponse "Main branch cannot be deactivated"
// @Router /api/branch/deactive [patch]
func (h *BranchHandler) Deactivate(c fiber.Ctx) error {
	return h.setStatus(c, false, "Successfully deactivated a branch!")
}

func (h *BranchHandler) setStatus(c fiber.Ctx, active bool, message string) error {
	identity, err := h.identity(c)
	if err != nil {
		return h.respondError(c, err, "Branch status update")
	}
	id, ok, err := h.queryID(c)
	if !ok {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	branch, err := h.branchFlow.SetStatus(ctx, identity, id, active, h.metadata(c))
	if err != nil {
		return h.respondError(c, err, "Branch status update")
	}

	return h.SuccessResponse(c, fiber.StatusOK, message, branch)
}
