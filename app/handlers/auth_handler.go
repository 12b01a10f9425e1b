package handlers

import (
	"github.com/amirphl/Shiten/app/dto"
	"github.com/amirphl/Shiten/app/middleware"
	businessflow "github.com/amirphl/Shiten/business_flow"
	"github.com/gofiber/fiber/v3"
)

// AuthHandlerInterface defines the contract for authentication handlers
type AuthHandlerInterface interface {
	Register(c fiber.Ctx) error
	Login(c fiber.Ctx) error
	SignOut(c fiber.Ctx) error
	Me(c fiber.Ctx) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	baseHandler
	signupFlow businessflow.SignupFlow
	loginFlow  businessflow.LoginFlow
	cookie     middleware.SessionCookie
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(signupFlow businessflow.SignupFlow, loginFlow businessflow.LoginFlow, cookie middleware.SessionCookie, opts Options) *AuthHandler {
	return &AuthHandler{
		baseHandler: newBaseHandler(opts),
		signupFlow:  signupFlow,
		loginFlow:   loginFlow,
		cookie:      cookie,
	}
}

// Register handles company registration
// @Summary Register
// @Description Create a company, its account and its main branch
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "Registration data"
// @Success 201 {object} dto.APIResponse{data=dto.BranchDTO} "Account created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Username or email already used"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/auth/register [post]
func (h *AuthHandler) Register(c fiber.Ctx) error {
	var req dto.RegisterRequest
	if ok, err := h.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	branch, err := h.signupFlow.Register(ctx, &req, h.metadata(c))
	if err != nil {
		return h.respondError(c, err, "Registration")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Successfully created account!", branch)
}

// Login handles branch authentication
// @Summary Login
// @Description Authenticate a branch and start a session. The session token is returned in a cookie.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login credentials"
// @Success 200 {object} dto.APIResponse{data=dto.BranchDTO} "Logged in"
// @Failure 401 {object} dto.APIResponse "Incorrect credentials"
// @Failure 429 {object} dto.APIResponse "Too many login attempts"
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var req dto.LoginRequest
	if ok, err := h.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	result, err := h.loginFlow.Login(ctx, &req, h.metadata(c))
	if err != nil {
		switch {
		case businessflow.IsTooManyLoginAttempts(err):
			middleware.RecordLoginOutcome("throttled")
		case businessflow.IsIncorrectCredentials(err):
			middleware.RecordLoginOutcome("rejected")
		default:
			middleware.RecordLoginOutcome("error")
		}
		return h.respondError(c, err, "Login")
	}

	middleware.RecordLoginOutcome("success")
	h.cookie.Set(c, result.Token, result.ExpiresAt)

	return h.SuccessResponse(c, fiber.StatusOK, "Successfully login!", result.Branch)
}

// SignOut ends the current session
// @Summary Sign out
// @Tags Authentication
// @Produce json
// @Success 200 {object} dto.APIResponse "Signed out"
// @Failure 401 {object} dto.APIResponse "No valid session"
// @Router /api/auth/sign-out [get]
func (h *AuthHandler) SignOut(c fiber.Ctx) error {
	identity, err := h.identity(c)
	if err != nil {
		return h.respondError(c, err, "Sign out")
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.loginFlow.SignOut(ctx, identity, h.metadata(c)); err != nil {
		return h.respondError(c, err, "Sign out")
	}

	h.cookie.Clear(c)
	return h.SuccessResponse(c, fiber.StatusOK, "Successfully sign-out!", nil)
}

// Me returns the branch behind the current session
// @Summary Current branch
// @Tags Authentication
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.BranchDTO} "Details"
// @Failure 401 {object} dto.APIResponse "No valid session"
// @Router /api/auth/me [get]
func (h *AuthHandler) Me(c fiber.Ctx) error {
	identity, err := h.identity(c)
	if err != nil {
		return h.respondError(c, err, "Me")
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	branch, err := h.loginFlow.Me(ctx, identity)
	if err != nil {
		return h.respondError(c, err, "Me")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Details!", branch)
}
