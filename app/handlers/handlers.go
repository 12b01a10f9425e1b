// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/amirphl/Shiten/app/dto"
	businessflow "github.com/amirphl/Shiten/business_flow"
	"github.com/amirphl/Shiten/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/google/uuid"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9]{6,20}$`)

// Options are the presentation settings shared by every handler
type Options struct {
	// Production hides internal error details from clients
	Production     bool
	RequestTimeout time.Duration
}

// baseHandler carries the validator and the response helpers every handler uses
type baseHandler struct {
	validator  *validator.Validate
	production bool
	timeout    time.Duration
}

func newBaseHandler(opts Options) baseHandler {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = utils.DefaultRequestTimeout
	}
	return baseHandler{
		validator:  NewValidator(),
		production: opts.Production,
		timeout:    timeout,
	}
}

// NewValidator returns a validator that knows the username_format and password_strength tags
// and reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})

	_ = v.RegisterValidation("username_format", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})

	_ = v.RegisterValidation("password_strength", func(fl validator.FieldLevel) bool {
		for _, char := range fl.Field().String() {
			if char >= 'A' && char <= 'Z' {
				return true
			}
		}
		return false
	})

	return v
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "uuid":
		return err.Field() + " must be a valid UUID"
	case "username_format":
		return "Username must be 6 to 20 lowercase letters or digits"
	case "password_strength":
		return "Password must contain at least 1 uppercase letter"
	default:
		return fmt.Sprintf("%s is invalid", err.Field())
	}
}

func (h *baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Error:   message,
		Code:    errorCode,
		Details: details,
	})
}

// FormErrorResponse is ErrorResponse for failures the client should show next to the submitted form
func (h *baseHandler) FormErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success:     false,
		Error:       message,
		IsFormError: true,
		Code:        errorCode,
		Details:     details,
	})
}

func (h *baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// bindAndValidate binds a JSON or form body into req and validates it. It writes the 400 response itself
// and reports false when the handler should stop.
func (h *baseHandler) bindAndValidate(c fiber.Ctx, req any) (bool, error) {
	if err := c.Bind().Body(req); err != nil {
		return false, h.FormErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", nil)
	}
	return h.validate(c, req)
}

func (h *baseHandler) validate(c fiber.Ctx, req any) (bool, error) {
	err := h.validator.Struct(req)
	if err == nil {
		return true, nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return false, h.FormErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", nil)
	}

	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		if _, seen := details[fieldErr.Field()]; !seen {
			details[fieldErr.Field()] = getValidationErrorMessage(fieldErr)
		}
	}
	return false, h.FormErrorResponse(c, fiber.StatusBadRequest, getValidationErrorMessage(validationErrors[0]), "VALIDATION_ERROR", details)
}

// queryID parses the ?id= parameter. It writes the 400 response itself on failure.
func (h *baseHandler) queryID(c fiber.Ctx) (uuid.UUID, bool, error) {
	var query dto.IDQuery
	if err := c.Bind().Query(&query); err != nil {
		return uuid.Nil, false, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query", "INVALID_QUERY", nil)
	}
	if ok, err := h.validate(c, &query); !ok {
		return uuid.Nil, false, err
	}
	id, err := uuid.Parse(query.ID)
	if err != nil {
		return uuid.Nil, false, h.ErrorResponse(c, fiber.StatusBadRequest, "id must be a valid UUID", "VALIDATION_ERROR", nil)
	}
	return id, true, nil
}

// identity returns the identity the session middleware attached to the request
func (h *baseHandler) identity(c fiber.Ctx) (*businessflow.Identity, error) {
	identity, ok := businessflow.IdentityFromContext(c.Context())
	if !ok {
		return nil, businessflow.ErrIdentityRequired
	}
	return identity, nil
}

func (h *baseHandler) metadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get(fiber.HeaderUserAgent))
	metadata.SetRequestID(requestid.FromContext(c))
	return metadata
}

// requestContext derives the flow context from the request context with the handler timeout and request id
func (h *baseHandler) requestContext(c fiber.Ctx) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(c.Context(), h.timeout)
	return businessflow.WithRequestID(ctx, requestid.FromContext(c)), cancel
}

// respondError maps a flow error onto the envelope and status code. Unknown errors become 500 and only
// expose their text outside production.
func (h *baseHandler) respondError(c fiber.Ctx, err error, operation string) error {
	message := businessflow.PublicMessage(err)
	formError := businessflow.IsFormError(err)

	var status int
	var code string
	switch {
	case businessflow.IsRateLimited(err):
		status, code = fiber.StatusTooManyRequests, "TOO_MANY_ATTEMPTS"
	case businessflow.IsUnauthenticated(err):
		status, code = fiber.StatusUnauthorized, "UNAUTHENTICATED"
	case businessflow.IsForbidden(err):
		status, code = fiber.StatusForbidden, "FORBIDDEN"
	case businessflow.IsNotFound(err):
		status, code = fiber.StatusNotFound, "NOT_FOUND"
	case businessflow.IsConflict(err):
		status, code = fiber.StatusConflict, "CONFLICT"
	case businessflow.IsValidation(err):
		status, code = fiber.StatusBadRequest, "VALIDATION_ERROR"
	default:
		log.Printf("%s failed: %v", operation, err)
		message = operation + " failed"
		if !h.production {
			message = err.Error()
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, message, "INTERNAL_ERROR", nil)
	}

	if formError {
		return h.FormErrorResponse(c, status, message, code, nil)
	}
	return h.ErrorResponse(c, status, message, code, nil)
}
