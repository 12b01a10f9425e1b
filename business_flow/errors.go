// Package businessflow contains the core business logic: the session lifecycle, the role gate and the account flows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Session errors
	ErrNoSessionPresented     = errors.New("no session presented")
	ErrSessionNotFound        = errors.New("no session found")
	ErrSessionAccountNotFound = errors.New("no account found")
	ErrSessionExpired         = errors.New("session expired")
	ErrSessionRotated         = errors.New("session already rotated")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")

	// Credential errors
	ErrIncorrectCredentials = errors.New("incorrect credentials")
	ErrTooManyLoginAttempts = errors.New("too many login attempts")

	// Uniqueness errors
	ErrUsernameAlreadyExists   = errors.New("username already used")
	ErrEmailAlreadyExists      = errors.New("email already used")
	ErrMainBranchAlreadyExists = errors.New("company already has a main branch")
	ErrMainBranchImmutable     = errors.New("main branch cannot be deactivated")

	// Lookup errors
	ErrBranchNotFound   = errors.New("branch not found")
	ErrNoBranchesFound  = errors.New("no branches found")
	ErrCompanyNotFound  = errors.New("company not found")
	ErrAccountNotFound  = errors.New("account not found")
	ErrIdentityRequired = errors.New("authenticated identity required")

	// Input errors
	ErrNoFieldsToUpdate = errors.New("at least one field must be provided for update")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ErrorCode returns the code of the outermost BusinessError in err's chain
func ErrorCode(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

func IsNoSessionPresented(err error) bool {
	return errors.Is(err, ErrNoSessionPresented)
}

func IsSessionNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

func IsSessionAccountNotFound(err error) bool {
	return errors.Is(err, ErrSessionAccountNotFound)
}

func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}

func IsSessionRotated(err error) bool {
	return errors.Is(err, ErrSessionRotated)
}

func IsIncorrectCredentials(err error) bool {
	return errors.Is(err, ErrIncorrectCredentials)
}

func IsTooManyLoginAttempts(err error) bool {
	return errors.Is(err, ErrTooManyLoginAttempts)
}

func IsUsernameAlreadyExists(err error) bool {
	return errors.Is(err, ErrUsernameAlreadyExists)
}

func IsEmailAlreadyExists(err error) bool {
	return errors.Is(err, ErrEmailAlreadyExists)
}

func IsBranchNotFound(err error) bool {
	return errors.Is(err, ErrBranchNotFound)
}

func IsCompanyNotFound(err error) bool {
	return errors.Is(err, ErrCompanyNotFound)
}

func IsNoFieldsToUpdate(err error) bool {
	return errors.Is(err, ErrNoFieldsToUpdate)
}

var (
	unauthenticatedErrors = []error{
		ErrNoSessionPresented, ErrSessionNotFound, ErrSessionAccountNotFound,
		ErrSessionExpired, ErrSessionRotated, ErrIncorrectCredentials, ErrIdentityRequired,
	}
	forbiddenErrors = []error{ErrUnauthorized}
	notFoundErrors  = []error{ErrBranchNotFound, ErrNoBranchesFound, ErrCompanyNotFound, ErrAccountNotFound}
	conflictErrors  = []error{
		ErrUsernameAlreadyExists, ErrEmailAlreadyExists, ErrMainBranchAlreadyExists, ErrMainBranchImmutable,
	}
	formErrors = []error{
		ErrIncorrectCredentials, ErrUsernameAlreadyExists, ErrEmailAlreadyExists, ErrNoFieldsToUpdate,
	}
)

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsUnauthenticated reports a missing, unknown, expired or superseded session, or rejected credentials
func IsUnauthenticated(err error) bool {
	return isAny(err, unauthenticatedErrors)
}

// IsForbidden reports an authenticated branch lacking the required role
func IsForbidden(err error) bool {
	return isAny(err, forbiddenErrors)
}

func IsNotFound(err error) bool {
	return isAny(err, notFoundErrors)
}

func IsConflict(err error) bool {
	return isAny(err, conflictErrors)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrNoFieldsToUpdate)
}

func IsRateLimited(err error) bool {
	return errors.Is(err, ErrTooManyLoginAttempts)
}

// IsFormError reports failures a client should attach to the submitted form
func IsFormError(err error) bool {
	return isAny(err, formErrors)
}

// PublicMessage returns the client-facing text for a known failure, or "" when err is unexpected
func PublicMessage(err error) string {
	groups := [][]error{unauthenticatedErrors, forbiddenErrors, notFoundErrors, conflictErrors, {ErrNoFieldsToUpdate, ErrTooManyLoginAttempts}}
	for _, group := range groups {
		for _, target := range group {
			if errors.Is(err, target) {
				return target.Error()
			}
		}
	}
	return ""
}
