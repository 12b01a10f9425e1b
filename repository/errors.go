package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// Unique constraint names declared by the migrations.
const (
	ConstraintCompanyEmail      = "uk_companies_email"
	ConstraintBranchUsername    = "uk_branches_username"
	ConstraintBranchAccount     = "uk_branches_account_id"
	ConstraintBranchCompanyMain = "uk_branches_company_main"
	ConstraintSessionToken      = "uk_sessions_token"
	ConstraintSessionBranch     = "uk_sessions_branch_id"
)

// ErrUniqueViolation matches every UniqueViolationError through errors.Is.
var ErrUniqueViolation = errors.New("unique constraint violation")

// UniqueViolationError reports which unique constraint rejected a write.
type UniqueViolationError struct {
	Constraint string
	Err        error
}

func (e *UniqueViolationError) Error() string {
	if e.Constraint == "" {
		return fmt.Sprintf("%s: %v", ErrUniqueViolation, e.Err)
	}
	return fmt.Sprintf("%s on %s: %v", ErrUniqueViolation, e.Constraint, e.Err)
}

func (e *UniqueViolationError) Unwrap() error {
	return e.Err
}

func (e *UniqueViolationError) Is(target error) bool {
	return target == ErrUniqueViolation
}

// NewUniqueViolation builds the error a store returns when constraint rejects a write.
func NewUniqueViolation(constraint string) error {
	return &UniqueViolationError{Constraint: constraint, Err: gorm.ErrDuplicatedKey}
}

// AsUniqueViolation extracts the violated constraint from err, if any.
func AsUniqueViolation(err error) (*UniqueViolationError, bool) {
	var uv *UniqueViolationError
	if errors.As(err, &uv) {
		return uv, true
	}
	return nil, false
}

// IsUniqueViolationOn reports whether err was caused by the named unique constraint.
func IsUniqueViolationOn(err error, constraint string) bool {
	uv, ok := AsUniqueViolation(err)
	return ok && uv.Constraint == constraint
}

// translateError turns driver level unique violations into UniqueViolationError and leaves everything else untouched.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsUniqueViolation(err); ok {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return &UniqueViolationError{Constraint: pgErr.ConstraintName, Err: err}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &UniqueViolationError{Err: err}
	}
	return err
}
