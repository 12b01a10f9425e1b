package testing

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirphl/Shiten/app/services"
	"github.com/amirphl/Shiten/models"
	"github.com/amirphl/Shiten/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TestPassword satisfies the password rules and is the password of every fixture branch
const TestPassword = "Secret123"

// Repositories bundles one implementation of every store
type Repositories struct {
	Companies  repository.CompanyRepository
	Accounts   repository.AccountRepository
	Branches   repository.BranchRepository
	Sessions   repository.SessionRepository
	AuditLogs  repository.AuditLogRepository
	Transactor repository.Transactor
}

// NewRepositories returns the gorm-backed repositories over db
func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Companies:  repository.NewCompanyRepository(db),
		Accounts:   repository.NewAccountRepository(db),
		Branches:   repository.NewBranchRepository(db),
		Sessions:   repository.NewSessionRepository(db),
		AuditLogs:  repository.NewAuditLogRepository(db),
		Transactor: repository.NewTransactor(db),
	}
}

// Repositories returns the in-memory repositories of the store
func (s *MemStore) Repositories() Repositories {
	return Repositories{
		Companies:  s.Companies(),
		Accounts:   s.Accounts(),
		Branches:   s.Branches(),
		Sessions:   s.Sessions(),
		AuditLogs:  s.AuditLogs(),
		Transactor: s.Transactor(),
	}
}

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	Repos     Repositories
	Passwords services.PasswordService
}

// NewTestFixtures creates fixtures that hash with bcrypt's minimum cost to keep tests fast
func NewTestFixtures(repos Repositories) *TestFixtures {
	return &TestFixtures{
		Repos:     repos,
		Passwords: services.NewBcryptPasswordService(bcrypt.MinCost),
	}
}

// CreateCompany stores an active company with its main branch. The main branch's username is username.
func (tf *TestFixtures) CreateCompany(ctx context.Context, businessName, username string) (*models.Company, *models.Branch, error) {
	company := &models.Company{
		Email:        fmt.Sprintf("%s.%s@example.com", strings.ToLower(username), uuid.NewString()[:8]),
		BusinessName: businessName,
	}
	if err := tf.Repos.Companies.Save(ctx, company); err != nil {
		return nil, nil, fmt.Errorf("failed to create test company: %w", err)
	}

	branch, err := tf.createBranch(ctx, company.ID, username, models.BranchKindMain)
	if err != nil {
		return nil, nil, err
	}
	return company, branch, nil
}

// CreateSubBranch stores an active sub-branch of companyID
func (tf *TestFixtures) CreateSubBranch(ctx context.Context, companyID uuid.UUID, username string) (*models.Branch, error) {
	return tf.createBranch(ctx, companyID, username, models.BranchKindSub)
}

func (tf *TestFixtures) createBranch(ctx context.Context, companyID uuid.UUID, username string, kind models.BranchKind) (*models.Branch, error) {
	hash, err := tf.Passwords.Hash(TestPassword)
	if err != nil {
		return nil, err
	}

	account := &models.Account{PasswordHash: hash, CompanyID: companyID}
	if err := tf.Repos.Accounts.Save(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create test account: %w", err)
	}

	branch := &models.Branch{
		Username:  username,
		Name:      "Branch " + username,
		Kind:      kind,
		AccountID: account.ID,
		CompanyID: companyID,
	}
	if err := tf.Repos.Branches.Save(ctx, branch); err != nil {
		return nil, fmt.Errorf("failed to create test branch: %w", err)
	}
	return branch, nil
}
