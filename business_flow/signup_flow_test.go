package businessflow

import (
	"context"
	"testing"

	"github.com/amirphl/Shiten/app/dto"
	"github.com/amirphl/Shiten/models"
	"github.com/amirphl/Shiten/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterCreatesCompanyAccountAndMainBranch(t *testing.T) {
	env := newFlowEnv(t, nil)
	ctx := context.Background()

	branch, err := env.signup.Register(ctx, acmeRegistration(), NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)

	assert.Equal(t, "acme01", branch.Username)
	assert.Equal(t, "Head Office", branch.Name)
	assert.Equal(t, string(models.BranchKindMain), branch.Kind)
	assert.True(t, branch.Status)

	companies, accounts, branches, _ := env.store.Counts()
	assert.Equal(t, 1, companies)
	assert.Equal(t, 1, accounts)
	assert.Equal(t, 1, branches)

	stored, err := env.repos.Branches.ByUsername(ctx, "acme01")
	require.NoError(t, err)
	require.NotNil(t, stored)
	account, err := env.repos.Accounts.ByID(ctx, stored.AccountID)
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.NotEqual(t, "Secret123", account.PasswordHash)
	assert.Equal(t, stored.CompanyID, account.CompanyID)

	company, err := env.repos.Companies.ByID(ctx, stored.CompanyID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", company.BusinessName)
	assert.Equal(t, "owner@acme.io", company.Email)
}

func TestRegisterConflicts(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate username", func(t *testing.T) {
		env := newFlowEnv(t, nil)
		_, err := env.signup.Register(ctx, acmeRegistration(), nil)
		require.NoError(t, err)

		second := acmeRegistration()
		second.Email = "other@acme.io"
		_, err = env.signup.Register(ctx, second, nil)
		require.Error(t, err)
		assert.True(t, IsUsernameAlreadyExists(err))
		assert.True(t, IsConflict(err))
		assert.True(t, IsFormError(err))
		assert.Equal(t, "username already used", PublicMessage(err))

		// The company and account inserted before the branch were rolled back
		companies, accounts, branches, _ := env.store.Counts()
		assert.Equal(t, 1, companies)
		assert.Equal(t, 1, accounts)
		assert.Equal(t, 1, branches)
	})

	t.Run("duplicate email", func(t *testing.T) {
		env := newFlowEnv(t, nil)
		_, err := env.signup.Register(ctx, acmeRegistration(), nil)
		require.NoError(t, err)

		second := acmeRegistration()
		second.Username = "acme02"
		second.Email = "OWNER@acme.io"
		_, err = env.signup.Register(ctx, second, nil)
		require.Error(t, err)
		assert.True(t, IsEmailAlreadyExists(err))
		assert.True(t, IsConflict(err))
	})
}

func TestRegisterRollsBackOnFailure(t *testing.T) {
	env := newFlowEnv(t, nil)
	ctx := context.Background()

	env.store.FailNext("branches", nil)
	_, err := env.signup.Register(ctx, acmeRegistration(), nil)
	require.Error(t, err)
	assert.Equal(t, "REGISTER_FAILED", ErrorCode(err))
	assert.False(t, IsConflict(err))

	companies, accounts, branches, _ := env.store.Counts()
	assert.Zero(t, companies)
	assert.Zero(t, accounts)
	assert.Zero(t, branches)

	// Nothing was left behind, so the same registration now succeeds
	_, err = env.signup.Register(ctx, acmeRegistration(), nil)
	require.NoError(t, err)
}

func TestRegisterRejectsEmptyPassword(t *testing.T) {
	env := newFlowEnv(t, nil)
	req := acmeRegistration()
	req.Password = ""

	_, err := env.signup.Register(context.Background(), req, nil)
	require.Error(t, err)

	companies, _, _, _ := env.store.Counts()
	assert.Zero(t, companies)
}

func TestRegisterThenLogin(t *testing.T) {
	env := newFlowEnv(t, nil)
	ctx := context.Background()

	_, err := env.signup.Register(ctx, acmeRegistration(), nil)
	require.NoError(t, err)

	resp, err := env.login.Login(ctx, &dto.LoginRequest{Username: "acme01", Password: "Secret123"}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "main", resp.Branch.Kind)
}

func TestSecondMainBranchIsConflict(t *testing.T) {
	env := newFlowEnv(t, nil)
	ctx := context.Background()
	company, mainBranch, err := env.fixtures.CreateCompany(ctx, "Acme", "acme01")
	require.NoError(t, err)

	account := &models.Account{PasswordHash: "hash", CompanyID: company.ID}
	require.NoError(t, env.repos.Accounts.Save(ctx, account))

	err = env.repos.Branches.Save(ctx, &models.Branch{
		Username:  "acme02",
		Name:      "Second main",
		Kind:      models.BranchKindMain,
		AccountID: account.ID,
		CompanyID: company.ID,
	})
	require.Error(t, err)
	assert.True(t, repository.IsUniqueViolationOn(err, repository.ConstraintBranchCompanyMain))

	translated := translateUniqueViolation(err)
	assert.ErrorIs(t, translated, ErrMainBranchAlreadyExists)
	assert.True(t, IsConflict(translated))

	branches, err := env.repos.Branches.ListByCompany(ctx, company.ID)
	require.NoError(t, err)
	require.Len(t, branches, 1)
	assert.Equal(t, mainBranch.ID, branches[0].ID)
}
