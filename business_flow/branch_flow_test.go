package businessflow

import (
	"context"
	"testing"

	"github.com/amirphl/Shiten/app/dto"
	"github.com/amirphl/Shiten/models"
	testutil "github.com/amirphl/Shiten/testing"
	"github.com/amirphl/Shiten/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBranchRequest(username string) *dto.CreateBranchRequest {
	return &dto.CreateBranchRequest{Name: "Downtown", Username: username, Password: "Branch123"}
}

func TestCreateBranch(t *testing.T) {
	env := newFlowEnv(t, nil)
	ctx := context.Background()
	company, _, err := env.fixtures.CreateCompany(ctx, "Acme", "acme01")
	require.NoError(t, err)
	admin := env.loginAs(t, "acme01")

	created, err := env.branches.CreateBranch(ctx, admin, newBranchRequest("acmedowntown"), nil)
	require.NoError(t, err)
	assert.Equal(t, string(models.BranchKindSub), created.Kind)
	assert.Equal(t, company.ID.String(), created.CompanyID)

	resp, err := env.login.Login(ctx, &dto.LoginRequest{Username: "acmedowntown", Password: "Branch123"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "branch", resp.Branch.Kind)

	t.Run("duplicate username is a conflict and leaves no account behind", func(t *testing.T) {
		_, accountsBefore, _, _ := env.store.Counts()
		_, err := env.branches.CreateBranch(ctx, admin, newBranchRequest("acmedowntown"), nil)
		require.Error(t, err)
		assert.True(t, IsUsernameAlreadyExists(err))
		_, accountsAfter, _, _ := env.store.Counts()
		assert.Equal(t, accountsBefore, accountsAfter)
	})

	t.Run("sub-branch is forbidden", func(t *testing.T) {
		resp, err := env.login.Login(ctx, &dto.LoginRequest{Username: "acmedowntown", Password: "Branch123"}, nil)
		require.NoError(t, err)
		sub, err := env.sessions.Resolve(ctx, resp.Token, nil)
		require.NoError(t, err)

		_, err = env.branches.CreateBranch(ctx, sub, newBranchRequest("acmeuptown"), nil)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestListAndGetBranches(t *testing.T) {
	env := newFlowEnv(t, nil)
	ctx := context.Background()
	company, main, err := env.fixtures.CreateCompany(ctx, "Acme", "acme01")
	require.NoError(t, err)
	_, err = env.fixtures.CreateSubBranch(ctx, company.ID, "acmesub1")
	require.NoError(t, err)
	_, err = env.fixtures.CreateSubBranch(ctx, company.ID, "acmesub2")
	require.NoError(t, err)

	list, err := env.branches.ListByCompany(ctx, company.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, main.ID.String(), list[0].ID)

	_, err = env.branches.ListByCompany(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNoBranchesFound)

	got, err := env.branches.GetBranch(ctx, main.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme01", got.Username)

	_, err = env.branches.GetBranch(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrBranchNotFound)
}

func TestUpdateBranch(t *testing.T) {
	env := newFlowEnv(t, nil)
	ctx := context.Background()
	company, _, err := env.fixtures.CreateCompany(ctx, "Acme", "acme01")
	require.NoError(t, err)
	sub, err := env.fixtures.CreateSubBranch(ctx, company.ID, "acmesub1")
	require.NoError(t, err)
	_, foreign, err := env.fixtures.CreateCompany(ctx, "Globex", "globex01")
	require.NoError(t, err)
	admin := env.loginAs(t, "acme01")

	updated, err := env.branches.UpdateBranch(ctx, admin, sub.ID, &dto.UpdateBranchRequest{Name: utils.ToPtr("Renamed")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "acmesub1", updated.Username)

	updated, err = env.branches.UpdateBranch(ctx, admin, sub.ID, &dto.UpdateBranchRequest{Username: utils.ToPtr("acmesub9")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "acmesub9", updated.Username)

	_, err = env.branches.UpdateBranch(ctx, admin, sub.ID, &dto.UpdateBranchRequest{}, nil)
	assert.ErrorIs(t, err, ErrNoFieldsToUpdate)

	_, err = env.branches.UpdateBranch(ctx, admin, sub.ID, &dto.UpdateBranchRequest{Username: utils.ToPtr("globex01")}, nil)
	assert.True(t, IsUsernameAlreadyExists(err))

	_, err = env.branches.UpdateBranch(ctx, admin, foreign.ID, &dto.UpdateBranchRequest{Name: utils.ToPtr("Hijacked")}, nil)
	assert.ErrorIs(t, err, ErrBranchNotFound)
	untouched, err := env.repos.Branches.ByID(ctx, foreign.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "Hijacked", untouched.Name)
}

func TestUpdatePasswordSignsTheBranchOut(t *testing.T) {
	env := newFlowEnv(t, nil)
	ctx := context.Background()
	company, _, err := env.fixtures.CreateCompany(ctx, "Acme", "acme01")
	require.NoError(t, err)
	sub, err := env.fixtures.CreateSubBranch(ctx, company.ID, "acmesub1")
	require.NoError(t, err)
	admin := env.loginAs(t, "acme01")
	subIdentity := env.loginAs(t, "acmesub1")

	err = env.branches.UpdatePassword(ctx, admin, sub.ID, &dto.UpdatePasswordRequest{Password: "Changed123"}, nil)
	require.NoError(t, err)

	_, err = env.sessions.Resolve(ctx, subIdentity.Session.Token, nil)
	assert.True(t, IsUnauthenticated(err))

	_, err = env.login.Login(ctx, &dto.LoginRequest{Username: "acmesub1", Password: testutil.TestPassword}, nil)
	assert.True(t, IsIncorrectCredentials(err))
	_, err = env.login.Login(ctx, &dto.LoginRequest{Username: "acmesub1", Password: "Changed123"}, nil)
	require.NoError(t, err)

	err = env.branches.UpdatePassword(ctx, admin, uuid.New(), &dto.UpdatePasswordRequest{Password: "Changed123"}, nil)
	assert.ErrorIs(t, err, ErrBranchNotFound)
}

func TestSetBranchStatus(t *testing.T) {
	env := newFlowEnv(t, nil)
	ctx := context.Background()
	company, main, err := env.fixtures.CreateCompany(ctx, "Acme", "acme01")
	require.NoError(t, err)
	sub, err := env.fixtures.CreateSubBranch(ctx, company.ID, "acmesub1")
	require.NoError(t, err)
	admin := env.loginAs(t, "acme01")
	subIdentity := env.loginAs(t, "acmesub1")

	deactivated, err := env.branches.SetStatus(ctx, admin, sub.ID, false, nil)
	require.NoError(t, err)
	assert.False(t, deactivated.Status)
	require.NotNil(t, deactivated.DeletedAt)
	assert.Equal(t, env.clock.Now(), *deactivated.DeletedAt)

	_, err = env.sessions.Resolve(ctx, subIdentity.Session.Token, nil)
	assert.True(t, IsUnauthenticated(err))
	_, err = env.login.Login(ctx, &dto.LoginRequest{Username: "acmesub1", Password: testutil.TestPassword}, nil)
	assert.True(t, IsIncorrectCredentials(err))

	activated, err := env.branches.SetStatus(ctx, admin, sub.ID, true, nil)
	require.NoError(t, err)
	assert.True(t, activated.Status)
	assert.Nil(t, activated.DeletedAt)
	_, err = env.login.Login(ctx, &dto.LoginRequest{Username: "acmesub1", Password: testutil.TestPassword}, nil)
	require.NoError(t, err)

	_, err = env.branches.SetStatus(ctx, admin, main.ID, false, nil)
	assert.ErrorIs(t, err, ErrMainBranchImmutable)

	entries := env.store.AuditEntries()
	var actions []string
	for _, entry := range entries {
		actions = append(actions, entry.Action)
	}
	assert.Contains(t, actions, models.AuditActionBranchDeactivated)
	assert.Contains(t, actions, models.AuditActionBranchActivated)
}
