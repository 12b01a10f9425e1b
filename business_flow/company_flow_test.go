package businessflow

import (
	"context"
	"testing"

	"github.com/amirphl/Shiten/app/dto"
	testutil "github.com/amirphl/Shiten/testing"
	"github.com/amirphl/Shiten/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddDetailsAndUpdateCompany(t *testing.T) {
	env := newFlowEnv(t, nil)
	ctx := context.Background()
	company, _, err := env.fixtures.CreateCompany(ctx, "Acme", "acme01")
	require.NoError(t, err)
	other, _, err := env.fixtures.CreateCompany(ctx, "Globex", "globex01")
	require.NoError(t, err)
	admin := env.loginAs(t, "acme01")

	details, err := env.company.AddDetails(ctx, admin, company.ID, &dto.AddCompanyDetailsRequest{
		Mission:     "Make anvils",
		Vision:      "Anvils everywhere",
		Description: "Purveyor of fine anvils",
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, details.Mission)
	assert.Equal(t, "Make anvils", *details.Mission)

	updated, err := env.company.UpdateCompany(ctx, admin, company.ID, &dto.UpdateCompanyRequest{
		BusinessName: utils.ToPtr("Acme Corp"),
		Email:        utils.ToPtr(" Hello@Acme.io "),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", updated.BusinessName)
	assert.Equal(t, "hello@acme.io", updated.Email)
	assert.Equal(t, "Make anvils", *updated.Mission)

	_, err = env.company.UpdateCompany(ctx, admin, company.ID, &dto.UpdateCompanyRequest{}, nil)
	assert.ErrorIs(t, err, ErrNoFieldsToUpdate)

	_, err = env.company.UpdateCompany(ctx, admin, company.ID, &dto.UpdateCompanyRequest{Email: utils.ToPtr(other.Email)}, nil)
	assert.True(t, IsEmailAlreadyExists(err))

	_, err = env.company.UpdateCompany(ctx, admin, other.ID, &dto.UpdateCompanyRequest{BusinessName: utils.ToPtr("Taken")}, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCompanyAdministrationRequiresMainBranch(t *testing.T) {
	env := newFlowEnv(t, nil)
	ctx := context.Background()
	company, _, err := env.fixtures.CreateCompany(ctx, "Acme", "acme01")
	require.NoError(t, err)
	_, err = env.fixtures.CreateSubBranch(ctx, company.ID, "acmesub1")
	require.NoError(t, err)
	sub := env.loginAs(t, "acmesub1")

	_, err = env.company.SetStatus(ctx, sub, company.ID, false, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = env.company.AddDetails(ctx, sub, company.ID, &dto.AddCompanyDetailsRequest{Mission: "xxxxx", Vision: "xxxxx", Description: "xxxxx"}, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCompanyStatusBlocksLoginOnly(t *testing.T) {
	env := newFlowEnv(t, nil)
	ctx := context.Background()
	company, _, err := env.fixtures.CreateCompany(ctx, "Acme", "acme01")
	require.NoError(t, err)
	admin := env.loginAs(t, "acme01")

	deactivated, err := env.company.SetStatus(ctx, admin, company.ID, false, nil)
	require.NoError(t, err)
	assert.False(t, deactivated.Status)

	_, err = env.login.Login(ctx, &dto.LoginRequest{Username: "acme01", Password: testutil.TestPassword}, nil)
	assert.True(t, IsIncorrectCredentials(err))

	// The existing session survives so the company can be reactivated
	admin, err = env.sessions.Resolve(ctx, admin.Session.Token, nil)
	require.NoError(t, err)

	activated, err := env.company.SetStatus(ctx, admin, company.ID, true, nil)
	require.NoError(t, err)
	assert.True(t, activated.Status)

	_, err = env.login.Login(ctx, &dto.LoginRequest{Username: "acme01", Password: testutil.TestPassword}, nil)
	require.NoError(t, err)
}

func TestListAndGetCompanies(t *testing.T) {
	env := newFlowEnv(t, nil)
	ctx := context.Background()

	list, err := env.company.ListCompanies(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	acme, _, err := env.fixtures.CreateCompany(ctx, "Acme", "acme01")
	require.NoError(t, err)
	_, _, err = env.fixtures.CreateCompany(ctx, "Globex", "globex01")
	require.NoError(t, err)

	list, err = env.company.ListCompanies(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Acme", list[0].BusinessName)

	got, err := env.company.GetCompany(ctx, acme.ID)
	require.NoError(t, err)
	assert.Equal(t, acme.Email, got.Email)

	_, err = env.company.GetCompany(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrCompanyNotFound)
}
