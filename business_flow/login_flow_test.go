package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/amirphl/Shiten/app/dto"
	"github.com/amirphl/Shiten/app/services"
	"github.com/amirphl/Shiten/models"
	testutil "github.com/amirphl/Shiten/testing"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginIssuesSession(t *testing.T) {
	env := newFlowEnv(t, nil)
	ctx := context.Background()
	_, branch, err := env.fixtures.CreateCompany(ctx, "Acme", "acme01")
	require.NoError(t, err)

	resp, err := env.login.Login(ctx, &dto.LoginRequest{Username: "acme01", Password: testutil.TestPassword}, NewClientMetadata("10.1.1.1", "ua"))
	require.NoError(t, err)

	assert.Equal(t, branch.ID.String(), resp.Branch.ID)
	assert.Equal(t, env.clock.Now().Add(24*time.Hour), resp.ExpiresAt)

	session, err := env.repos.Sessions.ByToken(ctx, resp.Token)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, branch.ID, session.BranchID)

	entries := env.store.AuditEntries()
	require.NotEmpty(t, entries)
	last := entries[len(entries)-1]
	assert.Equal(t, models.AuditActionLoginSuccess, last.Action)
	require.NotNil(t, last.IPAddress)
	assert.Equal(t, "10.1.1.1", *last.IPAddress)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		prepare  func(t *testing.T, env *flowEnv)
		username string
		password string
	}{
		{
			name:     "wrong password",
			username: "acme01",
			password: "Wrong1234",
		},
		{
			name:     "unknown username",
			username: "nobody99",
			password: testutil.TestPassword,
		},
		{
			name: "disabled company",
			prepare: func(t *testing.T, env *flowEnv) {
				branch, err := env.repos.Branches.ByUsername(ctx, "acme01")
				require.NoError(t, err)
				_, err = env.repos.Companies.SetStatus(ctx, branch.CompanyID, false)
				require.NoError(t, err)
			},
			username: "acme01",
			password: testutil.TestPassword,
		},
		{
			name: "disabled branch",
			prepare: func(t *testing.T, env *flowEnv) {
				branch, err := env.repos.Branches.ByUsername(ctx, "acmesub1")
				require.NoError(t, err)
				_, err = env.repos.Branches.SetStatus(ctx, branch.ID, branch.CompanyID, false, env.clock.Now())
				require.NoError(t, err)
			},
			username: "acmesub1",
			password: testutil.TestPassword,
		},
	}

	var messages []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newFlowEnv(t, nil)
			company, _, err := env.fixtures.CreateCompany(ctx, "Acme", "acme01")
			require.NoError(t, err)
			_, err = env.fixtures.CreateSubBranch(ctx, company.ID, "acmesub1")
			require.NoError(t, err)
			if tt.prepare != nil {
				tt.prepare(t, env)
			}

			resp, err := env.login.Login(ctx, &dto.LoginRequest{Username: tt.username, Password: tt.password}, nil)
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.True(t, IsIncorrectCredentials(err))
			assert.True(t, IsUnauthenticated(err))
			assert.True(t, IsFormError(err))
			messages = append(messages, PublicMessage(err))

			_, _, _, sessions := env.store.Counts()
			assert.Zero(t, sessions)

			entries := env.store.AuditEntries()
			require.NotEmpty(t, entries)
			assert.Equal(t, models.AuditActionLoginFailed, entries[len(entries)-1].Action)
		})
	}

	require.Len(t, messages, len(tests))
	for _, msg := range messages {
		assert.Equal(t, "incorrect credentials", msg)
	}
}

func TestLoginThrottle(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := newFlowEnv(t, services.NewLoginThrottle(client, "test:", 2, time.Minute))
	ctx := context.Background()
	_, _, err := env.fixtures.CreateCompany(ctx, "Acme", "acme01")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := env.login.Login(ctx, &dto.LoginRequest{Username: "acme01", Password: "Wrong1234"}, nil)
		require.True(t, IsIncorrectCredentials(err))
	}

	_, err = env.login.Login(ctx, &dto.LoginRequest{Username: "acme01", Password: testutil.TestPassword}, nil)
	require.Error(t, err)
	assert.True(t, IsTooManyLoginAttempts(err))
	assert.True(t, IsRateLimited(err))
	assert.False(t, IsUnauthenticated(err))

	mr.FastForward(2 * time.Minute)

	_, err = env.login.Login(ctx, &dto.LoginRequest{Username: "acme01", Password: testutil.TestPassword}, nil)
	require.NoError(t, err)
	assert.False(t, mr.Exists("test:login_failures:acme01"))
}

func TestLoginThrottleIsPerClientAddress(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := newFlowEnv(t, services.NewLoginThrottle(client, "test:", 2, time.Minute))
	ctx := context.Background()
	_, _, err := env.fixtures.CreateCompany(ctx, "Acme", "acme01")
	require.NoError(t, err)

	attacker := NewClientMetadata("203.0.113.7", "curl/8.0")
	owner := NewClientMetadata("198.51.100.4", "Mozilla/5.0")

	for i := 0; i < 2; i++ {
		_, err := env.login.Login(ctx, &dto.LoginRequest{Username: "acme01", Password: "Wrong1234"}, attacker)
		require.True(t, IsIncorrectCredentials(err))
	}

	_, err = env.login.Login(ctx, &dto.LoginRequest{Username: "acme01", Password: testutil.TestPassword}, attacker)
	assert.True(t, IsTooManyLoginAttempts(err))

	resp, err := env.login.Login(ctx, &dto.LoginRequest{Username: "acme01", Password: testutil.TestPassword}, owner)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.True(t, mr.Exists("test:login_failures:acme01:203.0.113.7"))
}

func TestLoginThrottleFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	env := newFlowEnv(t, services.NewLoginThrottle(client, "test:", 1, time.Minute))
	ctx := context.Background()
	_, _, err := env.fixtures.CreateCompany(ctx, "Acme", "acme01")
	require.NoError(t, err)

	_, err = env.login.Login(ctx, &dto.LoginRequest{Username: "acme01", Password: testutil.TestPassword}, nil)
	require.NoError(t, err)
}

func TestSignOutAndMe(t *testing.T) {
	env := newFlowEnv(t, nil)
	ctx := context.Background()
	_, branch, err := env.fixtures.CreateCompany(ctx, "Acme", "acme01")
	require.NoError(t, err)

	identity := env.loginAs(t, "acme01")

	me, err := env.login.Me(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, branch.ID.String(), me.ID)
	assert.Equal(t, "acme01", me.Username)

	require.NoError(t, env.login.SignOut(ctx, identity, nil))

	_, err = env.sessions.Resolve(ctx, identity.Session.Token, nil)
	assert.True(t, IsUnauthenticated(err))

	_, err = env.login.Me(ctx, nil)
	assert.ErrorIs(t, err, ErrIdentityRequired)
	assert.ErrorIs(t, env.login.SignOut(ctx, nil, nil), ErrIdentityRequired)
}
