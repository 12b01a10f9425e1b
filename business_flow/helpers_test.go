package businessflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/Shiten/app/dto"
	"github.com/amirphl/Shiten/app/services"
	testutil "github.com/amirphl/Shiten/testing"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// manualClock is a Clock the test moves forward by hand
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type flowEnv struct {
	store    *testutil.MemStore
	repos    testutil.Repositories
	fixtures *testutil.TestFixtures
	clock    *manualClock
	sessions SessionFlow
	signup   SignupFlow
	login    LoginFlow
	branches BranchFlow
	company  CompanyFlow
}

func newFlowEnv(t *testing.T, throttle services.LoginThrottle) *flowEnv {
	t.Helper()

	store := testutil.NewMemStore()
	repos := store.Repositories()
	clock := newManualClock()
	passwords := services.NewBcryptPasswordService(bcrypt.MinCost)
	tokens, err := services.NewSessionTokenService(32)
	require.NoError(t, err)

	sessions := NewSessionFlow(repos.Sessions, repos.Branches, repos.AuditLogs, tokens, 24*time.Hour, clock.Now)

	return &flowEnv{
		store:    store,
		repos:    repos,
		fixtures: testutil.NewTestFixtures(repos),
		clock:    clock,
		sessions: sessions,
		signup:   NewSignupFlow(repos.Companies, repos.Accounts, repos.Branches, repos.AuditLogs, passwords, repos.Transactor),
		login:    NewLoginFlow(repos.Branches, repos.Companies, repos.Accounts, repos.AuditLogs, passwords, throttle, sessions),
		branches: NewBranchFlow(repos.Branches, repos.Accounts, repos.Sessions, repos.AuditLogs, passwords, repos.Transactor, clock.Now),
		company:  NewCompanyFlow(repos.Companies, repos.AuditLogs),
	}
}

func acmeRegistration() *dto.RegisterRequest {
	return &dto.RegisterRequest{
		Name:         "Head Office",
		BusinessName: "Acme",
		Email:        "owner@acme.io",
		Username:     "acme01",
		Password:     "Secret123",
	}
}

// loginAs logs username in with the fixture password and resolves the session into an identity
func (e *flowEnv) loginAs(t *testing.T, username string) *Identity {
	t.Helper()
	ctx := context.Background()

	resp, err := e.login.Login(ctx, &dto.LoginRequest{Username: username, Password: testutil.TestPassword}, nil)
	require.NoError(t, err)

	identity, err := e.sessions.Resolve(ctx, resp.Token, nil)
	require.NoError(t, err)
	return identity
}
