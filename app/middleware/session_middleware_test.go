package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	businessflow "github.com/amirphl/Shiten/business_flow"
	"github.com/amirphl/Shiten/config"
	"github.com/amirphl/Shiten/models"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSessions answers Resolve with a fixed identity or error
type stubSessions struct {
	identity *businessflow.Identity
	err      error
}

func (s *stubSessions) Issue(context.Context, *models.Branch, *businessflow.ClientMetadata) (*models.Session, error) {
	return nil, errors.New("not used")
}

func (s *stubSessions) Resolve(context.Context, string, *businessflow.ClientMetadata) (*businessflow.Identity, error) {
	return s.identity, s.err
}

func (s *stubSessions) Revoke(context.Context, *businessflow.Identity) error { return nil }

func (s *stubSessions) PurgeExpired(context.Context) (int64, error) { return 0, nil }

func (s *stubSessions) TTL() time.Duration { return time.Hour }

func newAuthenticatedApp(sessions businessflow.SessionFlow) *fiber.App {
	cookie := NewSessionCookie(config.SessionConfig{CookieName: "_session", CookieHTTPOnly: true, CookieSameSite: "Lax"})
	m := NewSessionMiddleware(sessions, cookie)

	app := fiber.New()
	app.Get("/me", m.Authenticate(), func(c fiber.Ctx) error {
		identity, ok := businessflow.IdentityFromContext(c.Context())
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendString(identity.Branch.Username)
	})
	return app
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "_session" {
			return cookie
		}
	}
	return nil
}

func TestAuthenticateCookieHandling(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCleared bool
	}{
		{name: "unknown token clears cookie", err: businessflow.ErrSessionNotFound, wantCleared: true},
		{name: "orphaned session clears cookie", err: businessflow.ErrSessionAccountNotFound, wantCleared: true},
		{name: "expired session clears cookie", err: businessflow.ErrSessionExpired, wantCleared: true},
		{name: "superseded token keeps the newer cookie", err: businessflow.ErrSessionRotated},
		{name: "missing token sets nothing", err: businessflow.ErrNoSessionPresented},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newAuthenticatedApp(&stubSessions{err: tt.err})

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.AddCookie(&http.Cookie{Name: "_session", Value: "tokenA"})
			resp, err := app.Test(req, fiber.TestConfig{Timeout: 5 * time.Second})
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			cookie := sessionCookie(resp)
			if tt.wantCleared {
				require.NotNil(t, cookie)
				assert.Empty(t, cookie.Value)
				assert.True(t, cookie.Expires.Before(time.Now()))
				return
			}
			assert.Nil(t, cookie)
			assert.Empty(t, resp.Header.Values(fiber.HeaderSetCookie))
		})
	}
}

func TestAuthenticateSetsRotatedToken(t *testing.T) {
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	identity := &businessflow.Identity{
		Branch:  &models.Branch{ID: uuid.New(), Username: "acme01", Kind: models.BranchKindMain},
		Session: &models.Session{ID: uuid.New(), Token: "tokenB", ExpiresAt: expires},
	}
	app := newAuthenticatedApp(&stubSessions{identity: identity})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "_session", Value: "tokenA"})
	resp, err := app.Test(req, fiber.TestConfig{Timeout: 5 * time.Second})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	assert.Equal(t, "tokenB", cookie.Value)
	assert.True(t, cookie.HttpOnly)
}
