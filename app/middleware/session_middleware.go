// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"context"
	"errors"

	"github.com/amirphl/Shiten/app/dto"
	businessflow "github.com/amirphl/Shiten/business_flow"
	"github.com/amirphl/Shiten/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

// SessionMiddleware resolves the session cookie of protected endpoints
type SessionMiddleware struct {
	sessions businessflow.SessionFlow
	cookie   SessionCookie
}

// NewSessionMiddleware creates a new session middleware
func NewSessionMiddleware(sessions businessflow.SessionFlow, cookie SessionCookie) *SessionMiddleware {
	return &SessionMiddleware{
		sessions: sessions,
		cookie:   cookie,
	}
}

// Authenticate resolves and rotates the presented session. The rotated token is written to the response
// before the handler runs; the resolved identity travels in the request context.
func (m *SessionMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		metadata := businessflow.NewClientMetadata(c.IP(), c.Get(fiber.HeaderUserAgent))
		metadata.SetRequestID(requestid.FromContext(c))

		ctx, cancel := context.WithTimeout(c.Context(), utils.DefaultRequestTimeout)
		identity, err := m.sessions.Resolve(ctx, m.cookie.Token(c), metadata)
		cancel()

		if err != nil {
			sessionResolutions.WithLabelValues(resolutionOutcome(err)).Inc()
			if !businessflow.IsUnauthenticated(err) {
				return err
			}
			// A superseded token means a concurrent request already set the newer cookie
			if !businessflow.IsNoSessionPresented(err) && !businessflow.IsSessionRotated(err) {
				m.cookie.Clear(c)
			}
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Error:   businessflow.PublicMessage(err),
				Code:    "UNAUTHENTICATED",
			})
		}

		sessionResolutions.WithLabelValues("rotated").Inc()
		m.cookie.Set(c, identity.Session.Token, identity.Session.ExpiresAt)
		c.SetContext(businessflow.WithIdentity(c.Context(), identity))

		return c.Next()
	}
}

func resolutionOutcome(err error) string {
	switch {
	case errors.Is(err, businessflow.ErrNoSessionPresented):
		return "missing"
	case errors.Is(err, businessflow.ErrSessionNotFound):
		return "not_found"
	case errors.Is(err, businessflow.ErrSessionAccountNotFound):
		return "orphaned"
	case errors.Is(err, businessflow.ErrSessionExpired):
		return "expired"
	case errors.Is(err, businessflow.ErrSessionRotated):
		return "superseded"
	default:
		return "error"
	}
}
