package middleware

import (
	"strings"
	"time"

	"github.com/amirphl/Shiten/config"
	"github.com/amirphl/Shiten/utils"
	"github.com/gofiber/fiber/v3"
)

// SessionCookie writes and clears the cookie carrying the session token
type SessionCookie struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	HTTPOnly bool
	SameSite string
}

// NewSessionCookie builds the cookie settings from configuration
func NewSessionCookie(cfg config.SessionConfig) SessionCookie {
	cookie := SessionCookie{
		Name:     cfg.CookieName,
		Path:     cfg.CookiePath,
		Domain:   cfg.CookieDomain,
		Secure:   cfg.CookieSecure,
		HTTPOnly: cfg.CookieHTTPOnly,
		SameSite: normalizeSameSite(cfg.CookieSameSite),
	}
	if cookie.Name == "" {
		cookie.Name = utils.DefaultSessionCookieName
	}
	if cookie.Path == "" {
		cookie.Path = "/"
	}
	return cookie
}

func normalizeSameSite(value string) string {
	switch strings.ToLower(value) {
	case "strict":
		return fiber.CookieSameSiteStrictMode
	case "none":
		return fiber.CookieSameSiteNoneMode
	default:
		return fiber.CookieSameSiteLaxMode
	}
}

// Token reads the session token presented with the request
func (s SessionCookie) Token(c fiber.Ctx) string {
	return c.Cookies(s.Name)
}

// Set issues token in the cookie until expiresAt
func (s SessionCookie) Set(c fiber.Ctx, token string, expiresAt time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     s.Name,
		Value:    token,
		Path:     s.Path,
		Domain:   s.Domain,
		Expires:  expiresAt,
		Secure:   s.Secure,
		HTTPOnly: s.HTTPOnly,
		SameSite: s.SameSite,
	})
}

// Clear tells the client to drop the cookie
func (s SessionCookie) Clear(c fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     s.Name,
		Value:    "",
		Path:     s.Path,
		Domain:   s.Domain,
		Expires:  time.Unix(1, 0).UTC(),
		Secure:   s.Secure,
		HTTPOnly: s.HTTPOnly,
		SameSite: s.SameSite,
	})
}
