package middleware

import (
	"github.com/amirphl/Shiten/app/dto"
	businessflow "github.com/amirphl/Shiten/business_flow"
	"github.com/gofiber/fiber/v3"
)

// RequireAdministrator lets only main branches through. It must run after SessionMiddleware.Authenticate.
func RequireAdministrator() fiber.Handler {
	return func(c fiber.Ctx) error {
		identity, _ := businessflow.IdentityFromContext(c.Context())

		err := businessflow.RequireAdministrator(identity)
		switch {
		case err == nil:
			return c.Next()
		case businessflow.IsForbidden(err):
			return c.Status(fiber.StatusForbidden).JSON(dto.APIResponse{
				Success: false,
				Error:   businessflow.PublicMessage(err),
				Code:    "FORBIDDEN",
			})
		default:
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Error:   businessflow.PublicMessage(err),
				Code:    "UNAUTHENTICATED",
			})
		}
	}
}
