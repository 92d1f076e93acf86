// Package handlers adapts the HTTP surface to the services. Handlers parse
// and validate request bodies, resolve the acting principal, and translate
// domain errors into status codes; every rule lives in the service layer.
package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/huddleapp/huddle-backend/internal/apperr"
	"github.com/huddleapp/huddle-backend/internal/dto"
	"github.com/huddleapp/huddle-backend/internal/identity"
)

// respondErr writes a domain error with its mapped status code. Unknown
// errors become opaque 500s so internals never leak to clients.
func respondErr(c *fiber.Ctx, err error) error {
	status := apperr.StatusCode(err)
	message := err.Error()
	if status == fiber.StatusInternalServerError {
		message = "Internal server error"
	}
	return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: message})
}

func requirePrincipal(c *fiber.Ctx) (*identity.Principal, error) {
	principal, err := identity.FromContext(c)
	if err != nil {
		return nil, c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}
	return principal, nil
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: "Invalid request body",
	})
}
