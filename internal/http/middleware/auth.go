package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"docvoice/internal/logger"
	"docvoice/internal/model"
)

// PrincipalLocalKey is the locals key holding the authenticated model.Principal.
const PrincipalLocalKey = "principal"

// PrincipalResolver turns an Authorization header into a principal.
type PrincipalResolver interface {
	Resolve(ctx context.Context, header string) (model.Principal, error)
}

// RequireAuth rejects requests without a valid bearer token.
// Failures are returned to the global error handler unchanged.
func RequireAuth(r PrincipalResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := r.Resolve(c.UserContext(), c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return err
		}
		c.Locals(PrincipalLocalKey, p)
		c.SetUserContext(logger.WithUserID(c.UserContext(), p.ID))
		return c.Next()
	}
}

// Principal returns the principal stored by RequireAuth.
func Principal(c *fiber.Ctx) (model.Principal, bool) {
	p, ok := c.Locals(PrincipalLocalKey).(model.Principal)
	return p, ok
}
