package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/returnflow/pkg/util/errorutil"
)

// Role is a staff role carried in the token.
type Role string

const (
	// RoleAgent may read returns and move them along the lifecycle.
	RoleAgent Role = "agent"
	// RoleSupervisor may additionally reject returns.
	RoleSupervisor Role = "supervisor"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAgent || r == RoleSupervisor
}

// RequireRole ensures the staff principal has one of the allowed roles. No
// roles means any authenticated staff member.
func RequireRole(allowed ...Role) fiber.Handler {
	allowedSet := make(map[Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
