package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/hifz-api/internal/policy"
	"github.com/noah-isme/hifz-api/internal/utils"
)

// RequireSubject rejects requests whose token did not carry a user, a known role and a school.
// It runs after JWTProtected.
func RequireSubject() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(uint)
		if userID == 0 {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}

		if policy.ParseRole(normalizeRoleValue(c.Locals("user_role"))) == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "token carries no recognised role")
		}

		schoolID, _ := c.Locals("school_id").(uint)
		if schoolID == 0 {
			return utils.SendError(c, fiber.StatusUnauthorized, "token carries no school")
		}

		return c.Next()
	}
}
