package middleware

import (
	"crypto/subtle"

	"estimate-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AdminKeyHeader carries the admin key on maintenance routes.
const AdminKeyHeader = "X-Admin-Key"

// RequireAdminKey guards maintenance routes (catalog refresh/import, stats
// reset). The key comes from the X-Admin-Key header or the key query param.
// An empty configured key disables the routes entirely.
func RequireAdminKey(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		got := c.Get(AdminKeyHeader)
		if got == "" {
			got = c.Query("key")
		}
		if key == "" || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			return response.Error(c, "Unauthorized", fiber.StatusForbidden, nil)
		}
		return c.Next()
	}
}
