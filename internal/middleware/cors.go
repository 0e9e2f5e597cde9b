package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	corsAllowMethods  = "GET, POST, OPTIONS"
	corsAllowHeaders  = "Content-Type, Authorization, X-Request-ID"
	corsExposeHeaders = "X-Request-ID"
)

// CORSHeaders returns a func that sets the CORS response headers for
// allowOrigins, which is "*" or a comma separated list.
func CORSHeaders(allowOrigins string) func(c *fiber.Ctx) {
	wildcard := strings.TrimSpace(allowOrigins) == "*"
	allow := make(map[string]struct{})
	for _, origin := range strings.Split(allowOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			allow[origin] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) {
		if wildcard {
			c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
		} else if origin := c.Get(fiber.HeaderOrigin); origin != "" {
			if _, ok := allow[origin]; ok {
				c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
			}
			c.Vary(fiber.HeaderOrigin)
		}
		c.Set(fiber.HeaderAccessControlAllowMethods, corsAllowMethods)
		c.Set(fiber.HeaderAccessControlAllowHeaders, corsAllowHeaders)
		c.Set(fiber.HeaderAccessControlExposeHeaders, corsExposeHeaders)
	}
}

// CORS sets the CORS headers before the handler runs, so error responses
// and 405s carry them too. Preflight requests are answered with 204.
func CORS(allowOrigins string) fiber.Handler {
	setHeaders := CORSHeaders(allowOrigins)

	return func(c *fiber.Ctx) error {
		setHeaders(c)
		if c.Method() == fiber.MethodOptions {
			c.Set(fiber.HeaderAccessControlMaxAge, "86400")
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}
