// Package middleware holds the HTTP middlewares: admin authentication and
// Redis-backed rate limiting.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"credbroker/internal/service"
)

// AdminAuth guards the administrative routes. It accepts either the Basic
// credential pair or a bearer token previously issued by the admin login
// endpoint. Unauthenticated requests get a 401 with a Basic challenge.
func AdminAuth(admin *service.AdminService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)

			if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
				if admin.VerifyToken(strings.TrimSpace(token)) {
					return next(c)
				}
			}

			if username, password, ok := c.Request().BasicAuth(); ok {
				if admin.VerifyCredentials(username, password) {
					return next(c)
				}
			}

			c.Response().Header().Set("WWW-Authenticate", `Basic realm="admin"`)
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "admin authentication required"})
		}
	}
}
