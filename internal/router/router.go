// Package router wires the HTTP routes to their handlers and middleware.
package router

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"

	"credbroker/internal/handler"
	"credbroker/internal/middleware"
	"credbroker/internal/service"
)

// RegisterBase installs the global middleware and the health endpoint.
func RegisterBase(e *echo.Echo, logger *slog.Logger, health *handler.HealthHandler) {
	e.Use(slogecho.New(logger))
	e.Use(echomw.Recover())
	e.GET("/healthz", health.Health)
}

// RegisterAuth registers the credential-flow endpoints under /auth. The
// rate limiter applies to the whole group; every route here is reachable
// without a session.
func RegisterAuth(e *echo.Echo, h *handler.OAuthHandler, rateLimit echo.MiddlewareFunc) {
	g := e.Group("/auth")
	if rateLimit != nil {
		g.Use(rateLimit)
	}

	g.GET("/login", h.Login)
	g.GET("/callback", h.Callback)
	g.POST("/session", h.CreateSession)
	g.GET("/user_info", h.UserInfo)
	g.POST("/token", h.Token)
	g.POST("/token/refresh", h.RefreshToken)
	g.POST("/logout", h.Logout)
}

// RegisterAdmin registers the administrative surface under /admin, guarded
// by Basic or bearer authentication.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, admin *service.AdminService) {
	g := e.Group("/admin")
	g.Use(middleware.AdminAuth(admin))

	g.POST("/login", h.Login)

	g.GET("/whitelist", h.ListWhitelist)
	g.POST("/whitelist", h.AddWhitelist)
	g.DELETE("/whitelist/:external_user_id", h.RemoveWhitelist)

	g.GET("/users", h.ListUsers)
	g.GET("/users/:id/sessions", h.ListUserSessions)
	g.DELETE("/users/:id/sessions", h.TerminateUserSessions)
	g.DELETE("/sessions/:session_id", h.TerminateSession)

	g.GET("/statistics", h.Statistics)
	g.GET("/audit", h.Audit)
	g.POST("/maintenance/purge", h.Purge)
}
