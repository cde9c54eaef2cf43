package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/atelier-studio/admin-service/internal/transport/mw"
)

// NewRouter sets up all Echo routes and middleware.
func NewRouter(h *Handler, authBaseURL, authRealm string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
	}))

	// Health (no auth required)
	e.GET("/health", h.Health)

	// Admin API — requires an authenticated admin
	admin := e.Group("/admin")
	admin.Use(mw.AdminAuth(authBaseURL, authRealm))

	admin.GET("/trash/count", h.TrashCount)
	admin.POST("/trash/cleanup", h.Cleanup)
	admin.GET("/cleanup/runs", h.ListRuns)

	return e
}
