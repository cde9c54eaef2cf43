package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/atelier-studio/admin-service/internal/application"
)

// Handler holds all HTTP handler methods.
type Handler struct {
	svc *application.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *application.Service) *Handler {
	return &Handler{svc: svc}
}

// cleanupResponse is the envelope the dashboard consumes. The count covers
// the primary pass only; orphan-notification deletions are incidental and
// not surfaced here.
type cleanupResponse struct {
	Success      bool   `json:"success"`
	DeletedCount int    `json:"deletedCount"`
	Error        string `json:"error,omitempty"`
}

// TrashCount GET /admin/trash/count
func (h *Handler) TrashCount(c echo.Context) error {
	count := h.svc.SoftDeletedCount(c.Request().Context())
	return c.JSON(http.StatusOK, map[string]int64{"count": count})
}

// Cleanup POST /admin/trash/cleanup
// Always answers 200 with the success envelope: the dashboard branches on
// the success flag, not the status code.
func (h *Handler) Cleanup(c echo.Context) error {
	run, err := h.svc.CleanupSoftDeleted(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusOK, cleanupResponse{Success: false, Error: err.Error()})
	}
	return c.JSON(http.StatusOK, cleanupResponse{Success: true, DeletedCount: run.DeletedCount})
}

// ListRuns GET /admin/cleanup/runs
func (h *Handler) ListRuns(c echo.Context) error {
	limit := parseIntQuery(c, "limit", 20)

	runs, err := h.svc.ListRuns(c.Request().Context(), limit)
	if err != nil {
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, map[string]any{
		"data":  runs,
		"limit": limit,
	})
}

// --- Healthcheck ---

// Health GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// --- Helpers ---

func parseIntQuery(c echo.Context, key string, def int) int {
	v, err := strconv.Atoi(c.QueryParam(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}
