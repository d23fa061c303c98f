// internal/api/v2/api.go
package api

import (
	"crypto/rand"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tphakala/brandforge-go/internal/conf"
	"github.com/tphakala/brandforge-go/internal/datastore"
	"github.com/tphakala/brandforge-go/internal/logging"
	"github.com/tphakala/brandforge-go/internal/observability"
	"github.com/tphakala/brandforge-go/internal/orchestrator"
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo         *echo.Echo
	Group        *echo.Group
	DS           datastore.Interface
	Settings     *conf.Settings
	Orchestrator *orchestrator.Service
	metrics      *observability.Metrics
	apiLogger    *slog.Logger
	startTime    time.Time
}

// New creates a new API controller and registers its routes under /api/v2.
func New(e *echo.Echo, ds datastore.Interface, svc *orchestrator.Service,
	settings *conf.Settings, metrics *observability.Metrics) *Controller {

	logger := logging.ForService("api")
	if logger == nil {
		logger = slog.Default().With("service", "api")
	}

	c := &Controller{
		Echo:         e,
		DS:           ds,
		Settings:     settings,
		Orchestrator: svc,
		metrics:      metrics,
		apiLogger:    logger,
		startTime:    time.Now(),
	}

	c.Group = e.Group("/api/v2")
	c.initRoutes()
	return c
}

// initRoutes registers all API endpoints.
func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)

	c.Group.POST("/brands", c.CreateBrand)
	c.Group.GET("/brands/:id", c.GetBrand)
	c.Group.POST("/brands/:id/train", c.TrainBrand)
	c.Group.POST("/brands/:id/generate", c.GenerateImage)
	c.Group.GET("/brands/:id/images", c.ListImages)
}

// ErrorResponse is the standard JSON error envelope.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates an error response with a correlation ID for log
// cross-referencing.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	resp := &ErrorResponse{
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// generateCorrelationID creates a short random identifier.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "err-rand"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError logs the error and returns the JSON error envelope.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code)

	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	c.apiLogger.Error("API error",
		"correlation_id", resp.CorrelationID,
		"message", message,
		"error", errorStr,
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"ip", ctx.RealIP())

	return ctx.JSON(code, resp)
}

// HealthCheck returns liveness information.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"uptime_seconds": int64(time.Since(c.startTime).Seconds()),
	})
}
