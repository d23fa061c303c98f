// internal/api/v2/generate.go
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/tphakala/brandforge-go/internal/errors"
	"github.com/tphakala/brandforge-go/internal/orchestrator"
)

// GenerateRequest is the inference payload.
type GenerateRequest struct {
	UserID      string `json:"user_id"`
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
	Seed        *int64 `json:"seed"`
}

// GenerateResponse reports the outcome of a generation request.
type GenerateResponse struct {
	State     string         `json:"state"`
	JobStatus string         `json:"job_status,omitempty"`
	Image     *ImageResponse `json:"image,omitempty"`
}

// GenerateImage runs one inference against the brand's trained model.
// A brand whose training is still running answers 202 so clients retry
// later; a failed training answers 422.
func (c *Controller) GenerateImage(ctx echo.Context) error {
	var req GenerateRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	result, err := c.Orchestrator.Generate(ctx.Request().Context(), &orchestrator.GenerateRequest{
		BrandID:     ctx.Param("id"),
		UserID:      req.UserID,
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
		Seed:        req.Seed,
	})
	if err != nil {
		switch {
		case errors.IsNotFound(err):
			return c.HandleError(ctx, err, "Brand or training job not found", http.StatusNotFound)
		case errors.IsCategory(err, errors.CategoryValidation):
			return c.HandleError(ctx, err, "Invalid generation request", http.StatusBadRequest)
		default:
			return c.HandleError(ctx, err, "Failed to generate image", http.StatusInternalServerError)
		}
	}

	resp := &GenerateResponse{
		State:     string(result.State),
		JobStatus: string(result.JobStatus),
	}

	switch result.State {
	case orchestrator.StatePending:
		return ctx.JSON(http.StatusAccepted, resp)
	case orchestrator.StateFailed:
		return ctx.JSON(http.StatusUnprocessableEntity, resp)
	default:
		img := result.Image
		resp.Image = &ImageResponse{
			ID:          img.ID,
			URL:         img.URL,
			Prompt:      img.Prompt,
			AspectRatio: img.AspectRatio,
			Seed:        img.Seed,
			CreatedAt:   img.CreatedAt,
		}
		return ctx.JSON(http.StatusOK, resp)
	}
}

// queryInt parses an integer query parameter with a fallback.
func queryInt(ctx echo.Context, name string, fallback int) int {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
