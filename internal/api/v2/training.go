// internal/api/v2/training.go
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tphakala/brandforge-go/internal/errors"
)

// TrainingJobResponse is the public view of a training job.
type TrainingJobResponse struct {
	ID          uint      `json:"id"`
	BrandID     string    `json:"brand_id"`
	RemoteID    string    `json:"remote_id"`
	Status      string    `json:"status"`
	Destination string    `json:"destination"`
	CreatedAt   time.Time `json:"created_at"`
}

// TrainBrand packages the brand's assets and launches a remote training run.
// Training runs for minutes to hours, so the response is 202 with the job
// that callers can observe through subsequent generate calls.
func (c *Controller) TrainBrand(ctx echo.Context) error {
	job, err := c.Orchestrator.LaunchTraining(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		switch {
		case errors.IsNotFound(err):
			return c.HandleError(ctx, err, "Brand not found", http.StatusNotFound)
		case errors.IsCategory(err, errors.CategoryState):
			return c.HandleError(ctx, err, "Brand is not trainable", http.StatusConflict)
		default:
			return c.HandleError(ctx, err, "Failed to launch training", http.StatusInternalServerError)
		}
	}

	return ctx.JSON(http.StatusAccepted, &TrainingJobResponse{
		ID:          job.ID,
		BrandID:     job.BrandID,
		RemoteID:    job.RemoteID,
		Status:      string(job.Status),
		Destination: job.Destination,
		CreatedAt:   job.CreatedAt,
	})
}
