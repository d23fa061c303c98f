// internal/api/v2/brands.go
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tphakala/brandforge-go/internal/datastore"
	"github.com/tphakala/brandforge-go/internal/errors"
	"github.com/tphakala/brandforge-go/internal/orchestrator"
)

// AssetRequest is one training asset in a brand registration.
type AssetRequest struct {
	URL          string `json:"url"`
	OriginalName string `json:"original_name"`
}

// CreateBrandRequest is the registration payload.
type CreateBrandRequest struct {
	UserID string         `json:"user_id"`
	Name   string         `json:"name"`
	Assets []AssetRequest `json:"assets"`
}

// BrandResponse is the public view of a brand.
type BrandResponse struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Name          string    `json:"name"`
	TriggerPhrase string    `json:"trigger_phrase"`
	CreatedAt     time.Time `json:"created_at"`
}

func brandResponse(b *datastore.Brand) *BrandResponse {
	return &BrandResponse{
		ID:            b.ID,
		UserID:        b.UserID,
		Name:          b.Name,
		TriggerPhrase: b.TriggerPhrase,
		CreatedAt:     b.CreatedAt,
	}
}

// CreateBrand registers a new brand with its training assets.
func (c *Controller) CreateBrand(ctx echo.Context) error {
	var req CreateBrandRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	assets := make([]orchestrator.AssetInput, len(req.Assets))
	for i := range req.Assets {
		assets[i] = orchestrator.AssetInput{
			URL:          req.Assets[i].URL,
			OriginalName: req.Assets[i].OriginalName,
		}
	}

	brand, err := c.Orchestrator.RegisterBrand(ctx.Request().Context(), req.UserID, req.Name, assets)
	if err != nil {
		if errors.IsCategory(err, errors.CategoryValidation) {
			return c.HandleError(ctx, err, "Invalid brand registration", http.StatusBadRequest)
		}
		return c.HandleError(ctx, err, "Failed to register brand", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusCreated, brandResponse(&brand))
}

// GetBrand returns one brand by ID.
func (c *Controller) GetBrand(ctx echo.Context) error {
	brand, err := c.DS.GetBrand(ctx.Param("id"))
	if err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "Brand not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get brand", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, brandResponse(&brand))
}

// ImageResponse is the public view of a generated image.
type ImageResponse struct {
	ID          uint      `json:"id"`
	URL         string    `json:"url"`
	Prompt      string    `json:"prompt"`
	AspectRatio string    `json:"aspect_ratio"`
	Seed        int64     `json:"seed"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListImages returns a brand's generated images, newest first.
func (c *Controller) ListImages(ctx echo.Context) error {
	brandID := ctx.Param("id")
	if _, err := c.DS.GetBrand(brandID); err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "Brand not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get brand", http.StatusInternalServerError)
	}

	limit := queryInt(ctx, "limit", 50)
	offset := queryInt(ctx, "offset", 0)

	images, err := c.DS.GetGeneratedImages(brandID, limit, offset)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list images", http.StatusInternalServerError)
	}

	out := make([]ImageResponse, len(images))
	for i := range images {
		out[i] = ImageResponse{
			ID:          images[i].ID,
			URL:         images[i].URL,
			Prompt:      images[i].Prompt,
			AspectRatio: images[i].AspectRatio,
			Seed:        images[i].Seed,
			CreatedAt:   images[i].CreatedAt,
		}
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"images": out,
		"limit":  limit,
		"offset": offset,
	})
}
