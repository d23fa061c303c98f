package orchestrator

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/tphakala/brandforge-go/internal/datastore"
	"github.com/tphakala/brandforge-go/internal/errors"
)

// AssetInput is one source image submitted at registration time.
type AssetInput struct {
	URL          string
	OriginalName string
}

// RegisterBrand creates a brand with its training assets in one transaction.
// The trigger phrase is minted here and never changes afterwards: prompts
// written against it must keep working for the brand's whole lifetime.
func (s *Service) RegisterBrand(ctx context.Context, userID, name string, assets []AssetInput) (datastore.Brand, error) {
	if strings.TrimSpace(name) == "" {
		return datastore.Brand{}, errors.Newf("brand name is required").
			Component("orchestrator").
			Category(errors.CategoryValidation).
			Build()
	}
	if len(assets) < MinTrainingAssets {
		return datastore.Brand{}, errors.Newf("at least %d training assets are required, got %d",
			MinTrainingAssets, len(assets)).
			Component("orchestrator").
			Category(errors.CategoryValidation).
			Build()
	}
	for i := range assets {
		if strings.TrimSpace(assets[i].URL) == "" {
			return datastore.Brand{}, errors.Newf("training asset %d has no URL", i).
				Component("orchestrator").
				Category(errors.CategoryValidation).
				Build()
		}
	}

	id := uuid.NewString()
	brand := datastore.Brand{
		ID:            id,
		UserID:        userID,
		Name:          strings.TrimSpace(name),
		TriggerPhrase: newTriggerPhrase(),
	}

	rows := make([]datastore.TrainingAsset, len(assets))
	for i := range assets {
		rows[i] = datastore.TrainingAsset{
			StoragePath:  assets[i].URL,
			OriginalName: assets[i].OriginalName,
		}
	}

	if err := s.ds.CreateBrand(&brand, rows); err != nil {
		return datastore.Brand{}, err
	}

	if s.metrics != nil {
		s.metrics.BrandsRegistered.Inc()
	}
	s.logger.Info("Brand registered",
		"brand_id", brand.ID,
		"user_id", userID,
		"assets", len(rows))
	return brand, nil
}

// newTriggerPhrase mints a rare-token trigger like "tok-1a2b3c4d". The token
// must be unusual enough that it carries no prior meaning for the base model.
func newTriggerPhrase() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "tok-" + hex[:8]
}
