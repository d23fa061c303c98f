package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tphakala/brandforge-go/internal/datastore"
	"github.com/tphakala/brandforge-go/internal/errors"
	"github.com/tphakala/brandforge-go/internal/provider"
)

// DeriveModelID builds the remote model container name from a brand name:
// a lowercase slug with non-alphanumeric runs collapsed to single hyphens,
// suffixed with the launch epoch seconds so retrained brands land in fresh
// containers.
func DeriveModelID(brandName string, now time.Time) string {
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(brandName) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		slug = "brand"
	}
	return fmt.Sprintf("%s-%d", slug, now.Unix())
}

// LaunchTraining packages the brand's assets, provisions the remote model
// container and launches a training run. A job row is recorded only once the
// remote run actually exists; failures before that point leave no trace in
// the job history.
func (s *Service) LaunchTraining(ctx context.Context, brandID string) (*datastore.TrainingJob, error) {
	brand, err := s.ds.GetBrand(brandID)
	if err != nil {
		return nil, err
	}

	assets, err := s.ds.GetTrainingAssets(brandID)
	if err != nil {
		return nil, err
	}
	if len(assets) == 0 {
		return nil, errors.Newf("brand %s has no training assets", brandID).
			Component("orchestrator").
			Category(errors.CategoryState).
			Build()
	}

	packStart := time.Now()
	archive, packed, err := s.packager.Pack(ctx, assets)
	if err != nil {
		s.countLaunchFailure()
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.PackDuration.Observe(time.Since(packStart).Seconds())
	}
	// An empty archive would train a model on nothing; abort before any
	// remote side effect.
	if packed == 0 {
		s.countLaunchFailure()
		return nil, errors.Newf("none of the %d training assets for brand %s could be packaged",
			len(assets), brandID).
			Component("orchestrator").
			Category(errors.CategoryPackaging).
			Build()
	}

	archiveObject := fmt.Sprintf("archives/%s/%d.zip", brandID, time.Now().UnixNano())
	bucket := s.settings.Storage.ArchiveBucket
	if err := s.store.Upload(ctx, bucket, archiveObject, archive, "application/zip"); err != nil {
		s.countLaunchFailure()
		return nil, err
	}
	archiveURL := s.store.PublicURL(bucket, archiveObject)

	owner := s.settings.Provider.Owner
	modelID := DeriveModelID(brand.Name, time.Now())
	destination := owner + "/" + modelID

	err = s.provider.CreateModel(ctx, owner, modelID, provider.ModelConfig{
		Hardware:   s.settings.Provider.Hardware,
		Visibility: s.settings.Provider.Visibility,
	})
	if err != nil && !errors.Is(err, provider.ErrModelExists) {
		s.countLaunchFailure()
		return nil, err
	}

	trainerVersion, err := s.provider.LatestTrainerVersion(ctx)
	if err != nil {
		s.countLaunchFailure()
		return nil, err
	}

	remote, err := s.provider.StartTraining(ctx, trainerVersion, provider.TrainingInput{
		Destination:        destination,
		InputImagesURL:     archiveURL,
		TriggerWord:        brand.TriggerPhrase,
		Steps:              trainingSteps,
		LoraRank:           trainingLoraRank,
		Optimizer:          trainingOptimizer,
		LearningRate:       trainingLearnRate,
		BatchSize:          trainingBatchSize,
		Resolution:         trainingResolution,
		CaptionDropoutRate: trainingCaptionDrop,
	})
	if err != nil {
		s.countLaunchFailure()
		return nil, err
	}

	job := datastore.TrainingJob{
		BrandID:     brandID,
		RemoteID:    remote.ID,
		Status:      datastore.JobStatusStarting,
		Destination: destination,
	}
	if err := s.ds.CreateTrainingJob(&job); err != nil {
		// Remote run exists but we lost the local record. The next launch
		// supersedes it; the remote job keeps running unobserved.
		s.logger.Error("Training launched remotely but job row could not be recorded",
			"brand_id", brandID,
			"remote_id", remote.ID,
			"error", err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.TrainingsStarted.Inc()
	}
	s.logger.Info("Training launched",
		"brand_id", brandID,
		"job_id", job.ID,
		"remote_id", remote.ID,
		"destination", destination,
		"trainer_version", trainerVersion)
	return &job, nil
}

func (s *Service) countLaunchFailure() {
	if s.metrics != nil {
		s.metrics.TrainingFailures.Inc()
	}
}
