package orchestrator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/tphakala/brandforge-go/internal/datastore"
	"github.com/tphakala/brandforge-go/internal/errors"
	"github.com/tphakala/brandforge-go/internal/provider"
)

// GenerateState classifies the outcome of a generation request.
type GenerateState string

const (
	// StateReady means an image was generated and persisted.
	StateReady GenerateState = "ready"
	// StatePending means the brand's training has not finished yet.
	StatePending GenerateState = "pending"
	// StateFailed means the brand's training ended in failure and no model
	// is available to generate with.
	StateFailed GenerateState = "failed"
)

// GenerateRequest is one inference call against a brand's trained model.
type GenerateRequest struct {
	BrandID     string
	UserID      string
	Prompt      string
	AspectRatio string // empty means the default 1:1
	Seed        *int64 // nil means a fresh random seed
}

// GenerateResult is the typed outcome. Image is set only when State is ready;
// JobStatus reports the training state that produced a pending or failed
// outcome.
type GenerateResult struct {
	State     GenerateState
	JobStatus datastore.JobStatus
	Image     *datastore.GeneratedImage
}

// Generate runs one inference against the brand's current trained model.
// Training state is synchronized lazily here: no background poller exists, so
// the first generation attempt after a training finishes is what persists the
// terminal status.
//
// A still-running training yields a pending result, not an error. Callers map
// it to a retry-later response.
func (s *Service) Generate(ctx context.Context, req *GenerateRequest) (GenerateResult, error) {
	brand, err := s.ds.GetBrand(req.BrandID)
	if err != nil {
		return GenerateResult{}, err
	}
	if req.Prompt == "" {
		return GenerateResult{}, errors.Newf("prompt is required").
			Component("orchestrator").
			Category(errors.CategoryValidation).
			Build()
	}

	job, err := s.currentSyncedJob(ctx, req.BrandID)
	if err != nil {
		return GenerateResult{}, err
	}

	switch job.Status {
	case datastore.JobStatusFailed:
		s.countGeneration(StateFailed)
		return GenerateResult{State: StateFailed, JobStatus: job.Status}, nil
	case datastore.JobStatusStarting, datastore.JobStatusTraining:
		s.countGeneration(StatePending)
		return GenerateResult{State: StatePending, JobStatus: job.Status}, nil
	}

	if job.Version == "" || job.Destination == "" {
		return GenerateResult{}, errors.Newf("job %d succeeded but has no model reference", job.ID).
			Component("orchestrator").
			Category(errors.CategoryState).
			Build()
	}
	modelRef := job.Destination + ":" + job.Version

	seed := resolveSeed(req.Seed)
	aspect := req.AspectRatio
	if aspect == "" {
		aspect = defaultAspectRatio
	}
	prompt := fmt.Sprintf("%s, %s", req.Prompt, brand.TriggerPhrase)

	inferStart := time.Now()
	urls, err := s.provider.RunInference(ctx, modelRef, provider.InferenceInput{
		Prompt:               prompt,
		AspectRatio:          aspect,
		Seed:                 seed,
		GuidanceScale:        inferenceGuidance,
		LoraScale:            inferenceLoraScale,
		NumInferenceSteps:    inferenceSteps,
		DisableSafetyChecker: true,
		OutputFormat:         inferenceFormat,
		OutputQuality:        inferenceQuality,
	})
	if err != nil {
		return GenerateResult{}, err
	}
	if s.metrics != nil {
		s.metrics.InferenceDuration.Observe(time.Since(inferStart).Seconds())
	}

	// Provider delivery URLs expire; the image is re-hosted on our own
	// storage before the URL is handed out.
	data, err := s.fetcher.GetBytes(ctx, urls[0])
	if err != nil {
		return GenerateResult{}, errors.New(err).
			Component("orchestrator").
			Category(errors.CategoryResultPersist).
			Context("operation", "download_result").
			Build()
	}

	objectName := fmt.Sprintf("generated/%s/%d.webp", req.BrandID, time.Now().UnixNano())
	bucket := s.settings.Storage.ImageBucket
	if err := s.store.Upload(ctx, bucket, objectName, data, generatedContentType); err != nil {
		return GenerateResult{}, errors.New(err).
			Component("orchestrator").
			Category(errors.CategoryResultPersist).
			Context("operation", "upload_result").
			Build()
	}

	img := datastore.GeneratedImage{
		BrandID:     req.BrandID,
		UserID:      req.UserID,
		URL:         s.store.PublicURL(bucket, objectName),
		Prompt:      prompt,
		AspectRatio: aspect,
		Seed:        seed,
	}
	if err := s.ds.SaveGeneratedImage(&img); err != nil {
		return GenerateResult{}, err
	}

	s.countGeneration(StateReady)
	s.logger.Info("Image generated",
		"brand_id", req.BrandID,
		"image_id", img.ID,
		"seed", seed,
		"aspect_ratio", aspect)
	return GenerateResult{State: StateReady, JobStatus: job.Status, Image: &img}, nil
}

// currentSyncedJob resolves the brand's current training job and refreshes
// its cached status from the provider when it is not already succeeded. A
// succeeded job is final and the remote call is skipped entirely.
func (s *Service) currentSyncedJob(ctx context.Context, brandID string) (*datastore.TrainingJob, error) {
	job, err := s.ds.CurrentTrainingJob(brandID)
	if err != nil {
		return nil, err
	}
	if job.Status == datastore.JobStatusSucceeded {
		return job, nil
	}

	remote, err := s.provider.GetJob(ctx, job.RemoteID)
	if err != nil {
		return nil, err
	}

	status := localStatus(remote.Status)

	// A succeeded report without a version identifier is not actionable.
	// Persisting it would freeze the sync (succeeded is never re-checked)
	// with no model reference to generate against, so keep the cached
	// status and ask the provider again on the next request.
	if status == datastore.JobStatusSucceeded && remote.OutputVersion == "" {
		s.logger.Warn("Remote job succeeded without a version identifier, deferring sync",
			"brand_id", brandID,
			"job_id", job.ID,
			"remote_id", job.RemoteID)
		return job, nil
	}

	if status == job.Status && remote.OutputVersion == "" {
		return job, nil
	}
	// Terminal statuses never regress to a running one
	if job.Status.Terminal() && !status.Terminal() {
		return job, nil
	}

	if err := s.ds.UpdateTrainingJob(job.ID, status, remote.OutputVersion); err != nil {
		return nil, err
	}
	job.Status = status
	if remote.OutputVersion != "" {
		job.Version = remote.OutputVersion
	}

	s.logger.Debug("Training status synchronized",
		"brand_id", brandID,
		"job_id", job.ID,
		"status", status)
	return job, nil
}

// localStatus maps provider statuses onto the cached lifecycle. Cancellation
// has no local representation of its own and counts as failed.
func localStatus(s provider.Status) datastore.JobStatus {
	switch s {
	case provider.StatusStarting:
		return datastore.JobStatusStarting
	case provider.StatusProcessing:
		return datastore.JobStatusTraining
	case provider.StatusSucceeded:
		return datastore.JobStatusSucceeded
	case provider.StatusFailed, provider.StatusCanceled:
		return datastore.JobStatusFailed
	default:
		return datastore.JobStatusTraining
	}
}

// resolveSeed returns the caller's seed verbatim or draws a fresh one from
// the full uint32 range.
func resolveSeed(seed *int64) int64 {
	if seed != nil {
		return *seed
	}
	return int64(rand.Uint32())
}

func (s *Service) countGeneration(state GenerateState) {
	if s.metrics != nil {
		s.metrics.GenerationsTotal.WithLabelValues(string(state)).Inc()
	}
}
