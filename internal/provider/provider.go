// Package provider abstracts the remote training/inference service behind a
// narrow interface so the orchestrator stays testable with a fake
// implementation instead of coupling to one vendor's client object.
package provider

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tphakala/brandforge-go/internal/errors"
	"github.com/tphakala/brandforge-go/internal/logging"
)

// Status is the remote job status as reported by the provider.
type Status string

const (
	StatusStarting   Status = "starting"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// Terminal reports whether the remote job will not transition further.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// Job is the provider's view of a training run.
type Job struct {
	ID            string // opaque job handle
	Status        Status
	OutputVersion string // model version produced by the job, empty until success
	Destination   string // owner/name the job trains into
}

// ModelConfig holds the fixed configuration for created model containers.
type ModelConfig struct {
	Hardware   string
	Visibility string
}

// TrainingInput carries everything a remote training run needs.
type TrainingInput struct {
	Destination        string  // owner/name of the model container to train into
	InputImagesURL     string  // public URL of the packaged training archive
	TriggerWord        string  // the brand's trigger phrase
	Steps              int
	LoraRank           int
	Optimizer          string
	LearningRate       float64
	BatchSize          int
	Resolution         string
	CaptionDropoutRate float64
}

// InferenceInput carries one inference call's resolved configuration.
type InferenceInput struct {
	Prompt               string
	AspectRatio          string
	Seed                 int64
	GuidanceScale        float64
	LoraScale            float64
	NumInferenceSteps    int
	DisableSafetyChecker bool
	OutputFormat         string
	OutputQuality        int
}

// ErrModelExists is returned by CreateModel when the model container already
// exists. Callers treat it as success (idempotent create-or-reuse).
var ErrModelExists = errors.NewStd("model already exists")

// Client is the narrow provider surface the orchestrator depends on.
type Client interface {
	// CreateModel creates a model container under the configured owner
	// namespace. Returns ErrModelExists when the container is already there.
	CreateModel(ctx context.Context, owner, name string, cfg ModelConfig) error

	// LatestTrainerVersion resolves the current version of the configured
	// trainer algorithm. Never hard-coded: the provider may deprecate old
	// versions at any time.
	LatestTrainerVersion(ctx context.Context) (string, error)

	// StartTraining launches a remote training run and returns its job handle.
	StartTraining(ctx context.Context, trainerVersion string, input TrainingInput) (Job, error)

	// GetJob fetches the authoritative current state of a training run.
	GetJob(ctx context.Context, jobID string) (Job, error)

	// RunInference executes one inference call against a fully-qualified
	// model reference ("owner/name:version") and returns the output URLs.
	RunInference(ctx context.Context, modelRef string, input InferenceInput) ([]string, error)
}

var (
	providerLogger *slog.Logger
	loggerOnce     sync.Once
)

func getLogger() *slog.Logger {
	loggerOnce.Do(func() {
		providerLogger = logging.ForService("provider")
		if providerLogger == nil {
			providerLogger = slog.Default().With("service", "provider")
		}
	})
	return providerLogger
}
