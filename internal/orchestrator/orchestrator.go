// Package orchestrator implements the training and generation workflows:
// brand registration, remote training launches, and inference against the
// trained model, with job state synchronized lazily on read.
package orchestrator

import (
	"context"
	"log/slog"

	"github.com/tphakala/brandforge-go/internal/conf"
	"github.com/tphakala/brandforge-go/internal/datastore"
	"github.com/tphakala/brandforge-go/internal/httpclient"
	"github.com/tphakala/brandforge-go/internal/logging"
	"github.com/tphakala/brandforge-go/internal/objectstore"
	"github.com/tphakala/brandforge-go/internal/observability"
	"github.com/tphakala/brandforge-go/internal/packager"
	"github.com/tphakala/brandforge-go/internal/provider"
)

// MinTrainingAssets is the smallest asset set a brand can register with.
// Fewer images produce models that overfit badly.
const MinTrainingAssets = 5

// Fixed training hyperparameters. These are operator-tuned constants, not
// caller inputs, so every brand trains under identical conditions.
const (
	trainingSteps       = 1000
	trainingLoraRank    = 16
	trainingOptimizer   = "adamw8bit"
	trainingLearnRate   = 0.0004
	trainingBatchSize   = 1
	trainingResolution  = "512,768,1024"
	trainingCaptionDrop = 0.05
)

// Fixed inference parameters.
const (
	inferenceGuidance    = 3.5
	inferenceLoraScale   = 1.0
	inferenceSteps       = 28
	inferenceFormat      = "webp"
	inferenceQuality     = 90
	defaultAspectRatio   = "1:1"
	generatedContentType = "image/webp"
)

// Fetcher downloads a URL's full payload. Satisfied by httpclient.Client.
type Fetcher interface {
	GetBytes(ctx context.Context, url string) ([]byte, error)
}

// Service wires the datastore, object store, provider client and packager
// into the orchestration workflows.
type Service struct {
	ds       datastore.Interface
	store    objectstore.Store
	provider provider.Client
	packager *packager.Packager
	fetcher  Fetcher
	settings *conf.Settings
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// New creates the orchestration service. The packager shares the fetcher so
// asset downloads and result downloads go through the same pooled client.
func New(ds datastore.Interface, store objectstore.Store, pc provider.Client,
	fetcher Fetcher, settings *conf.Settings, metrics *observability.Metrics) *Service {

	if fetcher == nil {
		fetcher = httpclient.New(nil)
	}
	logger := logging.ForService("orchestrator")
	if logger == nil {
		logger = slog.Default().With("service", "orchestrator")
	}

	pkg := packager.New(fetcher)
	if metrics != nil {
		pkg.OnFetchFailure = func(string) {
			metrics.AssetFetchFailures.Inc()
		}
	}

	return &Service{
		ds:       ds,
		store:    store,
		provider: pc,
		packager: pkg,
		fetcher:  fetcher,
		settings: settings,
		metrics:  metrics,
		logger:   logger,
	}
}
