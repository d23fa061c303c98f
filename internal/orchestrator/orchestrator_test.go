package orchestrator

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/brandforge-go/internal/conf"
	"github.com/tphakala/brandforge-go/internal/datastore"
	"github.com/tphakala/brandforge-go/internal/errors"
	"github.com/tphakala/brandforge-go/internal/observability"
	"github.com/tphakala/brandforge-go/internal/provider"
)

// fakeProvider is a scriptable provider.Client.
type fakeProvider struct {
	mu sync.Mutex

	createErr    error
	createdNames []string

	trainerVersion string
	trainerErr     error

	startErr     error
	startedInput []provider.TrainingInput
	startJobID   string

	job         provider.Job
	jobErr      error
	getJobCalls int

	inferenceURLs []string
	inferenceErr  error
	lastModelRef  string
	lastInference provider.InferenceInput
}

func (f *fakeProvider) CreateModel(_ context.Context, owner, name string, _ provider.ModelConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdNames = append(f.createdNames, owner+"/"+name)
	return f.createErr
}

func (f *fakeProvider) LatestTrainerVersion(_ context.Context) (string, error) {
	return f.trainerVersion, f.trainerErr
}

func (f *fakeProvider) StartTraining(_ context.Context, _ string, input provider.TrainingInput) (provider.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return provider.Job{}, f.startErr
	}
	f.startedInput = append(f.startedInput, input)
	id := f.startJobID
	if id == "" {
		id = "remote-job-1"
	}
	return provider.Job{ID: id, Status: provider.StatusStarting, Destination: input.Destination}, nil
}

func (f *fakeProvider) GetJob(_ context.Context, _ string) (provider.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getJobCalls++
	return f.job, f.jobErr
}

func (f *fakeProvider) RunInference(_ context.Context, modelRef string, input provider.InferenceInput) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastModelRef = modelRef
	f.lastInference = input
	return f.inferenceURLs, f.inferenceErr
}

// fakeStore keeps objects in memory, keyed "bucket/object".
type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) Upload(_ context.Context, bucket, object string, data []byte, _ string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+object] = data
	return nil
}

func (f *fakeStore) Download(_ context.Context, bucket, object string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[bucket+"/"+object]
	if !ok {
		return nil, fmt.Errorf("object %s/%s not found", bucket, object)
	}
	return data, nil
}

func (f *fakeStore) PublicURL(bucket, object string) string {
	return "https://cdn.test/" + bucket + "/" + object
}

// fakeFetcher serves canned bytes for any URL.
type fakeFetcher struct {
	payloads map[string][]byte
	err      error
}

func (f *fakeFetcher) GetBytes(_ context.Context, url string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	if data, ok := f.payloads[url]; ok {
		return data, nil
	}
	return []byte("bytes-of-" + url), nil
}

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()

	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "orchestrator_test.db")
	settings.Storage.ArchiveBucket = "training-archives"
	settings.Storage.ImageBucket = "generated-images"
	settings.Provider.Owner = "acme"
	settings.Provider.Hardware = "gpu-t4"
	settings.Provider.Visibility = "private"
	return settings
}

type testEnv struct {
	svc      *Service
	ds       datastore.Interface
	provider *fakeProvider
	store    *fakeStore
	fetcher  *fakeFetcher
	metrics  *observability.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	settings := testSettings(t)
	ds := datastore.New(settings)
	require.NotNil(t, ds)
	require.NoError(t, ds.Open())
	t.Cleanup(func() {
		_ = ds.Close()
	})

	metrics, err := observability.NewMetrics()
	require.NoError(t, err)

	fp := &fakeProvider{trainerVersion: "trainer-v1"}
	store := newFakeStore()
	fetcher := &fakeFetcher{}
	svc := New(ds, store, fp, fetcher, settings, metrics)

	return &testEnv{svc: svc, ds: ds, provider: fp, store: store, fetcher: fetcher, metrics: metrics}
}

func fiveAssets() []AssetInput {
	assets := make([]AssetInput, 5)
	for i := range assets {
		assets[i] = AssetInput{
			URL:          fmt.Sprintf("https://img.example.com/%d", i),
			OriginalName: fmt.Sprintf("photo-%d.jpg", i),
		}
	}
	return assets
}

func registerTestBrand(t *testing.T, env *testEnv) datastore.Brand {
	t.Helper()
	brand, err := env.svc.RegisterBrand(context.Background(), "user-1", "Coffee & Co", fiveAssets())
	require.NoError(t, err)
	return brand
}

func TestRegisterBrandMintsIdentityAndTrigger(t *testing.T) {
	env := newTestEnv(t)

	brand := registerTestBrand(t, env)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f-]{36}$`), brand.ID)
	assert.Regexp(t, regexp.MustCompile(`^tok-[0-9a-f]{8}$`), brand.TriggerPhrase)
	assert.Equal(t, "Coffee & Co", brand.Name)

	assets, err := env.ds.GetTrainingAssets(brand.ID)
	require.NoError(t, err)
	assert.Len(t, assets, 5)

	other, err := env.svc.RegisterBrand(context.Background(), "user-1", "Other", fiveAssets())
	require.NoError(t, err)
	assert.NotEqual(t, brand.TriggerPhrase, other.TriggerPhrase)
}

func TestRegisterBrandValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.RegisterBrand(ctx, "user-1", "  ", fiveAssets())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	_, err = env.svc.RegisterBrand(ctx, "user-1", "Coffee", fiveAssets()[:4])
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	bad := fiveAssets()
	bad[2].URL = " "
	_, err = env.svc.RegisterBrand(ctx, "user-1", "Coffee", bad)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestLaunchTrainingHappyPath(t *testing.T) {
	env := newTestEnv(t)
	brand := registerTestBrand(t, env)

	job, err := env.svc.LaunchTraining(context.Background(), brand.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.JobStatusStarting, job.Status)
	assert.Equal(t, "remote-job-1", job.RemoteID)
	assert.True(t, strings.HasPrefix(job.Destination, "acme/coffee-co-"), job.Destination)

	// Archive landed in the archive bucket and its public URL reached the trainer
	require.Len(t, env.provider.startedInput, 1)
	input := env.provider.startedInput[0]
	assert.Contains(t, input.InputImagesURL, "https://cdn.test/training-archives/archives/"+brand.ID+"/")
	assert.Equal(t, brand.TriggerPhrase, input.TriggerWord)
	assert.Equal(t, 1000, input.Steps)
	assert.Equal(t, 16, input.LoraRank)
	assert.Equal(t, "adamw8bit", input.Optimizer)
	assert.InDelta(t, 0.0004, input.LearningRate, 1e-9)
	assert.Equal(t, 1, input.BatchSize)
	assert.Equal(t, "512,768,1024", input.Resolution)
	assert.InDelta(t, 0.05, input.CaptionDropoutRate, 1e-9)

	// The job row became the brand's current job
	current, err := env.ds.CurrentTrainingJob(brand.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, current.ID)
}

func TestLaunchTrainingModelExistsIsReused(t *testing.T) {
	env := newTestEnv(t)
	brand := registerTestBrand(t, env)

	env.provider.createErr = provider.ErrModelExists
	job, err := env.svc.LaunchTraining(context.Background(), brand.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.JobStatusStarting, job.Status)
}

func TestLaunchTrainingTrainerLookupFailureLeavesNoJob(t *testing.T) {
	env := newTestEnv(t)
	brand := registerTestBrand(t, env)

	env.provider.trainerErr = fmt.Errorf("trainer lookup failed")
	_, err := env.svc.LaunchTraining(context.Background(), brand.ID)
	require.Error(t, err)

	_, err = env.ds.CurrentTrainingJob(brand.ID)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Empty(t, env.provider.startedInput)
}

func TestLaunchTrainingStartFailureLeavesNoJob(t *testing.T) {
	env := newTestEnv(t)
	brand := registerTestBrand(t, env)

	env.provider.startErr = fmt.Errorf("provider rejected the run")
	_, err := env.svc.LaunchTraining(context.Background(), brand.ID)
	require.Error(t, err)

	_, err = env.ds.CurrentTrainingJob(brand.ID)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestLaunchTrainingAbortsWhenNothingPackaged(t *testing.T) {
	env := newTestEnv(t)
	brand := registerTestBrand(t, env)

	// Every asset fetch fails, so the archive would be empty
	env.fetcher.err = fmt.Errorf("unexpected status 404")

	_, err := env.svc.LaunchTraining(context.Background(), brand.ID)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryPackaging))

	// No remote side effects and no job row
	assert.Empty(t, env.provider.createdNames)
	assert.Empty(t, env.provider.startedInput)
	env.store.mu.Lock()
	assert.Empty(t, env.store.objects)
	env.store.mu.Unlock()

	_, err = env.ds.CurrentTrainingJob(brand.ID)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestDeriveModelID(t *testing.T) {
	now := time.Unix(1700000000, 0)

	cases := []struct {
		name string
		want string
	}{
		{"Coffee & Co", "coffee-co-1700000000"},
		{"  Späti 24/7  ", "sp-ti-24-7-1700000000"},
		{"UPPER", "upper-1700000000"},
		{"---", "brand-1700000000"},
		{"a--b", "a-b-1700000000"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DeriveModelID(tc.name, now), tc.name)
	}
}

func TestGeneratePendingWhileTraining(t *testing.T) {
	env := newTestEnv(t)
	brand := registerTestBrand(t, env)
	_, err := env.svc.LaunchTraining(context.Background(), brand.ID)
	require.NoError(t, err)

	env.provider.job = provider.Job{ID: "remote-job-1", Status: provider.StatusProcessing}

	res, err := env.svc.Generate(context.Background(), &GenerateRequest{
		BrandID: brand.ID, UserID: "user-1", Prompt: "a latte cup",
	})
	require.NoError(t, err)
	assert.Equal(t, StatePending, res.State)
	assert.Equal(t, datastore.JobStatusTraining, res.JobStatus)
	assert.Nil(t, res.Image)

	// The observed remote state was persisted
	current, err := env.ds.CurrentTrainingJob(brand.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.JobStatusTraining, current.Status)
}

func TestGenerateReadyAfterSuccess(t *testing.T) {
	env := newTestEnv(t)
	brand := registerTestBrand(t, env)
	job, err := env.svc.LaunchTraining(context.Background(), brand.ID)
	require.NoError(t, err)

	env.provider.job = provider.Job{
		ID:            "remote-job-1",
		Status:        provider.StatusSucceeded,
		OutputVersion: "ver-abc123",
	}
	env.provider.inferenceURLs = []string{"https://delivery.example.com/raw.webp"}

	seed := int64(1234)
	res, err := env.svc.Generate(context.Background(), &GenerateRequest{
		BrandID:     brand.ID,
		UserID:      "user-1",
		Prompt:      "a latte cup",
		AspectRatio: "16:9",
		Seed:        &seed,
	})
	require.NoError(t, err)
	require.Equal(t, StateReady, res.State)
	require.NotNil(t, res.Image)

	// Prompt got the trigger phrase appended, seed passed through verbatim
	assert.Equal(t, "a latte cup, "+brand.TriggerPhrase, res.Image.Prompt)
	assert.Equal(t, int64(1234), res.Image.Seed)
	assert.Equal(t, "16:9", res.Image.AspectRatio)
	assert.Equal(t, int64(1234), env.provider.lastInference.Seed)
	assert.Equal(t, job.Destination+":ver-abc123", env.provider.lastModelRef)

	// Result was re-hosted under the brand's prefix in the image bucket
	assert.Regexp(t,
		regexp.MustCompile(`^https://cdn\.test/generated-images/generated/`+brand.ID+`/\d+\.webp$`),
		res.Image.URL)

	// Success is cached: the next generate skips the remote status call
	before := env.provider.getJobCalls
	_, err = env.svc.Generate(context.Background(), &GenerateRequest{
		BrandID: brand.ID, UserID: "user-1", Prompt: "an espresso",
	})
	require.NoError(t, err)
	assert.Equal(t, before, env.provider.getJobCalls)
}

func TestGenerateSucceededWithoutVersionIsRetried(t *testing.T) {
	env := newTestEnv(t)
	brand := registerTestBrand(t, env)
	_, err := env.svc.LaunchTraining(context.Background(), brand.ID)
	require.NoError(t, err)

	// Provider reports success before the version identifier is available
	env.provider.job = provider.Job{ID: "remote-job-1", Status: provider.StatusSucceeded}

	res, err := env.svc.Generate(context.Background(), &GenerateRequest{
		BrandID: brand.ID, UserID: "user-1", Prompt: "a latte cup",
	})
	require.NoError(t, err)
	assert.Equal(t, StatePending, res.State)

	// The bare success was not persisted, so the next request consults the
	// provider again and picks up the late version
	current, err := env.ds.CurrentTrainingJob(brand.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.JobStatusStarting, current.Status)

	env.provider.job.OutputVersion = "ver-late"
	env.provider.inferenceURLs = []string{"https://delivery.example.com/out.webp"}

	before := env.provider.getJobCalls
	res, err = env.svc.Generate(context.Background(), &GenerateRequest{
		BrandID: brand.ID, UserID: "user-1", Prompt: "a latte cup",
	})
	require.NoError(t, err)
	assert.Equal(t, StateReady, res.State)
	assert.Greater(t, env.provider.getJobCalls, before)
}

func TestGenerateUploadFailureIsResultPersist(t *testing.T) {
	env := newTestEnv(t)
	brand := registerTestBrand(t, env)
	_, err := env.svc.LaunchTraining(context.Background(), brand.ID)
	require.NoError(t, err)

	env.provider.job = provider.Job{
		ID: "remote-job-1", Status: provider.StatusSucceeded, OutputVersion: "ver-abc123",
	}
	env.provider.inferenceURLs = []string{"https://delivery.example.com/raw.webp"}
	env.store.uploadErr = fmt.Errorf("bucket unavailable")

	_, err = env.svc.Generate(context.Background(), &GenerateRequest{
		BrandID: brand.ID, UserID: "user-1", Prompt: "a latte cup",
	})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryResultPersist))

	// No image row was recorded for the failed persist
	images, err := env.ds.GetGeneratedImages(brand.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestGenerateFailedTraining(t *testing.T) {
	env := newTestEnv(t)
	brand := registerTestBrand(t, env)
	_, err := env.svc.LaunchTraining(context.Background(), brand.ID)
	require.NoError(t, err)

	env.provider.job = provider.Job{ID: "remote-job-1", Status: provider.StatusFailed}

	res, err := env.svc.Generate(context.Background(), &GenerateRequest{
		BrandID: brand.ID, UserID: "user-1", Prompt: "a latte cup",
	})
	require.NoError(t, err)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, datastore.JobStatusFailed, res.JobStatus)

	current, err := env.ds.CurrentTrainingJob(brand.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.JobStatusFailed, current.Status)
}

func TestGenerateCanceledCountsAsFailed(t *testing.T) {
	env := newTestEnv(t)
	brand := registerTestBrand(t, env)
	_, err := env.svc.LaunchTraining(context.Background(), brand.ID)
	require.NoError(t, err)

	env.provider.job = provider.Job{ID: "remote-job-1", Status: provider.StatusCanceled}

	res, err := env.svc.Generate(context.Background(), &GenerateRequest{
		BrandID: brand.ID, UserID: "user-1", Prompt: "a latte cup",
	})
	require.NoError(t, err)
	assert.Equal(t, StateFailed, res.State)
}

func TestGenerateWithoutAnyTraining(t *testing.T) {
	env := newTestEnv(t)
	brand := registerTestBrand(t, env)

	_, err := env.svc.Generate(context.Background(), &GenerateRequest{
		BrandID: brand.ID, UserID: "user-1", Prompt: "a latte cup",
	})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestGenerateDefaultsSeedAndAspect(t *testing.T) {
	env := newTestEnv(t)
	brand := registerTestBrand(t, env)
	_, err := env.svc.LaunchTraining(context.Background(), brand.ID)
	require.NoError(t, err)

	env.provider.job = provider.Job{
		ID: "remote-job-1", Status: provider.StatusSucceeded, OutputVersion: "ver-abc123",
	}
	env.provider.inferenceURLs = []string{"https://delivery.example.com/raw.webp"}

	res, err := env.svc.Generate(context.Background(), &GenerateRequest{
		BrandID: brand.ID, UserID: "user-1", Prompt: "a latte cup",
	})
	require.NoError(t, err)
	require.Equal(t, StateReady, res.State)

	assert.Equal(t, "1:1", res.Image.AspectRatio)
	assert.GreaterOrEqual(t, res.Image.Seed, int64(0))
	assert.LessOrEqual(t, res.Image.Seed, int64(math.MaxUint32))
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	env := newTestEnv(t)
	brand := registerTestBrand(t, env)

	_, err := env.svc.Generate(context.Background(), &GenerateRequest{
		BrandID: brand.ID, UserID: "user-1",
	})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}
