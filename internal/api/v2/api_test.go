package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/brandforge-go/internal/conf"
	"github.com/tphakala/brandforge-go/internal/datastore"
	"github.com/tphakala/brandforge-go/internal/orchestrator"
	"github.com/tphakala/brandforge-go/internal/provider"
)

// scriptedProvider is a minimal provider.Client for handler tests.
type scriptedProvider struct {
	trainerVersion string
	job            provider.Job
	inferenceURLs  []string
}

func (p *scriptedProvider) CreateModel(context.Context, string, string, provider.ModelConfig) error {
	return nil
}

func (p *scriptedProvider) LatestTrainerVersion(context.Context) (string, error) {
	return p.trainerVersion, nil
}

func (p *scriptedProvider) StartTraining(_ context.Context, _ string, input provider.TrainingInput) (provider.Job, error) {
	return provider.Job{ID: "remote-1", Status: provider.StatusStarting, Destination: input.Destination}, nil
}

func (p *scriptedProvider) GetJob(context.Context, string) (provider.Job, error) {
	return p.job, nil
}

func (p *scriptedProvider) RunInference(context.Context, string, provider.InferenceInput) ([]string, error) {
	return p.inferenceURLs, nil
}

type memStore struct{}

func (memStore) Upload(context.Context, string, string, []byte, string) error { return nil }
func (memStore) Download(context.Context, string, string) ([]byte, error)    { return nil, nil }
func (memStore) PublicURL(bucket, object string) string {
	return "https://cdn.test/" + bucket + "/" + object
}

type memFetcher struct{}

func (memFetcher) GetBytes(_ context.Context, url string) ([]byte, error) {
	return []byte("payload-" + url), nil
}

type testServer struct {
	echo       *echo.Echo
	controller *Controller
	ds         datastore.Interface
	provider   *scriptedProvider
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "api_test.db")
	settings.Storage.ArchiveBucket = "training-archives"
	settings.Storage.ImageBucket = "generated-images"
	settings.Provider.Owner = "acme"

	ds := datastore.New(settings)
	require.NotNil(t, ds)
	require.NoError(t, ds.Open())
	t.Cleanup(func() {
		_ = ds.Close()
	})

	fp := &scriptedProvider{trainerVersion: "trainer-v1"}
	svc := orchestrator.New(ds, memStore{}, fp, memFetcher{}, settings, nil)

	e := echo.New()
	c := New(e, ds, svc, settings, nil)
	return &testServer{echo: e, controller: c, ds: ds, provider: fp}
}

func (ts *testServer) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(data))
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ts.echo.ServeHTTP(rec, req)
	return rec
}

func registerBrandReq() *CreateBrandRequest {
	assets := make([]AssetRequest, 5)
	for i := range assets {
		assets[i] = AssetRequest{
			URL:          fmt.Sprintf("https://img.example.com/%d", i),
			OriginalName: fmt.Sprintf("%d.jpg", i),
		}
	}
	return &CreateBrandRequest{UserID: "user-1", Name: "Coffee Co", Assets: assets}
}

func (ts *testServer) createBrand(t *testing.T) *BrandResponse {
	t.Helper()

	rec := ts.request(t, http.MethodPost, "/api/v2/brands", registerBrandReq())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var brand BrandResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &brand))
	return &brand
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/v2/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestCreateBrand(t *testing.T) {
	ts := newTestServer(t)

	brand := ts.createBrand(t)
	assert.NotEmpty(t, brand.ID)
	assert.Equal(t, "Coffee Co", brand.Name)
	assert.True(t, strings.HasPrefix(brand.TriggerPhrase, "tok-"), brand.TriggerPhrase)
}

func TestCreateBrandTooFewAssets(t *testing.T) {
	ts := newTestServer(t)

	req := registerBrandReq()
	req.Assets = req.Assets[:2]
	rec := ts.request(t, http.MethodPost, "/api/v2/brands", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.NotEmpty(t, errResp.CorrelationID)
}

func TestGetBrandNotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/v2/brands/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTrainBrand(t *testing.T) {
	ts := newTestServer(t)
	brand := ts.createBrand(t)

	rec := ts.request(t, http.MethodPost, "/api/v2/brands/"+brand.ID+"/train", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var job TrainingJobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, "starting", job.Status)
	assert.Equal(t, "remote-1", job.RemoteID)
}

func TestTrainBrandNotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodPost, "/api/v2/brands/missing/train", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGeneratePendingWhileTraining(t *testing.T) {
	ts := newTestServer(t)
	brand := ts.createBrand(t)
	ts.request(t, http.MethodPost, "/api/v2/brands/"+brand.ID+"/train", nil)

	ts.provider.job = provider.Job{ID: "remote-1", Status: provider.StatusProcessing}

	rec := ts.request(t, http.MethodPost, "/api/v2/brands/"+brand.ID+"/generate",
		&GenerateRequest{UserID: "user-1", Prompt: "a latte cup"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pending", resp.State)
	assert.Equal(t, "training", resp.JobStatus)
	assert.Nil(t, resp.Image)
}

func TestGenerateReady(t *testing.T) {
	ts := newTestServer(t)
	brand := ts.createBrand(t)
	ts.request(t, http.MethodPost, "/api/v2/brands/"+brand.ID+"/train", nil)

	ts.provider.job = provider.Job{
		ID: "remote-1", Status: provider.StatusSucceeded, OutputVersion: "ver-1",
	}
	ts.provider.inferenceURLs = []string{"https://delivery.example.com/out.webp"}

	rec := ts.request(t, http.MethodPost, "/api/v2/brands/"+brand.ID+"/generate",
		&GenerateRequest{UserID: "user-1", Prompt: "a latte cup", AspectRatio: "16:9"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.State)
	require.NotNil(t, resp.Image)
	assert.Contains(t, resp.Image.URL, "https://cdn.test/generated-images/generated/"+brand.ID+"/")
	assert.Equal(t, "16:9", resp.Image.AspectRatio)
}

func TestGenerateFailedTraining(t *testing.T) {
	ts := newTestServer(t)
	brand := ts.createBrand(t)
	ts.request(t, http.MethodPost, "/api/v2/brands/"+brand.ID+"/train", nil)

	ts.provider.job = provider.Job{ID: "remote-1", Status: provider.StatusFailed}

	rec := ts.request(t, http.MethodPost, "/api/v2/brands/"+brand.ID+"/generate",
		&GenerateRequest{UserID: "user-1", Prompt: "a latte cup"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "failed", resp.State)
}

func TestListImages(t *testing.T) {
	ts := newTestServer(t)
	brand := ts.createBrand(t)
	ts.request(t, http.MethodPost, "/api/v2/brands/"+brand.ID+"/train", nil)

	ts.provider.job = provider.Job{
		ID: "remote-1", Status: provider.StatusSucceeded, OutputVersion: "ver-1",
	}
	ts.provider.inferenceURLs = []string{"https://delivery.example.com/out.webp"}
	rec := ts.request(t, http.MethodPost, "/api/v2/brands/"+brand.ID+"/generate",
		&GenerateRequest{UserID: "user-1", Prompt: "a latte cup"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.request(t, http.MethodGet, "/api/v2/brands/"+brand.ID+"/images", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Images []ImageResponse `json:"images"`
		Limit  int             `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Images, 1)
	assert.Equal(t, 50, listing.Limit)
	assert.Contains(t, listing.Images[0].Prompt, "a latte cup, tok-")
}

func TestListImagesBrandNotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/v2/brands/missing/images", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
