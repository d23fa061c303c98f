package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/tphakala/brandforge-go/internal/conf"
	"github.com/tphakala/brandforge-go/internal/errors"
	"github.com/tphakala/brandforge-go/internal/httpclient"
)

const (
	// trainerVersionCacheKey caches the resolved trainer version so repeated
	// launches don't hammer the provider's model endpoint.
	trainerVersionCacheKey = "trainer-version"
	trainerVersionCacheTTL = 10 * time.Minute
)

// HTTPClient talks to a Replicate-style REST API.
type HTTPClient struct {
	http         *httpclient.Client
	baseURL      string
	token        string
	trainerOwner string
	trainerModel string
	cache        *cache.Cache
}

// NewHTTPClient builds a provider client from settings. The trainer version
// lookup is cached with a short TTL so the latest version is still picked up
// within minutes of the provider publishing one.
func NewHTTPClient(settings *conf.ProviderSettings, hc *httpclient.Client) *HTTPClient {
	if hc == nil {
		hc = httpclient.New(nil)
	}
	return &HTTPClient{
		http:         hc,
		baseURL:      strings.TrimSuffix(settings.BaseURL, "/"),
		token:        settings.Token,
		trainerOwner: settings.TrainerOwner,
		trainerModel: settings.TrainerModel,
		cache:        cache.New(trainerVersionCacheTTL, 2*trainerVersionCacheTTL),
	}
}

type createModelRequest struct {
	Owner       string `json:"owner"`
	Name        string `json:"name"`
	Visibility  string `json:"visibility"`
	Hardware    string `json:"hardware"`
	Description string `json:"description,omitempty"`
}

type modelResponse struct {
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	LatestVersion *struct {
		ID string `json:"id"`
	} `json:"latest_version"`
}

type trainingRequest struct {
	Destination string         `json:"destination"`
	Input       map[string]any `json:"input"`
}

type trainingResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Output *struct {
		Version string `json:"version"`
	} `json:"output"`
	Error any `json:"error"`
}

type predictionRequest struct {
	Version string         `json:"version"`
	Input   map[string]any `json:"input"`
}

type predictionResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
}

// CreateModel provisions the model container. A conflict from the provider is
// mapped to ErrModelExists so callers can treat re-provisioning as a no-op.
func (c *HTTPClient) CreateModel(ctx context.Context, owner, name string, cfg ModelConfig) error {
	body := createModelRequest{
		Owner:      owner,
		Name:       name,
		Visibility: cfg.Visibility,
		Hardware:   cfg.Hardware,
	}

	resp, err := c.post(ctx, c.baseURL+"/models", body, nil)
	if err != nil {
		return errors.New(err).
			Component("provider").
			Category(errors.CategoryProvisioning).
			Context("operation", "create_model").
			Context("model", owner+"/"+name).
			Build()
	}
	defer drainAndClose(resp)

	switch {
	case resp.StatusCode == http.StatusConflict:
		getLogger().Debug("Model already exists, reusing", "model", owner+"/"+name)
		return ErrModelExists
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		getLogger().Info("Model created", "model", owner+"/"+name)
		return nil
	default:
		detail := readErrorBody(resp)
		if strings.Contains(strings.ToLower(detail), "already exists") {
			return ErrModelExists
		}
		return errors.Newf("create model failed with status %d: %s", resp.StatusCode, detail).
			Component("provider").
			Category(errors.CategoryProvisioning).
			Context("model", owner+"/"+name).
			Build()
	}
}

// LatestTrainerVersion returns the trainer's current version, consulting a
// short-lived cache first.
func (c *HTTPClient) LatestTrainerVersion(ctx context.Context) (string, error) {
	if v, found := c.cache.Get(trainerVersionCacheKey); found {
		if version, ok := v.(string); ok && version != "" {
			return version, nil
		}
	}

	url := fmt.Sprintf("%s/models/%s/%s", c.baseURL, c.trainerOwner, c.trainerModel)
	resp, err := c.get(ctx, url)
	if err != nil {
		return "", errors.New(err).
			Component("provider").
			Category(errors.CategoryNetwork).
			Context("operation", "latest_trainer_version").
			Build()
	}
	defer drainAndClose(resp)

	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf("trainer lookup failed with status %d: %s", resp.StatusCode, readErrorBody(resp)).
			Component("provider").
			Category(errors.CategoryTraining).
			Context("trainer", c.trainerOwner+"/"+c.trainerModel).
			Build()
	}

	var model modelResponse
	if err := json.NewDecoder(resp.Body).Decode(&model); err != nil {
		return "", errors.New(err).
			Component("provider").
			Category(errors.CategoryTraining).
			Context("operation", "decode_trainer").
			Build()
	}
	if model.LatestVersion == nil || model.LatestVersion.ID == "" {
		return "", errors.Newf("trainer %s/%s has no published version", c.trainerOwner, c.trainerModel).
			Component("provider").
			Category(errors.CategoryTraining).
			Build()
	}

	c.cache.Set(trainerVersionCacheKey, model.LatestVersion.ID, cache.DefaultExpiration)
	return model.LatestVersion.ID, nil
}

// StartTraining launches a remote training run against the given trainer
// version and returns the provider's job handle.
func (c *HTTPClient) StartTraining(ctx context.Context, trainerVersion string, input TrainingInput) (Job, error) {
	url := fmt.Sprintf("%s/models/%s/%s/versions/%s/trainings",
		c.baseURL, c.trainerOwner, c.trainerModel, trainerVersion)

	body := trainingRequest{
		Destination: input.Destination,
		Input: map[string]any{
			"input_images":         input.InputImagesURL,
			"trigger_word":         input.TriggerWord,
			"steps":                input.Steps,
			"lora_rank":            input.LoraRank,
			"optimizer":            input.Optimizer,
			"learning_rate":        input.LearningRate,
			"batch_size":           input.BatchSize,
			"resolution":           input.Resolution,
			"caption_dropout_rate": input.CaptionDropoutRate,
		},
	}

	resp, err := c.post(ctx, url, body, nil)
	if err != nil {
		return Job{}, errors.New(err).
			Component("provider").
			Category(errors.CategoryTraining).
			Context("operation", "start_training").
			Context("destination", input.Destination).
			Build()
	}
	defer drainAndClose(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Job{}, errors.Newf("start training failed with status %d: %s", resp.StatusCode, readErrorBody(resp)).
			Component("provider").
			Category(errors.CategoryTraining).
			Context("destination", input.Destination).
			Build()
	}

	var tr trainingResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return Job{}, errors.New(err).
			Component("provider").
			Category(errors.CategoryTraining).
			Context("operation", "decode_training").
			Build()
	}

	getLogger().Info("Training launched",
		"job_id", tr.ID,
		"destination", input.Destination,
		"trainer_version", trainerVersion)
	return jobFromTraining(&tr, input.Destination), nil
}

// GetJob fetches the remote job's current state.
func (c *HTTPClient) GetJob(ctx context.Context, jobID string) (Job, error) {
	resp, err := c.get(ctx, c.baseURL+"/trainings/"+jobID)
	if err != nil {
		return Job{}, errors.New(err).
			Component("provider").
			Category(errors.CategoryNetwork).
			Context("operation", "get_job").
			Context("job_id", jobID).
			Build()
	}
	defer drainAndClose(resp)

	if resp.StatusCode == http.StatusNotFound {
		return Job{}, errors.Newf("training job %s not found", jobID).
			Component("provider").
			Category(errors.CategoryNotFound).
			Build()
	}
	if resp.StatusCode != http.StatusOK {
		return Job{}, errors.Newf("get job failed with status %d: %s", resp.StatusCode, readErrorBody(resp)).
			Component("provider").
			Category(errors.CategoryTraining).
			Context("job_id", jobID).
			Build()
	}

	var tr trainingResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return Job{}, errors.New(err).
			Component("provider").
			Category(errors.CategoryTraining).
			Context("operation", "decode_job").
			Build()
	}
	return jobFromTraining(&tr, ""), nil
}

// RunInference executes one prediction against a model reference of the form
// "owner/name:version". The Prefer header asks the provider to hold the
// connection open until the prediction settles instead of forcing a poll loop.
func (c *HTTPClient) RunInference(ctx context.Context, modelRef string, input InferenceInput) ([]string, error) {
	version := modelRef
	if idx := strings.LastIndex(modelRef, ":"); idx >= 0 {
		version = modelRef[idx+1:]
	}
	if version == "" {
		return nil, errors.Newf("model reference %q has no version", modelRef).
			Component("provider").
			Category(errors.CategoryValidation).
			Build()
	}

	body := predictionRequest{
		Version: version,
		Input: map[string]any{
			"prompt":                 input.Prompt,
			"aspect_ratio":           input.AspectRatio,
			"seed":                   input.Seed,
			"guidance_scale":         input.GuidanceScale,
			"lora_scale":             input.LoraScale,
			"num_inference_steps":    input.NumInferenceSteps,
			"disable_safety_checker": input.DisableSafetyChecker,
			"output_format":          input.OutputFormat,
			"output_quality":         input.OutputQuality,
		},
	}

	resp, err := c.post(ctx, c.baseURL+"/predictions", body, map[string]string{"Prefer": "wait"})
	if err != nil {
		return nil, errors.New(err).
			Component("provider").
			Category(errors.CategoryInference).
			Context("operation", "run_inference").
			Build()
	}
	defer drainAndClose(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Newf("inference failed with status %d: %s", resp.StatusCode, readErrorBody(resp)).
			Component("provider").
			Category(errors.CategoryInference).
			Build()
	}

	var pr predictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, errors.New(err).
			Component("provider").
			Category(errors.CategoryInference).
			Context("operation", "decode_prediction").
			Build()
	}

	if Status(pr.Status) == StatusFailed || Status(pr.Status) == StatusCanceled {
		return nil, errors.Newf("prediction %s ended %s: %v", pr.ID, pr.Status, pr.Error).
			Component("provider").
			Category(errors.CategoryInference).
			Build()
	}

	urls, err := decodeOutputURLs(pr.Output)
	if err != nil {
		return nil, errors.New(err).
			Component("provider").
			Category(errors.CategoryInference).
			Context("prediction_id", pr.ID).
			Build()
	}
	if len(urls) == 0 {
		return nil, errors.Newf("prediction %s returned no output", pr.ID).
			Component("provider").
			Category(errors.CategoryInference).
			Build()
	}
	return urls, nil
}

// jobFromTraining maps the wire response to a Job. The trained version on a
// succeeded job arrives as "owner/name:versionid"; only the id is kept.
func jobFromTraining(tr *trainingResponse, destination string) Job {
	job := Job{
		ID:          tr.ID,
		Status:      Status(tr.Status),
		Destination: destination,
	}
	if tr.Output != nil && tr.Output.Version != "" {
		version := tr.Output.Version
		if idx := strings.LastIndex(version, ":"); idx >= 0 {
			version = version[idx+1:]
		}
		job.OutputVersion = version
	}
	return job
}

// decodeOutputURLs accepts either a single URL string or a list of URLs,
// both of which the provider emits depending on the model.
func decodeOutputURLs(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}

	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, fmt.Errorf("unexpected prediction output shape: %w", err)
	}
	return many, nil
}

func (c *HTTPClient) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	c.authorize(req)
	return c.http.Do(ctx, req)
}

func (c *HTTPClient) post(ctx context.Context, url string, body any, headers map[string]string) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(data)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	c.authorize(req)
	return c.http.Do(ctx, req)
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func readErrorBody(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
