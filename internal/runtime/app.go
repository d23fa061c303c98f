package runtime

import (
	"context"

	"github.com/tphakala/brandforge-go/internal/conf"
	"github.com/tphakala/brandforge-go/internal/datastore"
	"github.com/tphakala/brandforge-go/internal/errors"
	"github.com/tphakala/brandforge-go/internal/httpclient"
	"github.com/tphakala/brandforge-go/internal/objectstore"
	"github.com/tphakala/brandforge-go/internal/observability"
	"github.com/tphakala/brandforge-go/internal/orchestrator"
	"github.com/tphakala/brandforge-go/internal/provider"
)

// App holds the wired application services shared by all commands.
type App struct {
	Settings     *conf.Settings
	DS           datastore.Interface
	Store        objectstore.Store
	Provider     provider.Client
	Orchestrator *orchestrator.Service
	Metrics      *observability.Metrics

	httpClient *httpclient.Client
}

// Build opens the datastore and object store and wires the orchestration
// service. Callers own the returned App and must Close it.
func Build(ctx context.Context, settings *conf.Settings) (*App, error) {
	ds := datastore.New(settings)
	if ds == nil {
		return nil, errors.Newf("no database output enabled in configuration").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := ds.Open(); err != nil {
		return nil, err
	}

	store, err := objectstore.NewMinioStore(ctx, &settings.Storage)
	if err != nil {
		_ = ds.Close()
		return nil, err
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		_ = ds.Close()
		return nil, err
	}

	hc := httpclient.New(nil)
	pc := provider.NewHTTPClient(&settings.Provider, hc)
	svc := orchestrator.New(ds, store, pc, hc, settings, metrics)

	return &App{
		Settings:     settings,
		DS:           ds,
		Store:        store,
		Provider:     pc,
		Orchestrator: svc,
		Metrics:      metrics,
		httpClient:   hc,
	}, nil
}

// Close releases the datastore connection and idle HTTP connections.
func (a *App) Close() error {
	a.httpClient.Close()
	return a.DS.Close()
}
