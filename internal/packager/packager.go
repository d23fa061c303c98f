// Package packager assembles a brand's training assets into a single zip
// archive suitable for upload to the training provider.
package packager

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/tphakala/brandforge-go/internal/datastore"
	"github.com/tphakala/brandforge-go/internal/errors"
	"github.com/tphakala/brandforge-go/internal/httpclient"
	"github.com/tphakala/brandforge-go/internal/logging"
)

// defaultExtension is used when an asset's original name carries no usable
// file extension.
const defaultExtension = "jpg"

// Fetcher is the download surface the packager needs. Satisfied by
// httpclient.Client.
type Fetcher interface {
	GetBytes(ctx context.Context, url string) ([]byte, error)
}

// Packager downloads source assets concurrently and writes them into an
// in-memory zip archive.
type Packager struct {
	fetcher Fetcher
	logger  *slog.Logger

	// OnFetchFailure is invoked for each asset that could not be fetched.
	// Used to feed the asset fetch failure counter.
	OnFetchFailure func(assetURL string)
}

// New creates a Packager. A nil fetcher gets a default pooled HTTP client.
func New(fetcher Fetcher) *Packager {
	if fetcher == nil {
		fetcher = httpclient.New(nil)
	}
	logger := logging.ForService("packager")
	if logger == nil {
		logger = slog.Default().With("service", "packager")
	}
	return &Packager{fetcher: fetcher, logger: logger}
}

type fetchResult struct {
	index int
	name  string
	data  []byte
	err   error
	url   string
}

// Pack fetches every asset and returns the zip archive bytes along with the
// number of entries that made it in. Fetches run concurrently, one goroutine
// per asset. Assets that fail to download are skipped with a logged warning
// rather than failing the whole archive; an archive with fewer entries than
// assets (even zero) is still returned, and callers decide whether the packed
// count is acceptable.
//
// Entry names are "<index>.<ext>" in the original asset order, so two assets
// with the same original filename never collide inside the archive.
func (p *Packager) Pack(ctx context.Context, assets []datastore.TrainingAsset) ([]byte, int, error) {
	results := make([]fetchResult, len(assets))

	var wg sync.WaitGroup
	for i := range assets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			asset := &assets[i]
			data, err := p.fetcher.GetBytes(ctx, asset.StoragePath)
			results[i] = fetchResult{
				index: i,
				name:  entryName(i, asset.OriginalName),
				data:  data,
				err:   err,
				url:   asset.StoragePath,
			}
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, 0, errors.New(err).
			Component("packager").
			Category(errors.CategoryCancellation).
			Context("operation", "pack").
			Build()
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	packed := 0
	for i := range results {
		r := &results[i]
		if r.err != nil {
			p.logger.Warn("Skipping asset that failed to fetch",
				"url", r.url,
				"error", r.err)
			if p.OnFetchFailure != nil {
				p.OnFetchFailure(r.url)
			}
			continue
		}

		w, err := zw.Create(r.name)
		if err != nil {
			_ = zw.Close()
			return nil, 0, errors.New(err).
				Component("packager").
				Category(errors.CategoryPackaging).
				Context("entry", r.name).
				Build()
		}
		if _, err := w.Write(r.data); err != nil {
			_ = zw.Close()
			return nil, 0, errors.New(err).
				Component("packager").
				Category(errors.CategoryPackaging).
				Context("entry", r.name).
				Build()
		}
		packed++
	}

	if err := zw.Close(); err != nil {
		return nil, 0, errors.New(err).
			Component("packager").
			Category(errors.CategoryPackaging).
			Context("operation", "finalize").
			Build()
	}

	p.logger.Info("Training archive packed",
		"assets_total", len(assets),
		"assets_packed", packed,
		"archive_bytes", buf.Len())
	return buf.Bytes(), packed, nil
}

// entryName builds the archive entry name for the asset at the given index.
// The extension comes from the asset's original filename, lowercased, falling
// back to jpg when absent.
func entryName(index int, originalName string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(originalName), "."))
	if ext == "" {
		ext = defaultExtension
	}
	return fmt.Sprintf("%d.%s", index, ext)
}
