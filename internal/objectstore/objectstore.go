// Package objectstore provides durable object storage for packaged training
// archives and generated output images.
package objectstore

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tphakala/brandforge-go/internal/logging"
)

// Store is the narrow surface the orchestrator needs from object storage.
// Implementations must return stable, public-readable URLs from PublicURL.
type Store interface {
	Upload(ctx context.Context, bucket, objectName string, data []byte, contentType string) error
	Download(ctx context.Context, bucket, objectName string) ([]byte, error)
	PublicURL(bucket, objectName string) string
}

var (
	storeLogger *slog.Logger
	loggerOnce  sync.Once
)

func getLogger() *slog.Logger {
	loggerOnce.Do(func() {
		storeLogger = logging.ForService("objectstore")
		if storeLogger == nil {
			storeLogger = slog.Default().With("service", "objectstore")
		}
	})
	return storeLogger
}
