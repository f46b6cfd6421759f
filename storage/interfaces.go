package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"land-crawler/models"
)

// StatusSink is any destination the run status is published to.
type StatusSink interface {
	WriteStatus(ctx context.Context, status models.RunStatus) error
	Close() error
}

// ResultWriter is the interface any result exporter must satisfy.
type ResultWriter interface {
	Write(results []models.TargetResult) error
	Close() error
}

// OutputPath names an export file as complexes_{count}_{timestamp}.{ext} inside dir.
func OutputPath(dir string, count int, at time.Time, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("complexes_%d_%s.%s", count, at.Format("20060102_150405"), ext))
}
