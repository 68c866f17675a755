// Package store persists render job status for the HTTP API.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"narrator/models"
)

// ErrNotFound is returned when a job id is unknown.
var ErrNotFound = errors.New("job not found")

// Store keeps job status across the lifetime of a render.
type Store interface {
	Create(ctx context.Context, job models.JobStatus) error
	Update(ctx context.Context, job models.JobStatus) error
	Get(ctx context.Context, jobID string) (models.JobStatus, error)
	Close() error
}

// Open picks a backend from dsn:
//
//	""                      in-memory
//	sqlite://path, *.db     SQLite file
//	postgres://, postgresql://  Postgres through gorm
func Open(dsn string, logger *slog.Logger) (Store, error) {
	switch {
	case dsn == "" || dsn == "memory":
		return NewMemory(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return OpenPostgres(dsn, logger)
	case strings.HasPrefix(dsn, "sqlite://"):
		return OpenSQLite(strings.TrimPrefix(dsn, "sqlite://"))
	case strings.HasSuffix(dsn, ".db"), strings.HasSuffix(dsn, ".sqlite"):
		return OpenSQLite(dsn)
	}
	return nil, fmt.Errorf("unsupported DATABASE_URL %q", dsn)
}
