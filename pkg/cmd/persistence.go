package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slidesmith/slidesmith/pkg/persistence"
	"github.com/slidesmith/slidesmith/pkg/persistence/file"
	"github.com/slidesmith/slidesmith/pkg/persistence/memory"
	"github.com/slidesmith/slidesmith/pkg/persistence/postgresql"
)

// NewJobRepository selects the job store by URL scheme: memory:// (default),
// file://<dir>, or postgres://.
func NewJobRepository(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Repository, error) {
	switch {
	case databaseURL == "" || databaseURL == "memory://":
		return memory.NewRepository(), nil
	case strings.HasPrefix(databaseURL, "file://"):
		return file.NewRepository(strings.TrimPrefix(databaseURL, "file://"))
	case strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://"):
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return nil, fmt.Errorf("unsupported database URL: %s", databaseURL)
	}
}
