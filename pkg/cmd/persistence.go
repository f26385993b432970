package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nova-hud/nova/pkg/persistence"
	"github.com/nova-hud/nova/pkg/persistence/file"
	"github.com/nova-hud/nova/pkg/persistence/postgresql"
	"github.com/nova-hud/nova/pkg/persistence/sqlite"
)

// NewPersistence opens the store named by databaseURL. URLs without a known
// scheme are treated as a directory for the file store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres":
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, err
		}

		return store, nil
	case "sqlite":
		store, err := sqlite.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, err
		}

		return store, nil
	default:
		root := strings.TrimPrefix(databaseURL, "file://")
		if root == "" {
			return nil, fmt.Errorf("file persistence needs a directory")
		}

		return file.NewPersistence(root), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	switch scheme {
	case "postgres", "postgresql":
		return "postgres"
	case "sqlite":
		return "sqlite"
	default:
		return "file"
	}
}
