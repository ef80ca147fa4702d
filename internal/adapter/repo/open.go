package repo

import (
	"context"
	"fmt"

	"crowdfund/internal/domain"
	"crowdfund/internal/infra"
)

// Open builds the store selected by cfg.StorageDriver. Postgres schemas
// and SQLite migrations are applied before it returns.
func Open(ctx context.Context, cfg *infra.Config, logger infra.Logger) (domain.CampaignStore, error) {
	switch cfg.StorageDriver {
	case infra.StoragePostgres:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		runner := infra.NewSQLRunner(pool, logger.With().Str("component", "sql").Logger())
		store := NewCampaignRepository(runner, pool.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	case infra.StorageSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath)
	case infra.StorageMemory, "":
		return NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
