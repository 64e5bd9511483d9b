package store

import (
	"context"

	"github.com/rotisserie/eris"
)

// Open returns the store for the configured driver.
func Open(ctx context.Context, driver, databaseURL string, poolCfg *PoolConfig) (Store, error) {
	switch driver {
	case "sqlite":
		dsn := databaseURL
		if dsn == "" {
			dsn = "pricing.db"
		}
		return NewSQLite(dsn)
	case "postgres", "":
		return NewPostgres(ctx, databaseURL, poolCfg)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", driver)
	}
}
