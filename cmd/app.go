package main

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pricing-cli/internal/cache"
	"github.com/sells-group/pricing-cli/internal/ingest"
	"github.com/sells-group/pricing-cli/internal/progress"
	"github.com/sells-group/pricing-cli/internal/query"
	"github.com/sells-group/pricing-cli/internal/store"
)

// appEnv holds the store, cache and services shared by the upload, query and
// serve commands.
type appEnv struct {
	Store store.Store
	Cache cache.Cache
	Query *query.Service
}

// Close releases the store and, when it holds a connection, the cache.
func (e *appEnv) Close() {
	if closer, ok := e.Cache.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			zap.L().Warn("close cache", zap.Error(err))
		}
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// Ping checks the store and, when it is remote, the cache.
func (e *appEnv) Ping(ctx context.Context) error {
	var errs []error
	if err := e.Store.Ping(ctx); err != nil {
		errs = append(errs, err)
	}
	if p, ok := e.Cache.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// initApp validates config for command, opens the store (applying
// migrations), the cache and the query service. Callers should defer
// env.Close().
func initApp(ctx context.Context, command string) (*appEnv, error) {
	if err := cfg.Validate(command); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	c, err := cache.New(cache.Config{
		Driver:     cfg.Cache.Driver,
		RedisURL:   cfg.Cache.RedisURL,
		MaxEntries: cfg.Cache.MaxEntries,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	svc := query.NewService(st, c, query.Options{
		TTL:             time.Duration(cfg.Cache.TTLSecs) * time.Second,
		DefaultPageSize: cfg.Query.DefaultPageSize,
		MaxPageSize:     cfg.Query.MaxPageSize,
	})

	zap.L().Debug("app initialized",
		zap.String("store", cfg.Store.Driver),
		zap.String("cache", cfg.Cache.Driver),
	)
	return &appEnv{Store: st, Cache: c, Query: svc}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// newPipeline builds an ingestion pipeline that reports through n.
func (e *appEnv) newPipeline(n progress.Notifier) *ingest.Pipeline {
	return ingest.NewPipeline(
		e.Store,
		e.Query.Generations(),
		progress.NewReporter(n),
		ingest.Options{ProgressEvery: cfg.Ingest.ProgressEvery},
	)
}
