// Package query serves paged pricing reads behind a generation-versioned cache.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pricing-cli/internal/cache"
	"github.com/sells-group/pricing-cli/internal/metrics"
	"github.com/sells-group/pricing-cli/internal/model"
	"github.com/sells-group/pricing-cli/internal/store"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
	DefaultTTL      = 60 * time.Second
)

// Options tunes a Service. Zero values take the package defaults.
type Options struct {
	TTL             time.Duration
	DefaultPageSize int
	MaxPageSize     int
}

// Service answers paged fact queries, caching each page under the tenant's
// current generation.
type Service struct {
	reader store.FactReader
	cache  cache.Cache
	gens   *Generations
	opts   Options
}

// NewService creates a query service.
func NewService(reader store.FactReader, c cache.Cache, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = MaxPageSize
	}
	if opts.DefaultPageSize <= 0 || opts.DefaultPageSize > opts.MaxPageSize {
		opts.DefaultPageSize = DefaultPageSize
	}
	return &Service{reader: reader, cache: c, gens: NewGenerations(c), opts: opts}
}

// Generations exposes the tracker so writers can bump it.
func (s *Service) Generations() *Generations {
	return s.gens
}

// Clamp normalizes page and pageSize.
func (s *Service) Clamp(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > s.opts.MaxPageSize {
		pageSize = s.opts.DefaultPageSize
	}
	return page, pageSize
}

func pageKey(gen string, tenantID uuid.UUID, page, pageSize int) string {
	return fmt.Sprintf("fact:%s:%s:%d:%d", gen, tenantID, page, pageSize)
}

// Query returns one page of the tenant's facts ordered by date.
func (s *Service) Query(ctx context.Context, tenantID uuid.UUID, page, pageSize int) (*model.PagedResult[model.PricingRow], error) {
	page, pageSize = s.Clamp(page, pageSize)

	gen, err := s.gens.Current(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	key := pageKey(gen, tenantID, page, pageSize)

	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, eris.Wrap(err, "query: cache get")
	}
	if ok {
		var res model.PagedResult[model.PricingRow]
		if err := json.Unmarshal(raw, &res); err == nil {
			metrics.QueryCacheTotal.WithLabelValues("hit").Inc()
			return &res, nil
		}
		zap.L().Warn("query: discarding undecodable cache entry", zap.String("key", key))
	}
	metrics.QueryCacheTotal.WithLabelValues("miss").Inc()

	items, err := s.reader.ListFacts(ctx, tenantID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, eris.Wrap(err, "query: list facts")
	}
	total, err := s.reader.CountFacts(ctx, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "query: count facts")
	}
	if items == nil {
		items = []model.PricingRow{}
	}

	res := &model.PagedResult[model.PricingRow]{Items: items, Total: total, Page: page, PageSize: pageSize}
	encoded, err := json.Marshal(res)
	if err != nil {
		return nil, eris.Wrap(err, "query: encode page")
	}
	if err := s.cache.Set(ctx, key, encoded, s.opts.TTL); err != nil {
		zap.L().Warn("query: cache set failed", zap.String("key", key), zap.Error(err))
	}
	return res, nil
}
