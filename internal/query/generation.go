package query

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pricing-cli/internal/cache"
)

// Generations tracks the per-tenant cache generation. Bumping it makes every
// cached page for the tenant unreachable without deleting anything.
type Generations struct {
	cache cache.Cache
}

// NewGenerations creates a generation tracker over c.
func NewGenerations(c cache.Cache) *Generations {
	return &Generations{cache: c}
}

func generationKey(tenantID uuid.UUID) string {
	return "fact-gen:" + tenantID.String()
}

// Current returns the tenant's generation token, "0" when never bumped.
func (g *Generations) Current(ctx context.Context, tenantID uuid.UUID) (string, error) {
	n, err := g.cache.Counter(ctx, generationKey(tenantID))
	if err != nil {
		return "", eris.Wrapf(err, "query: read generation for %s", tenantID)
	}
	return strconv.FormatInt(n, 10), nil
}

// Bump advances the tenant's generation.
func (g *Generations) Bump(ctx context.Context, tenantID uuid.UUID) error {
	if _, err := g.cache.Incr(ctx, generationKey(tenantID)); err != nil {
		return eris.Wrapf(err, "query: bump generation for %s", tenantID)
	}
	return nil
}
