package api

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/sells-group/pricing-cli/internal/identity"
)

// tenantLimiter throttles uploads per authenticated tour operator.
type tenantLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func newTenantLimiter(perSecond float64, burst int) *tenantLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &tenantLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *tenantLimiter) get(tenant string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[tenant]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[tenant] = lim
	}
	return lim
}

func (l *tenantLimiter) middleware(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Keyed by the token's tenant, never the path.
		id, _ := identity.FromContext(r.Context())
		if !l.get(id.TenantID.String()).Allow() {
			writeJSON(w, http.StatusTooManyRequests, message("Too many uploads, retry later."))
			return
		}
		next.ServeHTTP(w, r)
	})
}
