// Package api exposes uploads, paged reads, the progress hub and metrics over
// HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/pricing-cli/internal/identity"
	"github.com/sells-group/pricing-cli/internal/ingest"
	"github.com/sells-group/pricing-cli/internal/metrics"
	"github.com/sells-group/pricing-cli/internal/model"
)

// Uploader runs one ingestion.
type Uploader interface {
	Ingest(ctx context.Context, req ingest.Request) (*model.UploadSummary, error)
}

// Querier reads one page of a tenant's pricing rows.
type Querier interface {
	Query(ctx context.Context, tenantID uuid.UUID, page, pageSize int) (*model.PagedResult[model.PricingRow], error)
}

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators behind the routes. Hub may be nil when progress
// is not delivered over websockets.
type Deps struct {
	Uploader Uploader
	Querier  Querier
	Health   Pinger
	Hub      http.Handler
	Tokens   *identity.Tokens
}

// Options tunes request handling.
type Options struct {
	AllowedOrigins []string
	// UploadRate is uploads per second per tenant; 0 disables the limit.
	UploadRate     float64
	UploadBurst    int
	MaxUploadBytes int64
	DefaultMode    model.Mode
	SkipBadRows    bool
}

const (
	defaultMaxUpload = 50 << 20
	healthTimeout    = 3 * time.Second
)

// NewRouter builds the HTTP handler.
func NewRouter(d Deps, opts Options) http.Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	if opts.DefaultMode == "" {
		opts.DefaultMode = model.ModeSkip
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if d.Tokens == nil {
		d.Tokens = identity.NewTokens(identity.Config{})
	}

	h := &handlers{deps: d, opts: opts}
	limiter := newTenantLimiter(opts.UploadRate, opts.UploadBurst)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: !allowsAny(opts.AllowedOrigins),
		MaxAge:           300,
	}))

	r.Get("/health", h.health)
	r.Handle("/metrics", metrics.Handler())
	if d.Hub != nil {
		r.Handle("/hubs/upload", d.Hub)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(identity.Authenticate(d.Tokens))

		r.With(identity.RequireRole(identity.RoleTourOperator), limiter.middleware).
			Post("/touroperators/{tourOperatorId}/pricing-upload", h.upload)
		r.With(identity.RequireRole(identity.RoleAdmin)).
			Get("/data/{tourOperatorId}", h.data)
	})

	return r
}

func allowsAny(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
