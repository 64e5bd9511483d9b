package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/pricing-cli/internal/api"
	"github.com/sells-group/pricing-cli/internal/identity"
	"github.com/sells-group/pricing-cli/internal/model"
	"github.com/sells-group/pricing-cli/internal/progress"
	"github.com/sells-group/pricing-cli/internal/resilience"
)

var servePort int

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the pricing upload and query API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		notifier, hub, closeNotifier, err := initNotifier()
		if err != nil {
			return err
		}
		defer closeNotifier()

		deps := api.Deps{
			Uploader: env.newPipeline(notifier),
			Querier:  env.Query,
			Health:   env,
			Tokens: identity.NewTokens(identity.Config{
				Secret:   cfg.Auth.JWTSecret,
				Issuer:   cfg.Auth.Issuer,
				Audience: cfg.Auth.Audience,
			}),
		}
		if hub != nil {
			deps.Hub = hub
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr: fmt.Sprintf(":%d", port),
			Handler: api.NewRouter(deps, api.Options{
				AllowedOrigins: cfg.Server.AllowedOrigins,
				UploadRate:     cfg.Server.UploadRate,
				UploadBurst:    cfg.Server.UploadBurst,
				MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
				DefaultMode:    model.ParseMode(cfg.Ingest.DefaultMode),
				SkipBadRows:    cfg.Ingest.SkipBadRows,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server",
				zap.Int("port", port),
				zap.String("progress", cfg.Progress.Driver),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			if hub != nil {
				hub.Close()
			}
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
			defer cancel()
			return eris.Wrap(srv.Shutdown(shutdownCtx), "server shutdown")
		})

		return g.Wait()
	},
}

// initNotifier builds the progress notifier for progress.driver. The hub is
// returned separately so its route can be mounted; it is nil unless the
// driver is websocket.
func initNotifier() (progress.Notifier, *progress.Hub, func(), error) {
	noop := func() {}
	switch cfg.Progress.Driver {
	case "", "websocket":
		hub := progress.NewHub(originChecker(cfg.Server.AllowedOrigins))
		return hub, hub, noop, nil
	case "kafka":
		k, err := progress.NewKafkaNotifier(cfg.Progress.KafkaBrokers, cfg.Progress.KafkaTopic)
		if err != nil {
			return nil, nil, noop, err
		}
		return k, nil, func() {
			if err := k.Close(); err != nil {
				zap.L().Warn("close kafka notifier", zap.Error(err))
			}
		}, nil
	case "webhook":
		breaker := resilience.BreakerConfigFrom(cfg.Progress.BreakerFailures, cfg.Progress.BreakerResetSecs)
		breaker.OnChange = func(from, to resilience.State) {
			zap.L().Warn("progress webhook breaker changed state",
				zap.Stringer("from", from), zap.Stringer("to", to))
		}
		return progress.NewWebhookNotifier(cfg.Progress.WebhookURL, breaker), nil, noop, nil
	case "none":
		return progress.Discard{}, nil, noop, nil
	default:
		return nil, nil, noop, eris.Errorf("unsupported progress driver: %s", cfg.Progress.Driver)
	}
}

// originChecker allows websocket upgrades from the configured CORS origins.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return nil
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
