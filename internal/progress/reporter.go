// Package progress delivers ingestion progress events to remote observers
// identified by an opaque connection id.
package progress

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pricing-cli/internal/metrics"
	"github.com/sells-group/pricing-cli/internal/model"
)

// ErrUnknownConnection is returned by a notifier with no such observer.
var ErrUnknownConnection = eris.New("progress: unknown connection")

// Notifier pushes one event to one connection.
type Notifier interface {
	Notify(ctx context.Context, connectionID string, ev model.ProgressEvent) error
}

// Reporter is the best-effort front for a Notifier. Delivery failures are
// logged and dropped; only cancellation reaches the caller.
type Reporter struct {
	notifier Notifier
}

// NewReporter wraps n. A nil notifier makes every report a no-op.
func NewReporter(n Notifier) *Reporter {
	return &Reporter{notifier: n}
}

// Report sends ev to connectionID. An empty connection id is a no-op.
func (r *Reporter) Report(ctx context.Context, connectionID string, ev model.ProgressEvent) error {
	if connectionID == "" || r == nil || r.notifier == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "progress: report")
	}

	err := r.notifier.Notify(ctx, connectionID, ev)
	if err == nil {
		return nil
	}
	if isCancellation(ctx, err) {
		return eris.Wrap(err, "progress: report")
	}

	metrics.ProgressDeliveryFailures.Inc()
	zap.L().Warn("progress: delivery failed",
		zap.String("connection_id", connectionID),
		zap.String("stage", string(ev.Stage)),
		zap.Error(err),
	)
	return nil
}

func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}
