package progress

import (
	"context"
	"errors"

	"github.com/sells-group/pricing-cli/internal/model"
)

// Multi fans an event out to several notifiers. Every notifier is tried;
// the joined error reports the ones that failed.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, connectionID string, ev model.ProgressEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, connectionID, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

// Notify implements Notifier.
func (Discard) Notify(context.Context, string, model.ProgressEvent) error { return nil }
