package ingest

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pricing-cli/internal/model"
	"github.com/sells-group/pricing-cli/internal/store"
)

// ErrDuplicateAbort is returned when mode=error meets an existing fact key.
// The run stops at that row; the partial summary is returned alongside.
var ErrDuplicateAbort = eris.New("ingest: duplicate pricing fact")

// Outcome is the result of writing one candidate row.
type Outcome int

const (
	OutcomeInserted Outcome = iota
	OutcomeSkipped
)

// ConflictResolver writes one fact at a time under a duplicate-key policy.
type ConflictResolver struct {
	writer store.FactWriter
	mode   model.Mode
}

// NewConflictResolver binds a policy for one run. Unknown modes act as skip.
func NewConflictResolver(w store.FactWriter, mode model.Mode) *ConflictResolver {
	switch mode {
	case model.ModeSkip, model.ModeOverwrite, model.ModeError:
	default:
		mode = model.ModeSkip
	}
	return &ConflictResolver{writer: w, mode: mode}
}

// Mode returns the effective policy.
func (c *ConflictResolver) Mode() model.Mode { return c.mode }

// Apply writes fact according to the policy.
func (c *ConflictResolver) Apply(ctx context.Context, fact model.PricingFact) (Outcome, error) {
	switch c.mode {
	case model.ModeOverwrite:
		return c.overwrite(ctx, fact)
	case model.ModeError:
		err := c.writer.InsertOne(ctx, fact)
		if store.IsDuplicateKey(err) {
			return OutcomeSkipped, eris.Wrapf(ErrDuplicateAbort, "route %s season %s date %s", fact.RouteID, fact.SeasonID, fact.Date)
		}
		if err != nil {
			return OutcomeSkipped, eris.Wrap(err, "ingest: insert fact")
		}
		return OutcomeInserted, nil
	default:
		err := c.writer.InsertOne(ctx, fact)
		if store.IsDuplicateKey(err) {
			return OutcomeSkipped, nil
		}
		if err != nil {
			return OutcomeSkipped, eris.Wrap(err, "ingest: insert fact")
		}
		return OutcomeInserted, nil
	}
}

func (c *ConflictResolver) overwrite(ctx context.Context, fact model.PricingFact) (Outcome, error) {
	existing, err := c.writer.FindByKey(ctx, fact.Key())
	if err != nil {
		return OutcomeSkipped, eris.Wrap(err, "ingest: find fact")
	}
	if existing != nil {
		if err := c.writer.UpdateOne(ctx, fact); err != nil {
			return OutcomeSkipped, eris.Wrap(err, "ingest: update fact")
		}
		return OutcomeInserted, nil
	}

	err = c.writer.InsertOne(ctx, fact)
	if store.IsDuplicateKey(err) {
		// Another writer created the key after the lookup.
		err = c.writer.UpdateOne(ctx, fact)
		if errors.Is(err, store.ErrNotFound) {
			return OutcomeSkipped, eris.Wrap(err, "ingest: overwrite raced fact")
		}
	}
	if err != nil {
		return OutcomeSkipped, eris.Wrap(err, "ingest: write fact")
	}
	return OutcomeInserted, nil
}
