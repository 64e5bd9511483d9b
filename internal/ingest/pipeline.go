// Package ingest validates uploaded pricing rows, resolves their dimensions,
// and writes them as facts under a duplicate-key policy.
//
// A run moves through Validating, BatchAttempt and, only when the batch is
// rejected for a duplicate key, PerRowFallback. Cache generation is bumped
// once per run after any successful write.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pricing-cli/internal/decode"
	"github.com/sells-group/pricing-cli/internal/metrics"
	"github.com/sells-group/pricing-cli/internal/model"
	"github.com/sells-group/pricing-cli/internal/store"
)

const defaultProgressEvery = 500

// Store is the write surface the pipeline needs.
type Store interface {
	store.DimensionStore
	store.FactWriter
}

// GenerationBumper advances a tenant's cache generation.
type GenerationBumper interface {
	Bump(ctx context.Context, tenantID uuid.UUID) error
}

// Reporter delivers progress to an observer. Only cancellation is returned;
// other delivery failures are absorbed by the implementation.
type Reporter interface {
	Report(ctx context.Context, connectionID string, ev model.ProgressEvent) error
}

// Request describes one upload.
type Request struct {
	TenantID     uuid.UUID
	Input        io.Reader
	Format       decode.Format
	ConnectionID string
	SkipBadRows  bool
	Mode         model.Mode
}

// Options tunes a Pipeline.
type Options struct {
	// ProgressEvery is the row interval between processing events. Default 500.
	ProgressEvery int
}

// Pipeline runs ingestion. It holds no per-run state and is safe for
// concurrent use.
type Pipeline struct {
	store    Store
	gens     GenerationBumper
	reporter Reporter
	opts     Options
	now      func() time.Time
}

// NewPipeline wires a pipeline. reporter may be nil.
func NewPipeline(st Store, gens GenerationBumper, reporter Reporter, opts Options) *Pipeline {
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = defaultProgressEvery
	}
	return &Pipeline{store: st, gens: gens, reporter: reporter, opts: opts, now: time.Now}
}

// run carries the mutable state of one Ingest call.
type run struct {
	p        *Pipeline
	req      Request
	summary  *model.UploadSummary
	resolver *Resolver
	total    int // data rows from the pre-scan, -1 if unknown
	written  bool
}

// Ingest processes req and returns its summary.
//
// Errors: cancellation and store failures return a nil summary. A duplicate
// under mode=error returns the partial summary together with an error
// matching ErrDuplicateAbort.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*model.UploadSummary, error) {
	start := p.now()
	r := &run{
		p:        p,
		req:      req,
		summary:  model.NewUploadSummary(),
		resolver: NewResolver(p.store),
		total:    -1,
	}
	log := zap.L().With(
		zap.String("tenant_id", req.TenantID.String()),
		zap.String("mode", string(req.Mode)),
		zap.Bool("skip_bad_rows", req.SkipBadRows),
	)

	summary, err := r.execute(ctx)

	if r.written {
		// Writes are committed even if the caller went away, so the
		// invalidation must still land.
		if berr := p.gens.Bump(context.WithoutCancel(ctx), req.TenantID); berr != nil {
			log.Error("ingest: cache generation bump failed", zap.Error(berr))
		}
	}

	metrics.UploadDuration.Observe(p.now().Sub(start).Seconds())
	metrics.UploadsTotal.WithLabelValues(outcome(err)).Inc()
	if summary != nil {
		metrics.RowsTotal.WithLabelValues("inserted").Add(float64(summary.InsertedCount))
		metrics.RowsTotal.WithLabelValues("skipped").Add(float64(summary.SkippedCount))
	}

	switch {
	case err == nil:
		log.Info("ingest: run complete",
			zap.Int("inserted", summary.InsertedCount),
			zap.Int("skipped", summary.SkippedCount),
			zap.Duration("elapsed", p.now().Sub(start)),
		)
	case errors.Is(err, ErrDuplicateAbort):
		log.Warn("ingest: run aborted on duplicate",
			zap.Int("inserted", summary.InsertedCount),
			zap.Error(err),
		)
	default:
		log.Error("ingest: run failed", zap.Error(err))
	}
	return summary, err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDuplicateAbort):
		return "aborted"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "failed"
	}
}

func (r *run) execute(ctx context.Context) (*model.UploadSummary, error) {
	if rs, ok := r.req.Input.(io.ReadSeeker); ok {
		n, err := decode.CountRecords(rs, r.req.Format)
		if err != nil {
			return nil, eris.Wrap(err, "ingest: pre-scan")
		}
		r.total = n
	}

	candidates, stop, err := r.validate(ctx)
	if err != nil || stop {
		return r.result(err)
	}

	if len(candidates) == 0 {
		return r.result(r.report(ctx, model.StageDone, intPtr(100), "No rows to insert"))
	}
	return r.result(r.insert(ctx, candidates))
}

// result drops the summary for fatal errors other than a mode=error abort.
func (r *run) result(err error) (*model.UploadSummary, error) {
	if err == nil || errors.Is(err, ErrDuplicateAbort) {
		return r.summary, err
	}
	return nil, err
}

// validate consumes the input and returns fact candidates in input order.
// stop is true when fail-fast ended the run.
func (r *run) validate(ctx context.Context) (_ []model.PricingFact, stop bool, _ error) {
	if err := r.report(ctx, model.StageValidationStarted, r.percent(0), "Validating rows"); err != nil {
		return nil, false, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	rowCh, errCh := decode.Stream(streamCtx, r.req.Input, r.req.Format)

	var candidates []model.PricingFact
	seen := 0
	for rec := range rowCh {
		if err := ctx.Err(); err != nil {
			return nil, false, eris.Wrap(err, "ingest: validating")
		}
		seen++

		row, verr := ValidateRecord(r.req.TenantID, rec)
		if verr != nil {
			var ve *ValidationError
			if errors.As(verr, &ve) {
				r.summary.AddError(ve.Row, ve.Reason)
			}
			if !r.req.SkipBadRows {
				return nil, true, nil
			}
		} else {
			fact, err := r.candidate(ctx, row)
			if err != nil {
				return nil, false, err
			}
			candidates = append(candidates, fact)
		}

		if seen%r.p.opts.ProgressEvery == 0 {
			if err := r.report(ctx, model.StageProcessing, r.percent(seen), fmt.Sprintf("Processed %d rows", seen)); err != nil {
				return nil, false, err
			}
		}
	}
	if err := <-errCh; err != nil {
		if ctx.Err() != nil {
			return nil, false, eris.Wrap(ctx.Err(), "ingest: validating")
		}
		return nil, false, eris.Wrap(err, "ingest: decode input")
	}
	return candidates, false, nil
}

func (r *run) candidate(ctx context.Context, row model.ValidatedPricingRow) (model.PricingFact, error) {
	routeID, err := r.resolver.Resolve(ctx, row.TenantID, model.DimensionRoute, row.RouteCode)
	if err != nil {
		return model.PricingFact{}, err
	}
	seasonID, err := r.resolver.Resolve(ctx, row.TenantID, model.DimensionSeason, row.SeasonCode)
	if err != nil {
		return model.PricingFact{}, err
	}
	return model.PricingFact{
		TenantID:      row.TenantID,
		RouteID:       routeID,
		SeasonID:      seasonID,
		Date:          row.Date,
		EconomyPrice:  row.EconomyPrice,
		BusinessPrice: row.BusinessPrice,
		EconomySeats:  row.EconomySeats,
		BusinessSeats: row.BusinessSeats,
		CreatedAt:     r.p.now().UTC(),
	}, nil
}

// insert tries one atomic batch and falls back to per-row writes only when
// the batch is rejected for a duplicate key.
func (r *run) insert(ctx context.Context, candidates []model.PricingFact) error {
	n := len(candidates)
	if err := r.report(ctx, model.StageBulkInsertStarted, intPtr(0), fmt.Sprintf("Inserting %d rows", n)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "ingest: before batch insert")
	}

	inserted, err := r.p.store.InsertBatch(ctx, candidates)
	if err == nil {
		r.summary.InsertedCount += inserted
		r.written = inserted > 0
		return r.report(ctx, model.StageBulkInsertCompleted, intPtr(100), fmt.Sprintf("Inserted %d rows", inserted))
	}
	if !store.IsDuplicateKey(err) {
		return eris.Wrap(err, "ingest: batch insert")
	}

	metrics.BatchFallbacksTotal.Inc()
	zap.L().Info("ingest: batch rejected on duplicate key, writing row by row",
		zap.String("tenant_id", r.req.TenantID.String()),
		zap.Int("candidates", n),
	)
	return r.fallback(ctx, candidates)
}

func (r *run) fallback(ctx context.Context, candidates []model.PricingFact) error {
	resolver := NewConflictResolver(r.p.store, r.req.Mode)
	n := len(candidates)

	for i, fact := range candidates {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "ingest: per-row fallback")
		}

		out, err := resolver.Apply(ctx, fact)
		if err != nil {
			return err
		}
		switch out {
		case OutcomeInserted:
			r.summary.InsertedCount++
			r.written = true
		case OutcomeSkipped:
			r.summary.SkippedCount++
		}

		done := i + 1
		if done%r.p.opts.ProgressEvery == 0 || done == n {
			if err := r.report(ctx, model.StageBulkInsertProgress, intPtr(done*100/n), fmt.Sprintf("Processed %d of %d rows", done, n)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *run) report(ctx context.Context, stage model.Stage, pct *int, msg string) error {
	if r.p.reporter == nil || r.req.ConnectionID == "" {
		return nil
	}
	return r.p.reporter.Report(ctx, r.req.ConnectionID, model.ProgressEvent{Stage: stage, Percent: pct, Message: msg})
}

// percent estimates validation progress, nil when the row count is unknown.
func (r *run) percent(seen int) *int {
	if r.total < 0 {
		return nil
	}
	if r.total == 0 {
		return intPtr(100)
	}
	return intPtr(min(seen*100/r.total, 100))
}

func intPtr(v int) *int { return &v }
