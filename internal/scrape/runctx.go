package scrape

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sells-group/brand-seo/internal/model"
)

// StopProbe reports whether an external stop has been requested for a run.
type StopProbe func(ctx context.Context, runID string) (bool, error)

// ResultSink receives per-product progress as a run advances.
type ResultSink interface {
	OnRecord(ctx context.Context, runID string, rec model.ProductRecord)
	OnFailure(ctx context.Context, runID string, url string, reason error)
}

// RunContext carries the identity and cancellation state of one scrape run.
// The stop signal is checked between products; a product already being
// extracted is allowed to finish.
type RunContext struct {
	ID    string
	Brand string

	stopped atomic.Bool
	probe   StopProbe
	sink    ResultSink
}

// RunOption configures a RunContext.
type RunOption func(*RunContext)

// WithStopProbe polls probe at every per-product boundary.
func WithStopProbe(probe StopProbe) RunOption {
	return func(r *RunContext) { r.probe = probe }
}

// WithSink reports progress to sink.
func WithSink(sink ResultSink) RunOption {
	return func(r *RunContext) { r.sink = sink }
}

// NewRunContext creates a RunContext.
func NewRunContext(id, brandKey string, opts ...RunOption) *RunContext {
	r := &RunContext{ID: id, Brand: brandKey}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Stop requests that the run halt at the next product boundary.
func (r *RunContext) Stop() {
	r.stopped.Store(true)
}

// Stopped reports whether the run should halt. Once true it stays true.
func (r *RunContext) Stopped(ctx context.Context) bool {
	if r.stopped.Load() {
		return true
	}
	if ctx.Err() != nil {
		r.stopped.Store(true)
		return true
	}
	if r.probe != nil {
		stop, err := r.probe(ctx, r.ID)
		if err != nil {
			zap.L().Warn("scrape: stop probe failed", zap.String("run_id", r.ID), zap.Error(err))
			return false
		}
		if stop {
			r.stopped.Store(true)
			return true
		}
	}
	return false
}

func (r *RunContext) record(ctx context.Context, rec model.ProductRecord) {
	if r.sink != nil {
		r.sink.OnRecord(ctx, r.ID, rec)
	}
}

func (r *RunContext) failure(ctx context.Context, url string, reason error) {
	if r.sink != nil {
		r.sink.OnFailure(ctx, r.ID, url, reason)
	}
}
