package batch

import (
	"context"

	"golang.org/x/time/rate"
)

// Throttle spaces single-row writes so a run cannot saturate the shared store.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle allows perSecond writes per second. Zero or less disables
// throttling.
func NewThrottle(perSecond float64) *Throttle {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Throttle{limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the next write may proceed or ctx is done. A nil Throttle
// never blocks.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil {
		return ctx.Err()
	}
	return t.limiter.Wait(ctx)
}
