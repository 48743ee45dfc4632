package engine

import (
	"context"

	"golang.org/x/time/rate"
)

// Pacer limits how fast tasks start. The zero/nil Pacer never waits.
type Pacer struct {
	lim *rate.Limiter
}

func NewPacer(cfg Config) *Pacer {
	cfg = cfg.withDefaults()
	if cfg.RatePerSec <= 0 {
		return &Pacer{}
	}
	return &Pacer{lim: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst)}
}

// Wait blocks until the next task may start or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.lim == nil {
		return ctx.Err()
	}
	return p.lim.Wait(ctx)
}
