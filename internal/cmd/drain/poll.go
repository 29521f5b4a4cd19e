package drainrun

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	cfgpkg "github.com/rzbill/detailq/internal/config"
)

func newBackOff(cfg cfgpkg.Config) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(cfg.PollMinMs) * time.Millisecond
	b.MaxInterval = time.Duration(cfg.PollMaxMs) * time.Millisecond
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// poll spaces out reads that made no progress. Sleeps end early when ctx is
// cancelled.
type poll struct {
	ctx context.Context
	b   backoff.BackOffContext
}

func newPoll(cfg cfgpkg.Config, ctx context.Context) *poll {
	return &poll{ctx: ctx, b: backoff.WithContext(newBackOff(cfg), ctx)}
}

func (p *poll) reset() { p.b.Reset() }

func (p *poll) sleep() {
	next := p.b.NextBackOff()
	if next == backoff.Stop {
		return
	}
	t := time.NewTimer(next)
	defer t.Stop()
	select {
	case <-t.C:
	case <-p.ctx.Done():
	}
}
