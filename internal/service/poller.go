package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// poller drives the automatic status cadence for one active instruction.
// It fires on a fixed interval; a tick that finds a check still in flight
// is dropped, never queued. Stop is deterministic: after Stop returns the
// poller will not fire again, including any already-scheduled tick.
//
// Manual "verify now" checks do not go through the poller at all; they
// always execute, in-flight automatic check or not.
type poller struct {
	interval time.Duration
	check    func(ctx context.Context) (stop bool)
	logger   zerolog.Logger

	inFlight   atomic.Bool
	cancel     context.CancelFunc
	done       chan struct{}
	cancelOnce sync.Once
}

func newPoller(interval time.Duration, check func(ctx context.Context) bool, logger zerolog.Logger) *poller {
	return &poller{
		interval: interval,
		check:    check,
		logger:   logger.With().Str("component", "status-poller").Logger(),
	}
}

// start launches the polling loop.
func (p *poller) start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.run(ctx)
}

func (p *poller) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Re-check cancellation so a tick that raced Stop never fires.
			select {
			case <-ctx.Done():
				return
			default:
			}

			if !p.inFlight.CompareAndSwap(false, true) {
				p.logger.Debug().Msg("tick dropped, check already in flight")
				continue
			}
			stop := p.check(ctx)
			p.inFlight.Store(false)
			if stop {
				return
			}
		}
	}
}

// halt signals the loop to exit without waiting for it. Unlike stop it is
// safe to call from inside the check callback itself.
func (p *poller) halt() {
	p.cancelOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
	})
}

// stop cancels the loop and waits for it to exit. Safe to call more than
// once and on a poller that already stopped itself.
func (p *poller) stop() {
	p.halt()
	if p.done != nil {
		<-p.done
	}
}
