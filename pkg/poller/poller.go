// Package poller implements the fixed-interval, bounded-attempt poll loop shared by
// the signer and the transaction monitor.
//
// Each attempt first waits one interval and then runs the step function. A step
// error is treated as transient and retried unless it is wrapped with Permanent.
// Transient errors consume attempts like any other iteration, so MaxAttempts is
// also the ceiling on how many failures are tolerated.
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/Layr-Labs/eigenx-custody-signer/pkg/config"
	"go.uber.org/zap"
)

// ErrExhausted is returned when every attempt ran without the step reporting done.
var ErrExhausted = errors.New("poll budget exhausted")

// StepFunc performs one poll. It returns true once the polled resource is terminal.
type StepFunc func(ctx context.Context, attempt int) (bool, error)

// Observer receives per-attempt notifications, typically for metrics.
type Observer interface {
	ObservePollAttempt(loop string)
	ObserveTransientError(loop string)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as fatal to the poll loop. Run returns the unwrapped err.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Result summarizes a finished poll loop.
type Result struct {
	Attempts        int
	TransientErrors int
	LastError       error
}

type Poller struct {
	name     string
	cfg      config.PollConfig
	logger   *zap.Logger
	observer Observer
}

// NewPoller creates a poller. name labels log lines and metrics; observer may be nil.
func NewPoller(name string, cfg config.PollConfig, logger *zap.Logger, observer Observer) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		name:     name,
		cfg:      cfg,
		logger:   logger,
		observer: observer,
	}
}

func (p *Poller) Config() config.PollConfig {
	return p.cfg
}

// Run polls until step reports done, step returns a Permanent error, the attempt
// budget runs out (ErrExhausted) or ctx ends (ctx.Err()).
func (p *Poller) Run(ctx context.Context, step StepFunc) (*Result, error) {
	res := &Result{}
	timer := time.NewTimer(p.cfg.Interval)
	defer timer.Stop()

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			timer.Reset(p.cfg.Interval)
		}
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-timer.C:
		}

		res.Attempts = attempt
		if p.observer != nil {
			p.observer.ObservePollAttempt(p.name)
		}

		done, err := step(ctx, attempt)
		if err != nil {
			var perm *permanentError
			if errors.As(err, &perm) {
				return res, perm.err
			}
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.TransientErrors++
			res.LastError = err
			if p.observer != nil {
				p.observer.ObserveTransientError(p.name)
			}
			p.logger.Sugar().Warnw("Poll attempt failed, will retry",
				"loop", p.name,
				"attempt", attempt,
				"max_attempts", p.cfg.MaxAttempts,
				"error", err,
			)
			continue
		}
		if done {
			return res, nil
		}
	}
	return res, ErrExhausted
}
