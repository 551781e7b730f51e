// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package poll waits for asynchronous search requests to reach a terminal
// status.
package poll

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/aurorax-go/pkg/types"
)

// Checker reports the current status of one request. Implementations
// must honour ctx, which carries the polling deadline.
type Checker interface {
	RequestID() string
	Check(ctx context.Context) (types.JobStatus, error)
}

// Options controls the polling cadence. Zero values fall back to
// types.PollConfig defaults.
type Options = types.PollConfig

// Wait calls c.Check until it reports a terminal status and returns that
// status. Consecutive checks are at least opts.Interval apart; with
// opts.Backoff > 1 the interval grows geometrically up to opts.MaxInterval.
//
// If opts.Timeout is positive, Wait returns a *types.TimeoutError once the
// wall-clock deadline passes. The deadline also bounds each in-flight
// check, so the total wait never exceeds the timeout. Context cancellation
// stops polling and returns ctx.Err(); the server-side request is left
// running.
//
// Observed statuses are clamped to be monotonic: a check that reports a
// lower status than one already seen is logged and ignored.
func Wait(ctx context.Context, c Checker, opts Options, log *zap.Logger) (types.JobStatus, error) {
	opts = opts.WithDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("request_id", c.RequestID()))

	start := time.Now()
	pollCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	timeout := func(last types.JobStatus) error {
		return &types.TimeoutError{RequestID: c.RequestID(), LastStatus: last, Elapsed: time.Since(start)}
	}

	var current types.JobStatus
	interval := opts.Interval
	for {
		next, err := c.Check(pollCtx)
		if err != nil {
			if ctx.Err() != nil {
				return current, ctx.Err()
			}
			if pollCtx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
				return current, timeout(current)
			}
			return current, err
		}

		advanced, ok := current.Advance(next)
		if !ok && current != "" {
			log.Warn("ignoring status regression",
				zap.String("current", string(current)),
				zap.String("observed", string(next)))
		}
		if advanced != current {
			log.Info("request status", zap.String("status", string(advanced)),
				zap.Duration("elapsed", time.Since(start).Round(time.Millisecond)))
		}
		current = advanced

		if current.Terminal() {
			return current, nil
		}

		log.Debug("checking again", zap.Duration("in", interval))
		timer := time.NewTimer(interval)
		select {
		case <-pollCtx.Done():
			timer.Stop()
			if ctx.Err() != nil {
				return current, ctx.Err()
			}
			return current, timeout(current)
		case <-timer.C:
		}

		interval = nextInterval(interval, opts)
	}
}

// nextInterval applies the backoff factor, never dropping below the base
// interval nor exceeding the cap.
func nextInterval(cur time.Duration, opts Options) time.Duration {
	if opts.Backoff <= 1 {
		return cur
	}
	next := time.Duration(float64(cur) * opts.Backoff)
	if next > opts.MaxInterval {
		next = opts.MaxInterval
	}
	if next < opts.Interval {
		next = opts.Interval
	}
	return next
}
