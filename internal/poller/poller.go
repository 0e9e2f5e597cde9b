// Package poller drives a status fetch function until a job reaches a
// terminal state or a wall-clock budget runs out.
package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/motionforge/api/internal/model"
)

// Defaults match the web client: poll every 3 seconds for up to 5 minutes.
const (
	DefaultInterval = 3 * time.Second
	DefaultTimeout  = 5 * time.Minute
)

// FetchFunc returns the current status of one job
type FetchFunc func(ctx context.Context) (*model.NormalizedStatus, error)

// UpdateFunc observes every successfully fetched status
type UpdateFunc func(attempt int, status *model.NormalizedStatus)

// TimeoutError means the budget ran out before a terminal status was seen.
// It is not a provider failure: the job may still complete.
type TimeoutError struct {
	After    time.Duration
	Attempts int
	Last     *model.NormalizedStatus
}

func (e *TimeoutError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("no terminal status after %s (%d polls, none succeeded)", e.After, e.Attempts)
	}
	return fmt.Sprintf("no terminal status after %s (%d polls, last state %s)", e.After, e.Attempts, e.Last.State)
}

// Poller settings. The zero value uses the defaults.
type Poller struct {
	Interval time.Duration
	Timeout  time.Duration
	// Monotonic keeps reported progress from moving backwards
	Monotonic bool
	// MaxConsecutiveErrors is how many fetch errors in a row are tolerated
	// before Wait gives up with the last one
	MaxConsecutiveErrors int
}

// Wait polls fetch until a terminal status, a timeout, a fetch error beyond
// the tolerated streak, or cancellation of ctx.
func (p Poller) Wait(ctx context.Context, fetch FetchFunc, onUpdate UpdateFunc) (*model.NormalizedStatus, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	budget, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		last      *model.NormalizedStatus
		best      = -1.0
		attempt   int
		errStreak int
	)
	timedOut := func() error {
		return &TimeoutError{After: timeout, Attempts: attempt, Last: last}
	}

	for {
		attempt++
		status, err := fetch(budget)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if budget.Err() != nil {
				return nil, timedOut()
			}
			errStreak++
			if errStreak > p.MaxConsecutiveErrors {
				return nil, err
			}
		} else {
			errStreak = 0
			if p.Monotonic {
				status = smooth(status, &best)
			}
			last = status
			if onUpdate != nil {
				onUpdate(attempt, status)
			}
			if status.State.IsTerminal() {
				return status, nil
			}
		}

		wait := time.NewTimer(interval)
		select {
		case <-budget.Done():
			wait.Stop()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, timedOut()
		case <-wait.C:
		}
	}
}

// smooth returns status with progress raised to the best value seen so far
func smooth(status *model.NormalizedStatus, best *float64) *model.NormalizedStatus {
	if status.Progress == nil {
		return status
	}
	if *status.Progress >= *best {
		*best = *status.Progress
		return status
	}
	out := *status
	p := *best
	out.Progress = &p
	return &out
}
