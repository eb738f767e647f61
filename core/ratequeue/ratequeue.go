// Copyright 2024 - 2026, the LinguaFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package ratequeue serializes operations to a configured requests-per-second
ceiling.

Operations are dispatched in strict FIFO submission order, spaced at least
1/rps apart measured dispatch-to-dispatch on the wall clock; how long an
operation itself runs does not influence the spacing. The rate can be adjusted
at runtime and takes effect for subsequent dispatches only.
*/
package ratequeue

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrQueueCleared is returned to waiters whose operation was discarded by
// [Queue.Clear] before it could be dispatched.
var ErrQueueCleared = errors.New("rate queue cleared before dispatch")

// pollTick is how often the pump re-checks the clock while the spacing
// interval has not yet elapsed.
const pollTick = 25 * time.Millisecond

// DefaultRPS is used when a non-positive rate is configured.
const DefaultRPS = 1.0

// Queue releases at most one operation per configured interval.
// Construct with [New]; the zero value is not ready for use.
type Queue struct {
	mu           sync.Mutex
	waiters      []*waiter
	interval     time.Duration
	lastDispatch time.Time
	pumping      bool
}

type waiter struct {
	gate chan error
}

// New creates a queue releasing at most rps operations per second.
func New(rps float64) *Queue {
	q := &Queue{}
	q.setRPS(rps)

	return q
}

// Do enqueues op and blocks until the queue dispatches it, then runs it on the
// calling goroutine and returns its error.
//
// If the queue is cleared before dispatch, Do returns [ErrQueueCleared] and op
// never runs. If ctx is done first, Do returns ctx.Err() and the pending slot
// is abandoned.
func (q *Queue) Do(ctx context.Context, op func(context.Context) error) error {
	w := &waiter{gate: make(chan error, 1)}

	q.mu.Lock()
	q.waiters = append(q.waiters, w)

	if !q.pumping {
		q.pumping = true

		go q.pump()
	}
	q.mu.Unlock()

	select {
	case err := <-w.gate:
		if err != nil {
			return err
		}

		return op(ctx)

	case <-ctx.Done():
		q.drop(w)

		return ctx.Err()
	}
}

// UpdateRPS changes the dispatch rate for all subsequent dispatches without
// disturbing an already-running operation.
func (q *Queue) UpdateRPS(rps float64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.setRPSLocked(rps)
}

// Clear discards every not-yet-dispatched operation; their Do calls fail with
// [ErrQueueCleared]. An operation already dispatched is unaffected. The pump
// halts once the backlog is gone.
func (q *Queue) Clear() {
	q.mu.Lock()
	cleared := q.waiters
	q.waiters = nil
	q.mu.Unlock()

	for _, w := range cleared {
		w.gate <- ErrQueueCleared
	}
}

// Len reports the number of operations still waiting for dispatch.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.waiters)
}

func (q *Queue) setRPS(rps float64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.setRPSLocked(rps)
}

func (q *Queue) setRPSLocked(rps float64) {
	if rps <= 0 {
		rps = DefaultRPS
	}

	q.interval = time.Duration(float64(time.Second) / rps)
}

// pump releases waiters one at a time, spaced by the configured interval.
// It exits when the backlog is empty and restarts on the next Do.
func (q *Queue) pump() {
	for {
		q.mu.Lock()

		if len(q.waiters) == 0 {
			q.pumping = false
			q.mu.Unlock()

			return
		}

		remaining := q.interval - time.Since(q.lastDispatch)
		if remaining <= 0 {
			w := q.waiters[0]
			q.waiters = q.waiters[1:]
			q.lastDispatch = time.Now()
			q.mu.Unlock()

			w.gate <- nil

			continue
		}
		q.mu.Unlock()

		time.Sleep(min(remaining, pollTick))
	}
}

// drop removes w from the backlog if it has not been dispatched yet.
func (q *Queue) drop(target *waiter) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, w := range q.waiters {
		if w == target {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)

			return
		}
	}
}
