// Package fence implements the request/response correlation fabric
// shared by the NFC session engine and the WoT façade: fire an action
// keyed by a fresh id, wait for a matching completion or a timeout.
package fence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Result is the outcome delivered to a waiter when its slot completes.
type Result struct {
	OK    bool
	Value interface{}
	Err   error
}

// Bool reports whether the result represents success. A timed-out or
// erroring result is never OK.
func (r Result) Bool() bool {
	return r.OK && r.Err == nil
}

// Fence correlates a fired action with its eventual completion. Each
// slot is identified by a UUIDv4 and can be completed exactly once;
// later completions for the same id are ignored.
type Fence struct {
	mu    sync.Mutex
	slots map[string]chan Result
}

// New creates an empty Fence.
func New() *Fence {
	return &Fence{slots: make(map[string]chan Result)}
}

// Fire registers a new correlation slot, invokes action exactly once
// with the slot's id, then waits up to timeout for a matching Complete
// call. The slot is always deregistered before Fire returns.
//
// action is called exactly once, unlike the double-invocation in the
// reference implementation this fabric replaces.
func (f *Fence) Fire(ctx context.Context, timeout time.Duration, action func(id string) error) Result {
	id := uuid.NewString()
	ch := make(chan Result, 1)

	f.mu.Lock()
	f.slots[id] = ch
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		delete(f.slots, id)
		f.mu.Unlock()
	}()

	if err := action(id); err != nil {
		return Result{Err: err}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res
	case <-timer.C:
		return Result{Err: ErrTimeout}
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	}
}

// Complete delivers a result to the waiter registered under id, if
// any. Completing an unknown or already-completed id is a no-op.
func (f *Fence) Complete(id string, res Result) {
	f.mu.Lock()
	ch, ok := f.slots[id]
	if ok {
		delete(f.slots, id)
	}
	f.mu.Unlock()

	if !ok {
		return
	}
	select {
	case ch <- res:
	default:
	}
}

// ErrTimeout is returned as the Result.Err when a Fire call's action
// never completes within its timeout.
var ErrTimeout = timeoutError{}

type timeoutError struct{}

func (timeoutError) Error() string { return "fence: timed out waiting for completion" }
