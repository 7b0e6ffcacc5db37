package restkit

import (
	"context"
	"sync"
)

// pendingCall is one shared in-flight dispatch. All callers with the same
// fingerprint wait on the same call and observe the same settled outcome.
//
// The dispatch runs on a context detached from any single caller: one
// waiter cancelling only drops that waiter, and the underlying dispatch is
// aborted only when every waiter has gone. This deliberately decouples
// caller-visible cancellation from the shared transport call.
type pendingCall struct {
	done chan struct{}
	resp *Response
	err  error

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	waiters int
}

// Context returns the detached context the owning dispatch must run on.
func (p *pendingCall) Context() context.Context {
	return p.ctx
}

// Wait blocks until the call settles or ctx is done. A cancelled waiter
// gets ctx.Err() back; the shared dispatch keeps running for the rest.
func (p *pendingCall) Wait(ctx context.Context) (*Response, error) {
	select {
	case <-p.done:
		return p.resp, p.err
	case <-ctx.Done():
		p.dropWaiter()
		return nil, ctx.Err()
	}
}

func (p *pendingCall) addWaiter() {
	p.mu.Lock()
	p.waiters++
	p.mu.Unlock()
}

func (p *pendingCall) dropWaiter() {
	p.mu.Lock()
	p.waiters--
	last := p.waiters <= 0
	p.mu.Unlock()
	if last {
		p.cancel()
	}
}

// PendingTable maps request fingerprints to their in-flight dispatch. At
// most one physical dispatch per fingerprint is outstanding at a time;
// entries are removed unconditionally when the dispatch settles so later
// calls always dispatch fresh.
type PendingTable struct {
	mu    sync.Mutex
	calls map[string]*pendingCall
}

// NewPendingTable returns an empty pending-request table.
func NewPendingTable() *PendingTable {
	return &PendingTable{calls: make(map[string]*pendingCall)}
}

// GetOrCreate returns the call for key, creating it when absent. The second
// result is true for the caller that must perform the dispatch (the owner).
// callerCtx seeds the detached dispatch context with its values only.
func (t *PendingTable) GetOrCreate(callerCtx context.Context, key string) (*pendingCall, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if call, ok := t.calls[key]; ok {
		call.addWaiter()
		return call, false
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(callerCtx))
	call := &pendingCall{
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
		waiters: 1,
	}
	t.calls[key] = call
	return call, true
}

// Complete settles the call, releases all waiters and removes the entry.
// Runs on every outcome so no caller can wait forever after one settlement.
func (t *PendingTable) Complete(key string, resp *Response, err error) {
	t.mu.Lock()
	call, ok := t.calls[key]
	if ok {
		delete(t.calls, key)
	}
	t.mu.Unlock()

	if !ok {
		return
	}
	call.resp = resp
	call.err = err
	close(call.done)
	call.cancel()
}

// Len reports the number of in-flight fingerprints.
func (t *PendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}
