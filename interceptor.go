package restkit

import (
	"context"
	"sync"
)

// RequestInterceptor transforms a request before dispatch. It may mutate
// and return req, or return a replacement.
type RequestInterceptor func(ctx context.Context, req *Request) (*Request, error)

// ResponseInterceptor transforms a settled response. It must return a new
// envelope rather than mutating the input.
type ResponseInterceptor func(ctx context.Context, resp *Response) (*Response, error)

// ErrorInterceptor transforms a failure. The chain transforms but never
// absorbs: whatever the last interceptor returns is what the caller gets.
type ErrorInterceptor func(ctx context.Context, err error) error

type requestEntry struct {
	id uint64
	fn RequestInterceptor
}

type responseEntry struct {
	id uint64
	fn ResponseInterceptor
}

type errorEntry struct {
	id uint64
	fn ErrorInterceptor
}

// Interceptors holds the three ordered chains. Registration order is
// execution order; there is no priority mechanism. Safe for concurrent use.
type Interceptors struct {
	mu       sync.Mutex
	nextID   uint64
	request  []requestEntry
	response []responseEntry
	errors   []errorEntry
}

// NewInterceptors returns empty chains.
func NewInterceptors() *Interceptors {
	return &Interceptors{}
}

// UseRequest appends fn to the request chain and returns a handle that
// removes exactly this registration.
func (i *Interceptors) UseRequest(fn RequestInterceptor) (remove func()) {
	i.mu.Lock()
	i.nextID++
	id := i.nextID
	i.request = append(i.request, requestEntry{id: id, fn: fn})
	i.mu.Unlock()

	return func() {
		i.mu.Lock()
		defer i.mu.Unlock()
		for idx, e := range i.request {
			if e.id == id {
				i.request = append(i.request[:idx], i.request[idx+1:]...)
				return
			}
		}
	}
}

// UseResponse appends fn to the response chain.
func (i *Interceptors) UseResponse(fn ResponseInterceptor) (remove func()) {
	i.mu.Lock()
	i.nextID++
	id := i.nextID
	i.response = append(i.response, responseEntry{id: id, fn: fn})
	i.mu.Unlock()

	return func() {
		i.mu.Lock()
		defer i.mu.Unlock()
		for idx, e := range i.response {
			if e.id == id {
				i.response = append(i.response[:idx], i.response[idx+1:]...)
				return
			}
		}
	}
}

// UseError appends fn to the error chain.
func (i *Interceptors) UseError(fn ErrorInterceptor) (remove func()) {
	i.mu.Lock()
	i.nextID++
	id := i.nextID
	i.errors = append(i.errors, errorEntry{id: id, fn: fn})
	i.mu.Unlock()

	return func() {
		i.mu.Lock()
		defer i.mu.Unlock()
		for idx, e := range i.errors {
			if e.id == id {
				i.errors = append(i.errors[:idx], i.errors[idx+1:]...)
				return
			}
		}
	}
}

// applyRequest runs the request chain in registration order, each step
// fully settled before the next starts.
func (i *Interceptors) applyRequest(ctx context.Context, req *Request) (*Request, error) {
	i.mu.Lock()
	chain := make([]requestEntry, len(i.request))
	copy(chain, i.request)
	i.mu.Unlock()

	var err error
	for _, e := range chain {
		req, err = e.fn(ctx, req)
		if err != nil {
			return nil, err
		}
	}
	return req, nil
}

func (i *Interceptors) applyResponse(ctx context.Context, resp *Response) (*Response, error) {
	i.mu.Lock()
	chain := make([]responseEntry, len(i.response))
	copy(chain, i.response)
	i.mu.Unlock()

	var err error
	for _, e := range chain {
		resp, err = e.fn(ctx, resp)
		if err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// applyError runs the error chain; the transformed error is always
// returned, never swallowed.
func (i *Interceptors) applyError(ctx context.Context, err error) error {
	i.mu.Lock()
	chain := make([]errorEntry, len(i.errors))
	copy(chain, i.errors)
	i.mu.Unlock()

	for _, e := range chain {
		if next := e.fn(ctx, err); next != nil {
			err = next
		}
	}
	return err
}

// clone copies the chains for a derived client; later registrations on
// either client stay independent.
func (i *Interceptors) clone() *Interceptors {
	i.mu.Lock()
	defer i.mu.Unlock()

	out := &Interceptors{nextID: i.nextID}
	out.request = append([]requestEntry(nil), i.request...)
	out.response = append([]responseEntry(nil), i.response...)
	out.errors = append([]errorEntry(nil), i.errors...)
	return out
}
