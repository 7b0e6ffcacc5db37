package restkit

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestInterceptorsRequestOrder(t *testing.T) {
	chain := NewInterceptors()
	var order []string
	chain.UseRequest(func(ctx context.Context, req *Request) (*Request, error) {
		order = append(order, "first")
		req.Headers.Set("X-Step", "one")
		return req, nil
	})
	chain.UseRequest(func(ctx context.Context, req *Request) (*Request, error) {
		order = append(order, "second")
		if req.Headers.Get("X-Step") != "one" {
			t.Error("second interceptor should see the first's changes")
		}
		return req, nil
	})

	req := NewRequest(http.MethodGet, "/x")
	if _, err := chain.applyRequest(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("wrong order: %v", order)
	}
}

func TestInterceptorsRequestErrorAborts(t *testing.T) {
	chain := NewInterceptors()
	abort := errors.New("rejected")
	var reached bool
	chain.UseRequest(func(ctx context.Context, req *Request) (*Request, error) {
		return nil, abort
	})
	chain.UseRequest(func(ctx context.Context, req *Request) (*Request, error) {
		reached = true
		return req, nil
	})

	_, err := chain.applyRequest(context.Background(), NewRequest(http.MethodGet, "/x"))
	if !errors.Is(err, abort) {
		t.Errorf("expected abort error, got %v", err)
	}
	if reached {
		t.Error("later interceptors must not run after a failure")
	}
}

func TestInterceptorsRemove(t *testing.T) {
	chain := NewInterceptors()
	var ran bool
	remove := chain.UseRequest(func(ctx context.Context, req *Request) (*Request, error) {
		ran = true
		return req, nil
	})
	remove()
	remove() // idempotent

	if _, err := chain.applyRequest(context.Background(), NewRequest(http.MethodGet, "/x")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ran {
		t.Error("removed interceptor should not run")
	}
}

func TestInterceptorsResponseTransform(t *testing.T) {
	chain := NewInterceptors()
	chain.UseResponse(func(ctx context.Context, resp *Response) (*Response, error) {
		out := *resp
		out.Body = append(resp.Body, '!')
		return &out, nil
	})

	resp, err := chain.applyResponse(context.Background(), &Response{Status: 200, Body: []byte("ok")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.String() != "ok!" {
		t.Errorf("transform lost: %q", resp.String())
	}
}

func TestInterceptorsErrorNeverSwallowed(t *testing.T) {
	chain := NewInterceptors()
	chain.UseError(func(ctx context.Context, err error) error {
		return nil // a nil return must not clear the failure
	})

	original := errors.New("still failing")
	err := chain.applyError(context.Background(), original)
	if !errors.Is(err, original) {
		t.Errorf("error interceptors must not swallow failures, got %v", err)
	}
}

func TestInterceptorsErrorTransform(t *testing.T) {
	chain := NewInterceptors()
	wrapped := errors.New("wrapped")
	chain.UseError(func(ctx context.Context, err error) error {
		return wrapped
	})

	if err := chain.applyError(context.Background(), errors.New("original")); !errors.Is(err, wrapped) {
		t.Errorf("expected transformed error, got %v", err)
	}
}

func TestInterceptorsCloneIsolation(t *testing.T) {
	parent := NewInterceptors()
	var parentRuns int
	parent.UseRequest(func(ctx context.Context, req *Request) (*Request, error) {
		parentRuns++
		return req, nil
	})

	child := parent.clone()
	var childRuns int
	child.UseRequest(func(ctx context.Context, req *Request) (*Request, error) {
		childRuns++
		return req, nil
	})

	req := NewRequest(http.MethodGet, "/x")
	parent.applyRequest(context.Background(), req)
	if parentRuns != 1 || childRuns != 0 {
		t.Errorf("parent chain leaked: parent=%d child=%d", parentRuns, childRuns)
	}

	child.applyRequest(context.Background(), req)
	if parentRuns != 2 || childRuns != 1 {
		t.Errorf("clone should inherit parent interceptors: parent=%d child=%d", parentRuns, childRuns)
	}
}
