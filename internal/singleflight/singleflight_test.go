package singleflight

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDo(t *testing.T) {
	g := New()
	v, err := g.Do("key", func() (interface{}, error) {
		return "value", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.(string) != "value" {
		t.Errorf("got %v", v)
	}
}

func TestDoError(t *testing.T) {
	g := New()
	want := errors.New("failed")
	_, err := g.Do("key", func() (interface{}, error) {
		return nil, want
	})
	if !errors.Is(err, want) {
		t.Errorf("got %v", err)
	}
}

func TestDoDeduplicates(t *testing.T) {
	g := New()
	var executions int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := g.Do("key", func() (interface{}, error) {
				atomic.AddInt32(&executions, 1)
				<-release
				return "shared", nil
			})
			if err != nil || v.(string) != "shared" {
				t.Errorf("got %v, %v", v, err)
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&executions); n != 1 {
		t.Errorf("expected 1 execution, got %d", n)
	}
}

func TestDoFreshAfterSettle(t *testing.T) {
	g := New()
	var executions int32
	for i := 0; i < 3; i++ {
		g.Do("key", func() (interface{}, error) {
			atomic.AddInt32(&executions, 1)
			return nil, nil
		})
	}
	if n := atomic.LoadInt32(&executions); n != 3 {
		t.Errorf("sequential calls should each execute, got %d", n)
	}
}

func TestForget(t *testing.T) {
	g := New()
	started := make(chan struct{})
	release := make(chan struct{})
	var executions int32

	go g.Do("key", func() (interface{}, error) {
		atomic.AddInt32(&executions, 1)
		close(started)
		<-release
		return nil, nil
	})
	<-started

	g.Forget("key")

	done := make(chan struct{})
	go func() {
		g.Do("key", func() (interface{}, error) {
			atomic.AddInt32(&executions, 1)
			return nil, nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forgotten key should execute immediately")
	}
	close(release)

	if n := atomic.LoadInt32(&executions); n != 2 {
		t.Errorf("expected 2 executions, got %d", n)
	}
}
