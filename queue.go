package restkit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// QueueConfig controls a per-host admission queue.
type QueueConfig struct {
	// MaxConcurrent caps the number of requests executing at once.
	MaxConcurrent int
	// RequestsPerSecond paces admissions; zero means unpaced.
	RequestsPerSecond float64
	// MaxQueueSize caps the number of waiting requests. Zero means no
	// waiting room: requests that cannot start immediately are rejected.
	MaxQueueSize int
}

// DefaultQueueConfig returns the standard queue tuning.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		MaxConcurrent:     5,
		RequestsPerSecond: 10,
		MaxQueueSize:      100,
	}
}

// DispatchFunc executes an admitted request.
type DispatchFunc func(ctx context.Context, req *Request) (*Response, error)

// QueueStatus is a point-in-time snapshot of one host queue.
type QueueStatus struct {
	Host          string
	Waiting       int
	InFlight      int
	MaxConcurrent int
}

type queueItem struct {
	ctx      context.Context
	req      *Request
	fn       DispatchFunc
	priority int

	done chan struct{}
	resp *Response
	err  error
}

// RequestQueue admits requests for a single host under a concurrency cap
// and an optional rate pace, draining waiters in priority order (higher
// first, FIFO within a priority).
type RequestQueue struct {
	host    string
	cfg     QueueConfig
	limiter *RateLimiter
	metrics *MetricsCollector
	logger  Logger

	mu       sync.Mutex
	waiting  []*queueItem
	inFlight int
	timerSet bool
}

// NewRequestQueue creates a queue for one host.
func NewRequestQueue(host string, cfg QueueConfig, metrics *MetricsCollector, logger Logger) *RequestQueue {
	q := &RequestQueue{
		host:    host,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
	}
	if cfg.RequestsPerSecond > 0 {
		interval := time.Duration(float64(time.Second) / cfg.RequestsPerSecond)
		if interval <= 0 {
			interval = time.Nanosecond
		}
		q.limiter = NewRateLimiter(1, interval)
	}
	return q
}

// Enqueue submits a request and blocks until it settles or the caller's
// context ends while the request is still waiting for admission. A full
// queue rejects immediately with a queue-full error.
func (q *RequestQueue) Enqueue(ctx context.Context, req *Request, fn DispatchFunc) (*Response, error) {
	item := &queueItem{
		ctx:      ctx,
		req:      req,
		fn:       fn,
		priority: req.Priority,
		done:     make(chan struct{}),
	}

	q.mu.Lock()
	admit := q.inFlight < q.cfg.MaxConcurrent && len(q.waiting) == 0 && q.allowPace()
	if admit {
		q.inFlight++
		q.publishGauges()
		q.mu.Unlock()
		go q.run(item)
	} else {
		if len(q.waiting) >= q.cfg.MaxQueueSize {
			q.publishGauges()
			q.mu.Unlock()
			if q.metrics != nil {
				q.metrics.RecordQueueRejected(q.host, "full")
			}
			if q.logger != nil {
				q.logger.Warn("queue full, rejecting request", "host", q.host, "method", req.Method)
			}
			return nil, &ClientError{
				Type:      ErrorTypeQueueFull,
				Message:   "request queue is full",
				Method:    req.Method,
				Request:   req,
				Timestamp: time.Now(),
			}
		}
		q.waiting = append(q.waiting, item)
		// Stable sort keeps FIFO order within a priority level.
		sort.SliceStable(q.waiting, func(i, j int) bool {
			return q.waiting[i].priority > q.waiting[j].priority
		})
		// Arms the pacing timer when the item queued on an empty token;
		// otherwise a completion drives the next drain.
		q.drainLocked()
		q.mu.Unlock()
	}

	select {
	case <-item.done:
		return item.resp, item.err
	case <-ctx.Done():
	}

	// The context ended first. If the item is still waiting, withdraw it;
	// if it was already admitted the dispatch sees the same context and
	// settles on its own.
	q.mu.Lock()
	for i, waiter := range q.waiting {
		if waiter == item {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			q.publishGauges()
			q.mu.Unlock()
			ce := classifyTransportError(ctx, ctx, ctx.Err())
			ce.Request = req
			ce.Method = req.Method
			return nil, ce
		}
	}
	q.mu.Unlock()

	<-item.done
	return item.resp, item.err
}

func (q *RequestQueue) run(item *queueItem) {
	item.resp, item.err = item.fn(item.ctx, item.req)
	close(item.done)

	q.mu.Lock()
	q.inFlight--
	q.drainLocked()
	q.mu.Unlock()
}

// allowPace consumes a pacing token; unpaced queues always pass.
func (q *RequestQueue) allowPace() bool {
	return q.limiter == nil || q.limiter.Allow()
}

// drainLocked admits waiters while slots and pacing tokens are available.
func (q *RequestQueue) drainLocked() {
	for len(q.waiting) > 0 && q.inFlight < q.cfg.MaxConcurrent {
		if !q.allowPace() {
			q.scheduleDrainLocked()
			break
		}
		item := q.waiting[0]
		q.waiting = q.waiting[1:]
		q.inFlight++
		go q.run(item)
	}
	q.publishGauges()
}

// scheduleDrainLocked arms a single retry timer for when the pacing token
// refills.
func (q *RequestQueue) scheduleDrainLocked() {
	if q.timerSet || q.limiter == nil {
		return
	}
	q.timerSet = true
	time.AfterFunc(q.limiter.RefillInterval(), func() {
		q.mu.Lock()
		q.timerSet = false
		q.drainLocked()
		q.mu.Unlock()
	})
}

// Clear fails every waiting request with a queue-cleared error. In-flight
// requests are unaffected.
func (q *RequestQueue) Clear() int {
	q.mu.Lock()
	cleared := q.waiting
	q.waiting = nil
	q.publishGauges()
	q.mu.Unlock()

	for _, item := range cleared {
		item.err = &ClientError{
			Type:      ErrorTypeQueueCleared,
			Message:   "request queue cleared",
			Method:    item.req.Method,
			Request:   item.req,
			Timestamp: time.Now(),
		}
		close(item.done)
		if q.metrics != nil {
			q.metrics.RecordQueueRejected(q.host, "cleared")
		}
	}
	if len(cleared) > 0 && q.logger != nil {
		q.logger.Info("queue cleared", "host", q.host, "dropped", len(cleared))
	}
	return len(cleared)
}

// Status snapshots the queue.
func (q *RequestQueue) Status() QueueStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStatus{
		Host:          q.host,
		Waiting:       len(q.waiting),
		InFlight:      q.inFlight,
		MaxConcurrent: q.cfg.MaxConcurrent,
	}
}

func (q *RequestQueue) publishGauges() {
	if q.metrics == nil {
		return
	}
	q.metrics.RecordQueueDepth(q.host, len(q.waiting))
	q.metrics.RecordQueueInFlight(q.host, q.inFlight)
}
