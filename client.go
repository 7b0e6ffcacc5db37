package restkit

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is the request orchestration engine. Around a primitive Transport
// it layers caching, deduplication, retries with backoff, auth refresh,
// CSRF attachment, interceptors, rate limiting, circuit breaking and
// optional per-host admission queues. It is safe for concurrent use; derive
// variants with With.
type Client struct {
	transport Transport
	baseURL   string
	headers   http.Header
	timeout   time.Duration

	maxRetries    int
	retryDelay    time.Duration
	maxRetryDelay time.Duration
	jitter        float64
	retryPolicy   RetryPolicy

	cacheEnabled  bool
	cache         Cache
	cacheTTL      time.Duration
	cacheCapacity int
	fingerprint   FingerprintFunc

	dedupEnabled bool
	pending      *PendingTable

	interceptors *Interceptors
	authCfg      AuthConfig
	auth         *authCoordinator
	csrf         CSRFGuard

	rateLimiter    *RateLimiter
	circuitBreaker *CircuitBreaker
	queueCfg       *QueueConfig
	pool           *ConnectionPool

	metrics *MetricsCollector
	debug   *DebugConfig
	logger  Logger

	validationError error
}

// New constructs a Client using the provided functional options. A best
// effort validation is performed; call IsValid / ValidationError for errors.
func New(options ...Option) *Client {
	client := &Client{
		transport:     NewHTTPTransport(nil),
		headers:       make(http.Header),
		timeout:       30 * time.Second,
		maxRetries:    3,
		retryDelay:    1 * time.Second,
		maxRetryDelay: 30 * time.Second,
		cacheEnabled:  true,
		cacheTTL:      5 * time.Minute,
		cacheCapacity: DefaultCacheSize,
		fingerprint:   Fingerprint,
		dedupEnabled:  true,
		pending:       NewPendingTable(),
		interceptors:  NewInterceptors(),
		debug:         DefaultDebugConfig(),
	}

	for _, option := range options {
		option(client)
	}

	if client.cacheEnabled && client.cache == nil {
		client.cache = NewMemoryCache(client.cacheCapacity)
	}
	client.auth = newAuthCoordinator(client.authCfg, client.logger, client.metrics)
	if client.queueCfg != nil {
		client.pool = NewConnectionPool(*client.queueCfg, client.metrics, client.logger)
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

// With derives a client with overridden configuration. Interceptor chains
// and auth config carry over; the cache, pending table and queues are fresh
// and fully independent of the parent's.
func (c *Client) With(options ...Option) *Client {
	derived := &Client{}
	*derived = *c

	derived.headers = c.headers.Clone()
	if derived.headers == nil {
		derived.headers = make(http.Header)
	}
	derived.interceptors = c.interceptors.clone()
	derived.pending = NewPendingTable()
	derived.cache = nil // reallocated below unless an option supplies one

	for _, option := range options {
		option(derived)
	}

	if derived.cacheEnabled && derived.cache == nil {
		// External caches (e.g. Redis) are shared state by nature; only the
		// in-memory store is re-allocated per instance.
		if _, isMemory := c.cache.(*MemoryCache); !isMemory && c.cache != nil {
			derived.cache = c.cache
		} else {
			derived.cache = NewMemoryCache(derived.cacheCapacity)
		}
	}
	derived.auth = newAuthCoordinator(derived.authCfg, derived.logger, derived.metrics)
	if derived.queueCfg != nil {
		derived.pool = NewConnectionPool(*derived.queueCfg, derived.metrics, derived.logger)
	} else {
		derived.pool = nil
	}

	derived.validationError = nil
	if err := derived.ValidateConfiguration(); err != nil {
		derived.validationError = err
	}
	return derived
}

// Get performs a GET request with optional query parameters.
func (c *Client) Get(ctx context.Context, url string, params map[string]any) (*Response, error) {
	req := NewRequest(http.MethodGet, url)
	req.Params = params
	return c.Do(ctx, req)
}

// Head performs a HEAD request.
func (c *Client) Head(ctx context.Context, url string) (*Response, error) {
	return c.Do(ctx, NewRequest(http.MethodHead, url))
}

// Options performs an OPTIONS request.
func (c *Client) Options(ctx context.Context, url string) (*Response, error) {
	return c.Do(ctx, NewRequest(http.MethodOptions, url))
}

// Post performs a POST request. See SerializeBody for accepted body types.
func (c *Client) Post(ctx context.Context, url string, body any) (*Response, error) {
	req := NewRequest(http.MethodPost, url)
	req.Body = body
	return c.Do(ctx, req)
}

// Put performs a PUT request.
func (c *Client) Put(ctx context.Context, url string, body any) (*Response, error) {
	req := NewRequest(http.MethodPut, url)
	req.Body = body
	return c.Do(ctx, req)
}

// Patch performs a PATCH request.
func (c *Client) Patch(ctx context.Context, url string, body any) (*Response, error) {
	req := NewRequest(http.MethodPatch, url)
	req.Body = body
	return c.Do(ctx, req)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, url string) (*Response, error) {
	return c.Do(ctx, NewRequest(http.MethodDelete, url))
}

// Do executes a logical request through the full pipeline: request
// interceptors, cache check, deduplication, dispatch with retries, then
// response/error interceptors. Callers always receive either a Response or
// a *ClientError (interceptor and collaborator errors excepted).
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if c.validationError != nil {
		return nil, c.validationError
	}
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	var requestID string
	if c.debug != nil && c.debug.Enabled && c.debug.RequestIDGen != nil {
		requestID = c.debug.RequestIDGen()
	}

	r := req.Clone()
	if r.Method == "" {
		r.Method = http.MethodGet
	}

	// Request interceptors run before the cache check: the fingerprint
	// depends on the interceptor-modified URL and config.
	r, err := c.interceptors.applyRequest(ctx, r)
	if err != nil {
		return nil, err
	}

	resolved := BuildURL(c.resolveURL(r.URL), r.Params)
	endpoint := endpointFromURL(resolved)

	if c.debug != nil && c.debug.Enabled && c.debug.LogRequests && c.logger != nil {
		c.logger.Debug("starting request", "requestID", requestID, "method", r.Method, "url", resolved, "endpoint", endpoint)
	}
	if c.metrics != nil {
		c.metrics.RecordRequestStart(r.Method, endpoint)
		defer c.metrics.RecordRequestEnd(r.Method, endpoint)
	}

	key := r.CacheKey
	if key == "" {
		key = c.fingerprint(r, resolved)
	}

	cacheable := c.cacheEnabled && c.cache != nil && !r.SkipCache && r.Method == http.MethodGet

	if cacheable {
		if entry, ok := c.cache.Get(key); ok {
			if c.debug != nil && c.debug.Enabled && c.debug.LogCache && c.logger != nil {
				c.logger.Debug("cache hit", "requestID", requestID, "cacheKey", key)
			}
			if c.metrics != nil {
				c.metrics.RecordCacheHit(r.Method, endpoint)
				c.metrics.RecordRequest(r.Method, endpoint, entry.StatusCode, time.Since(start))
			}
			return c.interceptors.applyResponse(ctx, responseFromCache(entry, r))
		}
		if c.metrics != nil {
			c.metrics.RecordCacheMiss(r.Method, endpoint)
		}
		if c.debug != nil && c.debug.Enabled && c.debug.LogCache && c.logger != nil {
			c.logger.Debug("cache miss", "requestID", requestID, "cacheKey", key)
		}
	}

	if c.dedupEnabled && c.pending != nil && !r.SkipDedup {
		call, owner := c.pending.GetOrCreate(ctx, key)
		if !owner {
			if c.metrics != nil {
				c.metrics.RecordDeduplicationHit(r.Method, endpoint)
			}
			if c.debug != nil && c.debug.Enabled && c.debug.LogDedup && c.logger != nil {
				c.logger.Debug("deduplication hit", "requestID", requestID, "key", key)
			}
			return c.awaitShared(ctx, call, r, resolved, requestID)
		}
		// The owner performs the shared dispatch on the detached context so
		// that one caller cancelling does not kill it for the rest; the
		// result (after interceptors) is what every waiter observes.
		go func() {
			resp, err := c.perform(call.Context(), r, resolved, endpoint, requestID, key, cacheable, start)
			c.pending.Complete(key, resp, err)
		}()
		return c.awaitShared(ctx, call, r, resolved, requestID)
	}

	return c.perform(ctx, r, resolved, endpoint, requestID, key, cacheable, start)
}

// awaitShared waits on a shared in-flight call and classifies a caller-side
// context end the same way a private dispatch would.
func (c *Client) awaitShared(ctx context.Context, call *pendingCall, r *Request, resolved, requestID string) (*Response, error) {
	resp, err := call.Wait(ctx)
	if err == nil {
		return resp, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		var ce *ClientError
		if !errors.As(err, &ce) {
			ce = classifyTransportError(ctx, ctx, err)
			ce.Request = r
			ce.RequestID = requestID
			ce.Method = r.Method
			ce.URL = resolved
			return nil, ce
		}
	}
	return nil, err
}

// perform routes the dispatch through the admission queue when configured,
// stores cacheable successes and applies the settle-phase interceptors.
func (c *Client) perform(ctx context.Context, r *Request, resolved, endpoint, requestID, key string, cacheable bool, start time.Time) (*Response, error) {
	var resp *Response
	var err error

	if c.pool != nil {
		host := hostFromURL(resolved)
		if c.debug != nil && c.debug.Enabled && c.debug.LogQueue && c.logger != nil {
			c.logger.Debug("queueing request", "requestID", requestID, "host", host, "priority", r.Priority)
		}
		resp, err = c.pool.Queue(host).Enqueue(ctx, r, func(qctx context.Context, qr *Request) (*Response, error) {
			return c.dispatch(qctx, qr, resolved, endpoint, requestID, start)
		})
	} else {
		resp, err = c.dispatch(ctx, r, resolved, endpoint, requestID, start)
	}

	if err == nil && cacheable {
		ttl := c.cacheTTL
		if r.CacheTTL > 0 {
			ttl = r.CacheTTL
		}
		c.cache.Set(key, cacheEntryFromResponse(resp), ttl)
		if mc, ok := c.cache.(*MemoryCache); ok && c.metrics != nil {
			c.metrics.RecordCacheSize("default", mc.Len())
		}
		if c.debug != nil && c.debug.Enabled && c.debug.LogCache && c.logger != nil {
			c.logger.Debug("response cached", "requestID", requestID, "cacheKey", key, "ttl", ttl)
		}
	}

	status := 0
	if resp != nil {
		status = resp.Status
	}
	var ce *ClientError
	if err != nil && errors.As(err, &ce) {
		status = ce.StatusCode
	}
	if c.metrics != nil {
		c.metrics.RecordRequest(r.Method, endpoint, status, time.Since(start))
	}

	if err != nil {
		if ce != nil && c.metrics != nil {
			c.metrics.RecordError(ce.Type, r.Method, endpoint)
		}
		return nil, c.interceptors.applyError(ctx, err)
	}
	return c.interceptors.applyResponse(ctx, resp)
}

// dispatch is the per-call retry state machine: admission checks, one
// transport attempt, classification, an optional one-shot auth retry, then
// the backoff retry decision.
func (c *Client) dispatch(ctx context.Context, r *Request, resolved, endpoint, requestID string, start time.Time) (*Response, error) {
	maxRetries := c.maxRetries
	if r.Retries >= 0 {
		maxRetries = r.Retries
	}
	baseDelay := c.retryDelay
	if r.RetryDelay > 0 {
		baseDelay = r.RetryDelay
	}

	policy := c.retryPolicy
	if policy == nil {
		p := NewDefaultRetryPolicy(maxRetries, baseDelay, c.maxRetryDelay)
		p.Jitter = c.jitter
		policy = p
	}

	attempt := 0
	authRetried := false
	tokenOverride := ""

	for {
		if c.rateLimiter != nil {
			if c.metrics != nil {
				c.metrics.RecordRateLimiterTokens("default", c.rateLimiter.Tokens())
			}
			if !c.rateLimiter.Allow() {
				if c.logger != nil {
					c.logger.Warn("rate limit exceeded", "requestID", requestID, "endpoint", endpoint)
				}
				if c.metrics != nil {
					c.metrics.RecordError(ErrorTypeRateLimit, r.Method, endpoint)
				}
				return nil, c.newError(ErrorTypeRateLimit, "rate limit exceeded", nil, r, resolved, requestID, attempt, maxRetries, start)
			}
		}

		if c.circuitBreaker != nil && !c.circuitBreaker.Allow() {
			if c.logger != nil {
				c.logger.Warn("circuit breaker open", "requestID", requestID, "endpoint", endpoint)
			}
			if c.metrics != nil {
				c.metrics.RecordError(ErrorTypeCircuitOpen, r.Method, endpoint)
			}
			return nil, c.newError(ErrorTypeCircuitOpen, "circuit breaker is open", nil, r, resolved, requestID, attempt, maxRetries, start)
		}

		if attempt > 0 {
			if c.debug != nil && c.debug.Enabled && c.debug.LogRetries && c.logger != nil {
				c.logger.Info("retry attempt", "requestID", requestID, "attempt", attempt, "maxRetries", maxRetries, "endpoint", endpoint)
			}
			if c.metrics != nil {
				c.metrics.RecordRetry(r.Method, endpoint, attempt)
			}
		}

		resp, err := c.dispatchOnce(ctx, r, resolved, tokenOverride)

		if c.circuitBreaker != nil {
			if err == nil {
				c.circuitBreaker.RecordSuccess()
			} else if isCircuitFailure(err) {
				c.circuitBreaker.RecordFailure()
			}
			if c.metrics != nil {
				c.metrics.RecordCircuitBreakerState("default", c.circuitBreaker.State())
			}
		}

		if err == nil {
			return resp, nil
		}

		var ce *ClientError
		if errors.As(err, &ce) {
			ce.Request = r
			ce.RequestID = requestID
			ce.Method = r.Method
			ce.URL = resolved
			ce.Attempt = attempt
			ce.MaxRetries = maxRetries
			ce.Duration = time.Since(start)
		}

		// One-shot refresh-and-retry on 401. Deliberately outside the
		// backoff accounting: a successful refresh re-dispatches without
		// consuming an attempt, and a second 401 propagates.
		if ce != nil && ce.Type == ErrorTypeAuthentication && !r.SkipAuth && !authRetried {
			authRetried = true
			if token, ok := c.auth.handleAuthFailure(ctx); ok {
				tokenOverride = token
				if c.debug != nil && c.debug.Enabled && c.debug.LogAuth && c.logger != nil {
					c.logger.Info("token refreshed, retrying once", "requestID", requestID, "endpoint", endpoint)
				}
				continue
			}
		}

		delay, retry := policy.ShouldRetry(err, attempt)
		if !retry {
			return nil, err
		}

		if c.debug != nil && c.debug.Enabled && c.debug.LogRetries && c.logger != nil {
			c.logger.Info("scheduling retry", "requestID", requestID, "attempt", attempt+1, "backoff", delay, "endpoint", endpoint)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			ce := classifyTransportError(ctx, ctx, ctx.Err())
			ce.Request = r
			ce.RequestID = requestID
			ce.Method = r.Method
			ce.URL = resolved
			return nil, ce
		}
		attempt++
	}
}

// dispatchOnce performs a single transport attempt under the effective
// timeout, with auth and CSRF headers attached and the body serialized.
// Non-2xx statuses come back as classified errors, so "success" means
// transport-level success and an ok status.
func (c *Client) dispatchOnce(parent context.Context, r *Request, resolved, tokenOverride string) (*Response, error) {
	timeout := c.timeout
	if r.Timeout > 0 {
		timeout = r.Timeout
	}
	// The child context also clears the timer on every exit path.
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	headers := MergeHeaders(c.headers, r.Headers)

	if !r.SkipAuth {
		if tokenOverride != "" {
			headers.Set("Authorization", "Bearer "+tokenOverride)
		} else {
			c.auth.attachToken(ctx, headers)
		}
	}

	if c.csrf != nil && !r.SkipCSRF && c.csrf.NeedsProtection(r.Method) {
		// Collaborator failures propagate as-is; the client cannot
		// classify arbitrary third-party errors.
		if err := c.csrf.AddToken(ctx, headers); err != nil {
			return nil, err
		}
	}

	body, err := SerializeBody(r.Body)
	if err != nil {
		return nil, &ClientError{
			Type:      ErrorTypeUnknown,
			Message:   "request body serialization failed",
			Cause:     err,
			Timestamp: time.Now(),
		}
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
		if headers.Get("Content-Type") == "" {
			if ct := ContentTypeFor(r.Body); ct != "" {
				headers.Set("Content-Type", ct)
			}
		}
	}

	resp, err := c.transport.Perform(ctx, resolved, TransportOptions{
		Method: r.Method,
		Header: headers,
		Body:   reader,
	})
	if err != nil {
		return nil, classifyTransportError(parent, ctx, err)
	}

	resp.Request = r
	if !resp.OK() {
		ce := classifyStatus(resp.Status, resp.StatusText)
		ce.Response = resp
		return nil, ce
	}
	return resp, nil
}

func (c *Client) newError(errType, message string, cause error, r *Request, resolved, requestID string, attempt, maxRetries int, start time.Time) *ClientError {
	return &ClientError{
		Type:       errType,
		Message:    message,
		Cause:      cause,
		Request:    r,
		RequestID:  requestID,
		Method:     r.Method,
		URL:        resolved,
		Attempt:    attempt,
		MaxRetries: maxRetries,
		Timestamp:  time.Now(),
		Duration:   time.Since(start),
	}
}

// isCircuitFailure reports whether the classified error should count
// against the circuit breaker.
func isCircuitFailure(err error) bool {
	var ce *ClientError
	if !errors.As(err, &ce) {
		return false
	}
	switch ce.Type {
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeServer:
		return true
	default:
		return false
	}
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

// Interceptors exposes the client's interceptor chains for registration.
func (c *Client) Interceptors() *Interceptors {
	return c.interceptors
}

// Cache exposes the client's response cache, nil when caching is disabled.
func (c *Client) Cache() Cache {
	if !c.cacheEnabled {
		return nil
	}
	return c.cache
}

// Pool exposes the per-host queue pool, nil when no queue is configured.
func (c *Client) Pool() *ConnectionPool {
	return c.pool
}

func (c *Client) resolveURL(raw string) string {
	if c.baseURL == "" || strings.Contains(raw, "://") {
		return raw
	}
	return strings.TrimSuffix(c.baseURL, "/") + "/" + strings.TrimPrefix(raw, "/")
}

func endpointFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "unknown"
	}

	var builder strings.Builder
	builder.WriteString(u.Host)
	if u.Path != "" && u.Path != "/" {
		builder.WriteString(u.Path)
	} else {
		builder.WriteByte('/')
	}
	return builder.String()
}

func hostFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}
