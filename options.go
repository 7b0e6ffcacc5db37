package restkit

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// WithBaseURL sets a base URL that relative request URLs are resolved
// against. Absolute request URLs bypass it.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the default per-attempt timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithHeaders sets default headers attached to every request. Per-request
// headers override them on conflict.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		for k, v := range headers {
			c.headers.Set(k, v)
		}
	}
}

// WithHeader sets a single default header.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

// WithRetries sets the default maximum retry count. Zero disables retries.
func WithRetries(maxRetries int) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
	}
}

// WithRetryDelay sets the backoff base delay.
func WithRetryDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = delay
	}
}

// WithMaxRetryDelay caps the computed backoff delay.
func WithMaxRetryDelay(max time.Duration) Option {
	return func(c *Client) {
		c.maxRetryDelay = max
	}
}

// WithJitter adds uniform jitter to backoff delays; fraction in [0,1].
func WithJitter(jitter float64) Option {
	return func(c *Client) {
		c.jitter = jitter
	}
}

// WithRetryPolicy replaces the default retry decision entirely.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		c.retryPolicy = policy
	}
}

// WithCache enables the in-memory response cache with the given default
// TTL and entry capacity.
func WithCache(ttl time.Duration, capacity int) Option {
	return func(c *Client) {
		c.cacheEnabled = true
		c.cacheTTL = ttl
		c.cacheCapacity = capacity
	}
}

// WithCacheTTL sets the default cache TTL without touching the capacity.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.cacheTTL = ttl
	}
}

// WithCustomCache installs a caller-provided cache backend, such as
// NewRedisCache.
func WithCustomCache(cache Cache) Option {
	return func(c *Client) {
		c.cacheEnabled = true
		c.cache = cache
	}
}

// WithCacheKeyFunc replaces the request fingerprint used for both the
// cache and deduplication keys.
func WithCacheKeyFunc(fn FingerprintFunc) Option {
	return func(c *Client) {
		if fn != nil {
			c.fingerprint = fn
		}
	}
}

// WithoutCache disables response caching.
func WithoutCache() Option {
	return func(c *Client) {
		c.cacheEnabled = false
	}
}

// WithoutDeduplication disables in-flight request coalescing.
func WithoutDeduplication() Option {
	return func(c *Client) {
		c.dedupEnabled = false
	}
}

// WithAuth installs token acquisition and refresh hooks.
func WithAuth(cfg AuthConfig) Option {
	return func(c *Client) {
		c.authCfg = cfg
	}
}

// WithCSRF installs a CSRF guard consulted for mutating requests.
func WithCSRF(guard CSRFGuard) Option {
	return func(c *Client) {
		c.csrf = guard
	}
}

// WithCSRFToken is a convenience for a static-source guard on the default
// header.
func WithCSRFToken(source func(ctx context.Context) (string, error)) Option {
	return func(c *Client) {
		c.csrf = &TokenCSRFGuard{Source: source}
	}
}

// WithTransport replaces the HTTP transport, e.g. for tests or a custom
// http.Client.
func WithTransport(transport Transport) Option {
	return func(c *Client) {
		c.transport = transport
	}
}

// WithHTTPClient uses the provided http.Client for dispatch.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.transport = NewHTTPTransport(hc)
	}
}

// WithRateLimiter installs a client-wide token bucket admission gate.
func WithRateLimiter(maxTokens int, refillRate time.Duration) Option {
	return func(c *Client) {
		c.rateLimiter = NewRateLimiter(maxTokens, refillRate)
	}
}

// WithCircuitBreaker installs a circuit breaker in front of dispatch.
func WithCircuitBreaker(cfg CircuitBreakerConfig) Option {
	return func(c *Client) {
		c.circuitBreaker = NewCircuitBreaker(cfg)
	}
}

// WithQueue routes dispatch through per-host admission queues.
func WithQueue(cfg QueueConfig) Option {
	return func(c *Client) {
		c.queueCfg = &cfg
	}
}

// WithMetrics enables Prometheus metrics on the default registry.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector installs a caller-provided collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithLogger installs a structured logger.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger installs the stderr logger.
func WithSimpleLogger() Option {
	return func(c *Client) {
		c.logger = NewSimpleLogger()
	}
}

// WithDebug turns on debug logging for all areas.
func WithDebug() Option {
	return func(c *Client) {
		cfg := DefaultDebugConfig()
		cfg.Enabled = true
		c.debug = cfg
		if c.logger == nil {
			c.logger = NewSimpleLogger()
		}
	}
}

// WithDebugConfig installs fine-grained debug logging configuration.
func WithDebugConfig(cfg *DebugConfig) Option {
	return func(c *Client) {
		c.debug = cfg
	}
}

// WithRequestIDGenerator overrides request ID generation for debug logs.
func WithRequestIDGenerator(fn func() string) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = fn
	}
}

// ValidateConfiguration checks the client configuration and returns a
// config-typed error describing every problem found, or nil.
func (c *Client) ValidateConfiguration() error {
	var problems []string

	if c.transport == nil {
		problems = append(problems, "transport cannot be nil")
	}
	if c.timeout <= 0 {
		problems = append(problems, "timeout must be positive")
	}
	if c.maxRetries < 0 {
		problems = append(problems, "maxRetries cannot be negative")
	}
	if c.retryDelay <= 0 {
		problems = append(problems, "retryDelay must be positive")
	}
	if c.maxRetryDelay < c.retryDelay {
		problems = append(problems, "maxRetryDelay must be >= retryDelay")
	}
	if c.jitter < 0 || c.jitter > 1 {
		problems = append(problems, "jitter must be between 0 and 1")
	}
	if c.cacheEnabled {
		if c.cacheTTL <= 0 {
			problems = append(problems, "cacheTTL must be positive when caching is enabled")
		}
		if c.cache == nil && c.cacheCapacity <= 0 {
			problems = append(problems, "cache capacity must be positive")
		}
	}
	if c.fingerprint == nil {
		problems = append(problems, "cache key function cannot be nil")
	}
	if c.baseURL != "" {
		if u, err := url.Parse(c.baseURL); err != nil || u.Scheme == "" || u.Host == "" {
			problems = append(problems, "baseURL must be an absolute URL")
		}
	}
	if c.queueCfg != nil {
		if c.queueCfg.MaxConcurrent <= 0 {
			problems = append(problems, "queue maxConcurrent must be positive")
		}
		if c.queueCfg.RequestsPerSecond < 0 {
			problems = append(problems, "queue requestsPerSecond cannot be negative")
		}
		if c.queueCfg.MaxQueueSize < 0 {
			problems = append(problems, "queue maxQueueSize cannot be negative")
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return &ClientError{
		Type:      ErrorTypeConfig,
		Message:   "invalid configuration: " + strings.Join(problems, "; "),
		Timestamp: time.Now(),
	}
}
