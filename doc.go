// Package restkit is an HTTP client runtime layered over a primitive
// request/response transport. It adds the behaviors applications need around
// raw dispatch:
//
//   - Response caching with TTL + LRU eviction (in-memory or Redis backed)
//   - De-duplication of concurrent identical in-flight requests
//   - Retries with capped exponential backoff (Retry-After aware)
//   - Bearer token injection with a single refresh-and-retry on 401
//   - CSRF header attachment for mutating verbs
//   - Request / response / error interceptor chains
//   - Per-host admission queues with concurrency and rate limits
//   - Token-bucket rate limiting and a circuit breaker in front of dispatch
//   - Prometheus metrics and lightweight structured debug logging
//
// Design goals:
//   - Small surface area: functional options configure everything
//   - Safe concurrent use of a single *Client instance
//   - Derived clients (Client.With) share configuration, never stores
//   - Extensibility via interceptors & pluggable cache / transport / metrics
//
// Typical usage:
//
//	client := restkit.New(
//	    restkit.WithBaseURL("https://api.example.com"),
//	    restkit.WithRetries(3),
//	    restkit.WithCache(5*time.Minute, 512),
//	)
//	resp, err := client.Get(ctx, "/users", nil)
//
// Failures always surface as *ClientError with a stable classification
// (network, timeout, abort, validation, authentication, authorization,
// client, server, unknown); 4xx responses fail fast while network errors,
// timeouts and 5xx responses are retried.
package restkit
