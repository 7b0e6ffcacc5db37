package restkit

import (
	"context"
	"net/http"

	"github.com/ambiyansyah-risyal/restkit/internal/singleflight"
)

// AuthConfig wires the token provider and refresher plus the observer
// callbacks. All fields are optional; a nil GetToken disables attachment
// and a nil RefreshToken disables the 401 refresh-and-retry.
type AuthConfig struct {
	// GetToken resolves the current bearer token. Returning "" means no
	// token; errors are swallowed, logged and treated as "no token".
	GetToken func(ctx context.Context) (string, error)
	// RefreshToken obtains a fresh token after an authentication failure.
	RefreshToken func(ctx context.Context) (string, error)
	// OnTokenRefresh observes every successful refresh.
	OnTokenRefresh func(token string)
	// OnAuthError observes every failed refresh.
	OnAuthError func(err error)
}

// authCoordinator attaches bearer tokens and performs the single
// refresh-and-retry cycle on authentication failure. Concurrent refreshes
// collapse into one provider call via singleflight.
type authCoordinator struct {
	cfg     AuthConfig
	flight  *singleflight.Group
	logger  Logger
	metrics *MetricsCollector
}

func newAuthCoordinator(cfg AuthConfig, logger Logger, metrics *MetricsCollector) *authCoordinator {
	return &authCoordinator{
		cfg:     cfg,
		flight:  singleflight.New(),
		logger:  logger,
		metrics: metrics,
	}
}

// attachToken sets the Authorization header when a token can be obtained.
// Provider failures never fail the request.
func (a *authCoordinator) attachToken(ctx context.Context, h http.Header) {
	if a == nil || a.cfg.GetToken == nil {
		return
	}
	token, err := a.cfg.GetToken(ctx)
	if err != nil {
		if a.logger != nil {
			a.logger.Warn("token provider failed, continuing without token", "error", err)
		}
		return
	}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
}

// handleAuthFailure runs the refresh protocol after a 401. On success the
// new token is returned for exactly one retried dispatch; on failure the
// original 401 propagates. Concurrent calls share one refresh.
func (a *authCoordinator) handleAuthFailure(ctx context.Context) (string, bool) {
	if a == nil || a.cfg.RefreshToken == nil {
		return "", false
	}

	v, err := a.flight.Do("refresh", func() (interface{}, error) {
		return a.cfg.RefreshToken(ctx)
	})
	if err != nil {
		if a.metrics != nil {
			a.metrics.RecordAuthRefresh("failure")
		}
		if a.logger != nil {
			a.logger.Warn("token refresh failed", "error", err)
		}
		if a.cfg.OnAuthError != nil {
			a.cfg.OnAuthError(err)
		}
		return "", false
	}

	token, _ := v.(string)
	if token == "" {
		if a.metrics != nil {
			a.metrics.RecordAuthRefresh("failure")
		}
		return "", false
	}
	if a.metrics != nil {
		a.metrics.RecordAuthRefresh("success")
	}
	if a.cfg.OnTokenRefresh != nil {
		a.cfg.OnTokenRefresh(token)
	}
	return token, true
}
