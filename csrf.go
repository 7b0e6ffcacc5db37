package restkit

import (
	"context"
	"net/http"
)

// CSRFGuard attaches anti-forgery tokens to state-changing requests. The
// client only drives the protocol; how the token is sourced is the guard's
// concern.
type CSRFGuard interface {
	// NeedsProtection reports whether the method requires a CSRF token.
	NeedsProtection(method string) bool
	// AddToken resolves the current token and sets it on h.
	AddToken(ctx context.Context, h http.Header) error
}

// DefaultCSRFHeader is the header TokenCSRFGuard writes when none is
// configured.
const DefaultCSRFHeader = "X-CSRF-Token"

// TokenCSRFGuard is a CSRFGuard that fetches a token from Source and sets
// it on a single header for the conventional mutating verbs.
type TokenCSRFGuard struct {
	// Source resolves the current CSRF token.
	Source func(ctx context.Context) (string, error)
	// HeaderName defaults to DefaultCSRFHeader when empty.
	HeaderName string
}

// NeedsProtection implements CSRFGuard: true for POST, PUT, PATCH, DELETE.
func (g *TokenCSRFGuard) NeedsProtection(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// AddToken implements CSRFGuard.
func (g *TokenCSRFGuard) AddToken(ctx context.Context, h http.Header) error {
	if g.Source == nil {
		return nil
	}
	token, err := g.Source(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}
	name := g.HeaderName
	if name == "" {
		name = DefaultCSRFHeader
	}
	h.Set(name, token)
	return nil
}
