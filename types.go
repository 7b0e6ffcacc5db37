package restkit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

// Request is the logical description of one HTTP call. It is resolved
// against the client configuration (base URL, default headers, timeout,
// retry budget) when dispatched. Construct with NewRequest so the
// override sentinels are set correctly.
type Request struct {
	// Method defaults to GET when empty.
	Method string
	// URL may be absolute or relative to the client's base URL.
	URL string
	// Params are appended to the URL as a percent-encoded query string.
	// Nil values are skipped entirely.
	Params map[string]any
	// Headers override client defaults on case-insensitive key collision.
	Headers http.Header
	// Body may be a string, []byte, url.Values, Multipart, io.Reader or any
	// JSON-marshalable value. See SerializeBody.
	Body any

	// Timeout overrides the client timeout when positive.
	Timeout time.Duration
	// Retries overrides the client retry count when non-negative.
	Retries int
	// RetryDelay overrides the client base backoff delay when positive.
	RetryDelay time.Duration

	// CacheKey replaces the computed fingerprint when set.
	CacheKey string
	// CacheTTL overrides the client cache TTL when positive.
	CacheTTL time.Duration

	// Priority orders admission when the request goes through a queue.
	// Higher dispatches first; ties are FIFO.
	Priority int

	SkipCache bool
	SkipAuth  bool
	SkipCSRF  bool
	SkipDedup bool
}

// NewRequest returns a Request with override sentinels unset.
func NewRequest(method, url string) *Request {
	return &Request{
		Method:  method,
		URL:     url,
		Headers: make(http.Header),
		Retries: -1,
	}
}

// Clone returns a deep enough copy for interceptors to mutate safely.
func (r *Request) Clone() *Request {
	out := *r
	out.Headers = r.Headers.Clone()
	if out.Headers == nil {
		out.Headers = make(http.Header)
	}
	if r.Params != nil {
		out.Params = make(map[string]any, len(r.Params))
		for k, v := range r.Params {
			out.Params[k] = v
		}
	}
	return &out
}

// Response is the settled result of a successful dispatch (or a cache hit).
// Response interceptors must treat it as immutable and return a new value.
type Response struct {
	Status     int
	StatusText string
	Header     http.Header
	Body       []byte
	Request    *Request
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// JSON unmarshals the body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// String returns the body as a string.
func (r *Response) String() string {
	return string(r.Body)
}

// Multipart is a pre-encoded multipart/form-data body. Boundary management
// is the producer's concern (mime/multipart.Writer); the content type here
// must already carry the boundary parameter.
type Multipart struct {
	Data        []byte
	ContentType string
}

// TransportOptions carries everything the transport needs besides the URL.
type TransportOptions struct {
	Method string
	Header http.Header
	Body   io.Reader
}

// Transport is the single I/O primitive the client dispatches through.
// Implementations never see retries, caching or deduplication.
type Transport interface {
	Perform(ctx context.Context, url string, opts TransportOptions) (*Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, url string, opts TransportOptions) (*Response, error)

// Perform implements Transport.
func (f TransportFunc) Perform(ctx context.Context, url string, opts TransportOptions) (*Response, error) {
	return f(ctx, url, opts)
}

// httpTransport is the default Transport on top of net/http.
type httpTransport struct {
	client *http.Client
}

// NewHTTPTransport wraps an *http.Client as a Transport. A nil client uses
// a zero-value http.Client; per-request deadlines come from the context.
func NewHTTPTransport(client *http.Client) Transport {
	if client == nil {
		client = &http.Client{}
	}
	return &httpTransport{client: client}
}

func (t *httpTransport) Perform(ctx context.Context, url string, opts TransportOptions) (*Response, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, url, opts.Body)
	if err != nil {
		return nil, err
	}
	if opts.Header != nil {
		req.Header = opts.Header
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		Status:     resp.StatusCode,
		StatusText: statusText(resp),
		Header:     resp.Header.Clone(),
		Body:       body,
	}, nil
}

// statusText strips the numeric prefix from "200 OK" style status lines.
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(resp.Status)
	if i := strings.IndexByte(text, ' '); i >= 0 {
		return text[i+1:]
	}
	if text == "" {
		return http.StatusText(resp.StatusCode)
	}
	return text
}

// Option configures a Client.
type Option func(*Client)
