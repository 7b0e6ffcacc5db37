package restkit

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// BuildURL appends params to base as a percent-encoded query string. Keys
// are emitted in sorted order so equal parameter sets yield equal URLs (the
// fingerprint depends on this). Nil values are skipped; an empty set returns
// base unchanged. Uses '?' when base has no query string yet, '&' otherwise.
func BuildURL(base string, params map[string]any) string {
	if len(params) == 0 {
		return base
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		if params[k] == nil {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return base
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(base)
	sep := byte('?')
	if strings.Contains(base, "?") {
		sep = '&'
	}
	for _, k := range keys {
		b.WriteByte(sep)
		sep = '&'
		b.WriteString(queryEscape(k))
		b.WriteByte('=')
		b.WriteString(queryEscape(paramString(params[k])))
	}
	return b.String()
}

// queryEscape percent-encodes a query component, using %20 for spaces.
func queryEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func paramString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		// Drop the trailing ".0" for integral floats, matching %v on ints.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// MergeHeaders normalizes and merges header sources; later sources override
// earlier ones on case-insensitive key collision. Accepted shapes:
// http.Header, map[string]string, and [][2]string. Nil sources are skipped.
func MergeHeaders(sources ...any) http.Header {
	out := make(http.Header)
	for _, src := range sources {
		switch s := src.(type) {
		case nil:
			continue
		case http.Header:
			for k, vs := range s {
				if len(vs) == 0 {
					continue
				}
				out.Del(k)
				for _, v := range vs {
					out.Add(k, v)
				}
			}
		case map[string]string:
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				out.Set(k, s[k])
			}
		case [][2]string:
			for _, kv := range s {
				out.Set(kv[0], kv[1])
			}
		}
	}
	return out
}

// ContentTypeFor infers the Content-Type for a request body. Empty string
// means no content type should be attached.
func ContentTypeFor(body any) string {
	switch b := body.(type) {
	case nil:
		return ""
	case string:
		return "text/plain"
	case url.Values:
		return "application/x-www-form-urlencoded"
	case Multipart:
		if b.ContentType != "" {
			return b.ContentType
		}
		return "multipart/form-data"
	case *Multipart:
		if b != nil && b.ContentType != "" {
			return b.ContentType
		}
		return "multipart/form-data"
	case []byte, io.Reader:
		return "application/octet-stream"
	default:
		return "application/json"
	}
}

// SerializeBody converts a request body to bytes. Strings, byte slices,
// url-encoded forms, multipart payloads and readers pass through; anything
// else is JSON-marshaled. A nil body stays nil.
func SerializeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(b), nil
	case []byte:
		return b, nil
	case url.Values:
		return []byte(b.Encode()), nil
	case Multipart:
		return b.Data, nil
	case *Multipart:
		if b == nil {
			return nil, nil
		}
		return b.Data, nil
	case io.Reader:
		return io.ReadAll(b)
	default:
		return json.Marshal(body)
	}
}
