package client

import (
	"context"
	"fmt"
	"net/http"
)

// HeaderProvider supplies the configured headers for a request.
type HeaderProvider interface {
	Headers(ctx context.Context) (http.Header, error)
}

// StaticHeaders is a constant header set.
type StaticHeaders http.Header

// Headers returns a copy of the static set.
func (s StaticHeaders) Headers(context.Context) (http.Header, error) {
	return http.Header(s).Clone(), nil
}

// HeaderFunc produces headers on every request, e.g. reading a current
// access token. It may block; ctx carries the call deadline.
type HeaderFunc func(ctx context.Context) (http.Header, error)

// Headers calls fn.
func (fn HeaderFunc) Headers(ctx context.Context) (http.Header, error) {
	return fn(ctx)
}

// buildHeaders resolves the configured provider, overlays the per-call
// headers and fills in the default Content-Type. Neither input is mutated.
func buildHeaders(ctx context.Context, provider HeaderProvider, perCall http.Header) (http.Header, error) {
	headers := make(http.Header)

	if provider != nil {
		base, err := provider.Headers(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving configured headers: %w", err)
		}
		for k, v := range base {
			headers[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
		}
	}

	for k, v := range perCall {
		headers[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
	}

	if headers.Get("Content-Type") == "" {
		headers.Set("Content-Type", DefaultContentType)
	}

	return headers, nil
}
