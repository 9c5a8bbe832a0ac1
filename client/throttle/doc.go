// Package throttle rate-limits outbound calls with a token bucket from
// [golang.org/x/time/rate].
//
// Calls that find the bucket empty block until a token is available or
// their context ends. The fetcher client installs it beneath its own
// deadline, so time spent waiting counts against the call timeout:
//
//	rt, err := throttle.NewRoundTripper(10, 5, func() *slog.Logger { return slog.Default() }, http.DefaultTransport)
//	httpClient := &http.Client{Transport: rt}
package throttle
