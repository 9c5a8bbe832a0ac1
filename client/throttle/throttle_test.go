package throttle

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewRoundTripper_Validation(t *testing.T) {
	testCases := []struct {
		name   string
		rps    int
		burst  int
		expErr error
	}{
		{name: "zero rps", rps: 0, burst: 10, expErr: ErrMustNotBeZero},
		{name: "negative rps", rps: -5, burst: 10, expErr: ErrMustNotBeZero},
		{name: "zero burst", rps: 10, burst: 0, expErr: ErrMustNotBeZero},
		{name: "negative burst", rps: 10, burst: -5, expErr: ErrMustNotBeZero},
		{name: "valid", rps: 10, burst: 20},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rt, err := NewRoundTripper(tc.rps, tc.burst, nil, nil)

			if tc.expErr != nil {
				if !errors.Is(err, tc.expErr) {
					t.Errorf("exp err %v; got: %v", tc.expErr, err)
				}
				return
			}

			if err != nil {
				t.Errorf("exp nil err, got: %v", err)
			}
			if rt == nil {
				t.Error("exp non-nil RoundTripper")
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	testCases := []struct {
		name        string
		rps         int
		burst       int
		calls       int
		callTimeout time.Duration
		preCancel   bool
		expErrs     int
		expErr      error
		minDuration time.Duration
		maxDuration time.Duration
	}{
		{
			name:        "within burst",
			rps:         5,
			burst:       5,
			calls:       5,
			maxDuration: 100 * time.Millisecond,
		},
		{
			name:        "beyond burst waits",
			rps:         10,
			burst:       5,
			calls:       8,
			callTimeout: time.Second,
			minDuration: 300 * time.Millisecond,
		},
		{
			name:        "wait exceeds deadline",
			rps:         5,
			burst:       2,
			calls:       5,
			callTimeout: 50 * time.Millisecond,
			expErrs:     3,
			expErr:      ErrWaitingFailed,
		},
		{
			name:        "pre-cancelled context",
			rps:         20,
			burst:       10,
			calls:       1,
			preCancel:   true,
			expErrs:     1,
			expErr:      ErrContextEnded,
			maxDuration: 50 * time.Millisecond,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			rt, err := NewRoundTripper(tc.rps, tc.burst, nil, http.DefaultTransport)
			if err != nil {
				t.Fatal(err)
			}
			client := &http.Client{Transport: rt}

			errs := make([]error, tc.calls)
			var wg sync.WaitGroup
			start := time.Now()

			for i := range tc.calls {
				wg.Add(1)
				go func() {
					defer wg.Done()

					var (
						ctx    context.Context
						cancel context.CancelFunc
					)
					if tc.callTimeout > 0 {
						ctx, cancel = context.WithTimeout(context.Background(), tc.callTimeout)
					} else {
						ctx, cancel = context.WithCancel(context.Background())
					}
					defer cancel()
					if tc.preCancel {
						cancel()
					}

					req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
					if err != nil {
						errs[i] = err
						return
					}

					resp, err := client.Do(req)
					if err != nil {
						errs[i] = err
						return
					}
					resp.Body.Close()
				}()
			}
			wg.Wait()
			elapsed := time.Since(start)

			var failed int
			for _, err := range errs {
				if err == nil {
					continue
				}
				failed++
				if tc.expErr != nil && !errors.Is(err, tc.expErr) {
					t.Errorf("exp %v, got: %v", tc.expErr, err)
				}
			}

			if failed != tc.expErrs {
				t.Errorf("exp %d failed calls, got %d", tc.expErrs, failed)
			}
			if got := int(hits.Load()); got != tc.calls-failed {
				t.Errorf("exp %d calls to reach the server, got %d", tc.calls-failed, got)
			}
			if tc.minDuration > 0 && elapsed < tc.minDuration {
				t.Errorf("exp throttled run >= %v, took %v", tc.minDuration, elapsed)
			}
			if tc.maxDuration > 0 && elapsed > tc.maxDuration {
				t.Errorf("exp run < %v, took %v", tc.maxDuration, elapsed)
			}
		})
	}
}

func TestRoundTrip_LogsWait(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	rt, err := NewRoundTripper(50, 1, func() *slog.Logger { return logger }, http.DefaultTransport)
	if err != nil {
		t.Fatal(err)
	}
	client := &http.Client{Transport: rt}

	for range 2 {
		resp, err := client.Get(server.URL + "/limited")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
	}

	out := buf.String()
	for _, want := range []string{"throttle tokens exhausted", "throttle wait complete", "path=/limited"} {
		if !strings.Contains(out, want) {
			t.Errorf("exp log to contain %q, got:\n%s", want, out)
		}
	}
}
