package client

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuildHeaders(t *testing.T) {
	testCases := map[string]struct {
		provider HeaderProvider
		perCall  http.Header
		exp      http.Header
		expErr   bool
	}{
		"defaultContentType": {
			exp: http.Header{"Content-Type": {DefaultContentType}},
		},
		"configuredAndPerCall": {
			provider: StaticHeaders{"Authorization": {"Bearer a"}, "X-App": {"1"}},
			perCall:  http.Header{"authorization": {"Bearer b"}},
			exp: http.Header{
				"Authorization": {"Bearer b"},
				"X-App":         {"1"},
				"Content-Type":  {DefaultContentType},
			},
		},
		"callerContentTypeKept": {
			perCall: http.Header{"Content-Type": {"text/plain"}},
			exp:     http.Header{"Content-Type": {"text/plain"}},
		},
		"producerPerRequest": {
			provider: HeaderFunc(func(ctx context.Context) (http.Header, error) {
				return http.Header{"X-Token": {"fresh"}}, nil
			}),
			exp: http.Header{"X-Token": {"fresh"}, "Content-Type": {DefaultContentType}},
		},
		"producerError": {
			provider: HeaderFunc(func(ctx context.Context) (http.Header, error) {
				return nil, errors.New("token store down")
			}),
			expErr: true,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			got, err := buildHeaders(t.Context(), tc.provider, tc.perCall)
			if tc.expErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if diff := cmp.Diff(tc.exp, got); diff != "" {
				t.Errorf("headers mismatch (-exp +got):\n%s", diff)
			}
		})
	}
}

func TestBuildHeaders_DoesNotMutateInputs(t *testing.T) {
	static := StaticHeaders{"X-App": {"1"}}
	perCall := http.Header{"X-Call": {"2"}}

	got, err := buildHeaders(t.Context(), static, perCall)
	if err != nil {
		t.Fatal(err)
	}
	got.Set("X-App", "changed")
	got.Set("X-Call", "changed")

	if static["X-App"][0] != "1" || perCall.Get("X-Call") != "2" {
		t.Errorf("inputs mutated: %v %v", static, perCall)
	}
}
