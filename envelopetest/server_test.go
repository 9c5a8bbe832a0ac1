package envelopetest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/fetcher/envelopetest"
)

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, string(b)
}

func TestServer_Handlers(t *testing.T) {
	srv := envelopetest.NewServer()
	defer srv.Close()

	srv.Handle(http.MethodGet, "/ok", envelopetest.Reply(200, map[string]int{"id": 1}, "ok"))
	srv.Handle(http.MethodGet, "/raw", envelopetest.Raw(`[1,2]`))
	srv.Handle(http.MethodGet, "/file", envelopetest.File("application/octet-stream", "a.csv", []byte("x")))
	srv.Handle(http.MethodGet, "/gone", envelopetest.Status(http.StatusGone))

	testCases := map[string]struct {
		path       string
		expStatus  int
		expBody    string
		expHeaders map[string]string
	}{
		"reply": {
			path:      "/ok",
			expStatus: http.StatusOK,
			expBody:   `{"code":200,"data":{"id":1},"message":"ok"}`,
		},
		"raw": {
			path:      "/raw",
			expStatus: http.StatusOK,
			expBody:   `[1,2]`,
		},
		"file": {
			path:      "/file",
			expStatus: http.StatusOK,
			expBody:   "x",
			expHeaders: map[string]string{
				"Content-Type":        "application/octet-stream",
				"Content-Disposition": `attachment; filename=a.csv`,
			},
		},
		"status": {
			path:      "/gone",
			expStatus: http.StatusGone,
			expBody:   "Gone\n",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			resp, body := get(t, srv.URL+tc.path)

			if resp.StatusCode != tc.expStatus {
				t.Errorf("exp status %d, got %d", tc.expStatus, resp.StatusCode)
			}
			if body != tc.expBody {
				t.Errorf("exp body %q, got %q", tc.expBody, body)
			}
			for k, v := range tc.expHeaders {
				if got := resp.Header.Get(k); got != v {
					t.Errorf("exp header %s=%q, got %q", k, v, got)
				}
			}
		})
	}
}

func TestServer_EchoAndRecord(t *testing.T) {
	srv := envelopetest.NewServer()
	defer srv.Close()

	srv.Handle(http.MethodPost, "/echo", envelopetest.Echo(0))

	resp, err := http.Post(srv.URL+"/echo?a=1", "text/plain", strings.NewReader("hi"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var env struct {
		Code int                 `json:"code"`
		Data envelopetest.Echoed `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatal(err)
	}

	exp := envelopetest.Echoed{Method: http.MethodPost, Query: "a=1", ContentType: "text/plain", Body: "hi"}
	if diff := cmp.Diff(exp, env.Data); diff != "" {
		t.Errorf("echo mismatch (-exp +got):\n%s", diff)
	}

	reqs := srv.Requests()
	if len(reqs) != 1 {
		t.Fatalf("exp 1 recorded request, got %d", len(reqs))
	}
	if reqs[0].Path != "/echo" || string(reqs[0].Body) != "hi" || reqs[0].StatusCode != http.StatusOK {
		t.Errorf("unexpected recorded request: %+v", reqs[0])
	}
}

func TestServer_PanicsAndLogging(t *testing.T) {
	var buf bytes.Buffer
	srv := envelopetest.NewServer(envelopetest.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	defer srv.Close()

	srv.Handle(http.MethodGet, "/panic", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		panic("boom")
	})

	resp, _ := get(t, srv.URL+"/panic")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("exp 500 after panic, got %d", resp.StatusCode)
	}

	for _, want := range []string{"request started", "PANIC [boom]"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("exp log to contain %q, got:\n%s", want, buf.String())
		}
	}
}
