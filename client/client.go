package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/fetcher/client/download"
	"github.com/adamwoolhether/fetcher/client/throttle"
)

// Client executes envelope-aware requests. It is safe for concurrent use.
type Client struct {
	c               *http.Client
	logger          *slog.Logger
	tracer          trace.Tracer
	requestIDHeader string

	mu  sync.RWMutex
	cfg Config
}

// Build creates a [Client] from functional options. Without options the
// client talks through [http.DefaultTransport] with the default [Config].
func Build(optFns ...Option) (*Client, error) {
	client := &Client{
		c:      &http.Client{},
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer(""),
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	if opts.client != nil {
		hc := *opts.client
		client.c = &hc
	}

	if opts.logger != nil {
		client.logger = opts.logger
	}

	if opts.tracer != nil {
		client.tracer = opts.tracer
	}

	client.requestIDHeader = opts.requestIDHeader

	if opts.noFollowRedirects {
		client.c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	var transport http.RoundTripper
	switch {
	case opts.rt != nil:
		transport = opts.rt
	case opts.client != nil && opts.client.Transport != nil:
		transport = opts.client.Transport
	default:
		transport = http.DefaultTransport
	}
	if opts.userAgent != "" {
		transport = userAgent{value: opts.userAgent, base: transport}
	}
	if opts.throttle != nil {
		rt, err := throttle.NewRoundTripper(opts.throttle.RPS, opts.throttle.Burst, func() *slog.Logger { return client.logger }, transport)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		transport = rt
	}
	client.c.Transport = transport

	cfg, err := defaultConfig().apply(opts.config...)
	if err != nil {
		return nil, fmt.Errorf("applying config: %w", err)
	}
	client.cfg = cfg

	return client, nil
}

// Config returns a snapshot of the live configuration.
func (c *Client) Config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cfg := c.cfg
	cfg.BlobContentTypes = slices.Clone(cfg.BlobContentTypes)
	cfg.Codes = Codes{
		Success:     slices.Clone(cfg.Codes.Success),
		Logout:      slices.Clone(cfg.Codes.Logout),
		IgnoreError: slices.Clone(cfg.Codes.IgnoreError),
	}
	return cfg
}

// Configure shallow-merges opts into the live configuration. Each option
// replaces one field wholesale. On error the live configuration is left
// unchanged. Calls already in flight keep the configuration they started
// with.
func (c *Client) Configure(opts ...ConfigOption) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfg, err := c.cfg.apply(opts...)
	if err != nil {
		return err
	}
	c.cfg = cfg

	return nil
}

// Get issues a GET request. See [Client.Request].
func (c *Client) Get(ctx context.Context, url string, opts ...RequestOption) (*Result, error) {
	return c.Request(ctx, url, slices.Concat(opts, []RequestOption{WithMethod(http.MethodGet)})...)
}

// Post issues a POST request. See [Client.Request].
func (c *Client) Post(ctx context.Context, url string, opts ...RequestOption) (*Result, error) {
	return c.Request(ctx, url, slices.Concat(opts, []RequestOption{WithMethod(http.MethodPost)})...)
}

// Put issues a PUT request. See [Client.Request].
func (c *Client) Put(ctx context.Context, url string, opts ...RequestOption) (*Result, error) {
	return c.Request(ctx, url, slices.Concat(opts, []RequestOption{WithMethod(http.MethodPut)})...)
}

// Delete issues a DELETE request. See [Client.Request].
func (c *Client) Delete(ctx context.Context, url string, opts ...RequestOption) (*Result, error) {
	return c.Request(ctx, url, slices.Concat(opts, []RequestOption{WithMethod(http.MethodDelete)})...)
}

// Patch issues a PATCH request. See [Client.Request].
func (c *Client) Patch(ctx context.Context, url string, opts ...RequestOption) (*Result, error) {
	return c.Request(ctx, url, slices.Concat(opts, []RequestOption{WithMethod(http.MethodPatch)})...)
}

// Request resolves url against the configured base URL, sends it and
// classifies the response. It returns either a [*Result] or an
// [*HTTPError], never both. Failures are reported to the configured and
// per-call error callbacks unless the call uses [WithIgnoreError].
func (c *Client) Request(ctx context.Context, url string, opts ...RequestOption) (*Result, error) {
	cfg := c.Config()

	var call callOpts
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&call); err != nil {
			return nil, handleError(ctx, &cfg, &call, fmt.Errorf("applying request option: %w", err))
		}
	}

	method := call.resolveMethod(&cfg)

	ctx, span := c.tracer.Start(ctx, "fetcher.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.request.method", method)),
	)
	defer span.End()

	tok := newCancelToken(ctx)
	defer tok.release()

	res, err := c.do(ctx, tok, &cfg, &call, method, url)
	if err == nil && call.destination != nil {
		if derr := res.Decode(call.destination); derr != nil {
			err = &HTTPError{Kind: KindDecode, Message: derr.Error(), Response: res.Response, Err: derr}
			res = nil
		}
	}

	if err != nil {
		he := handleError(ctx, &cfg, &call, err)
		span.RecordError(he)
		span.SetStatus(otelcodes.Error, he.Message)
		if he.StatusCode != 0 {
			span.SetAttributes(attribute.Int("http.response.status_code", he.StatusCode))
		}
		return nil, he
	}

	if res.Response != nil {
		span.SetAttributes(attribute.Int("http.response.status_code", res.Response.StatusCode))
	}

	return res, nil
}

// do builds, sends and classifies one call.
func (c *Client) do(ctx context.Context, tok *cancelToken, cfg *Config, call *callOpts, method, path string) (*Result, error) {
	full := BuildURL(cfg.BaseURL, path, call.params)

	// The deadline covers header production as well as the wait for the
	// response headers.
	timeout := call.deadline(cfg)
	tok.arm(timeout)
	ctx = tok.Context()

	headers, err := buildHeaders(ctx, cfg.Headers, call.headers)
	if err != nil {
		if tok.TimedOut() {
			return nil, timeoutError(timeout, err)
		}
		return nil, err
	}

	var body io.Reader
	switch {
	case call.hasJSON:
		raw, err := json.Marshal(call.json)
		if err != nil {
			return nil, fmt.Errorf("encoding request payload: %w", err)
		}

		if bodyless(method) {
			if params, ok := jsonParams(raw); ok {
				full = appendParams(full, params)
			}
			break
		}
		body = bytes.NewReader(raw)

	case call.body != nil:
		body = call.body
		headers.Set("Content-Type", call.contentType)
	}

	req, err := http.NewRequestWithContext(ctx, method, full, body)
	if err != nil {
		return nil, fmt.Errorf("instantiating request: %w", err)
	}
	req.Header = headers
	for _, ck := range call.cookies {
		req.AddCookie(ck)
	}

	var requestID string
	if c.requestIDHeader != "" {
		requestID = req.Header.Get(c.requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
			req.Header.Set(c.requestIDHeader, requestID)
		}
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	if cfg.RequestInterceptor != nil {
		if err := cfg.RequestInterceptor(req); err != nil {
			return nil, fmt.Errorf("request interceptor: %w", err)
		}
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.String("url.full", req.URL.String()))
	c.logger.Debug("request started", "method", req.Method, "url", req.URL.String(), "request_id", requestID)
	start := time.Now()

	resp, err := c.execute(tok, req, timeout)
	if err != nil {
		c.logger.Debug("request failed", "method", req.Method, "url", req.URL.String(), "request_id", requestID, "since", time.Since(start).String(), "error", err)
		return nil, err
	}

	defer func() {
		if _, err := io.Copy(io.Discard, resp.Body); err != nil && !tok.TimedOut() {
			c.logger.Error("failed to discard unused body", "error", err)
		}
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("failed to close response body", "error", err)
		}
	}()

	c.logger.Debug("request completed", "method", req.Method, "url", req.URL.String(), "request_id", requestID, "statusCode", resp.StatusCode, "since", time.Since(start).String())

	res, err := c.classify(ctx, cfg, call, resp)
	if err != nil {
		if _, ok := AsHTTPError(err); !ok && tok.TimedOut() {
			return nil, timeoutError(timeout, err)
		}
		return nil, err
	}

	if cfg.ResponseInterceptor != nil && (res.IsBlob() || gjson.ParseBytes(res.Body).IsObject()) {
		intercepted, err := cfg.ResponseInterceptor(ctx, res)
		if err != nil {
			return nil, fmt.Errorf("response interceptor: %w", err)
		}
		if intercepted != nil {
			res = intercepted
		}
	}

	return res, nil
}

// DownloadFile saves a blob result into dir, named after the blob's
// filename or "download-<unix ms>" when the response carried none. It
// returns the written path.
func (c *Client) DownloadFile(ctx context.Context, blob *Blob, dir string, opts ...DownloadOption) (string, error) {
	if blob == nil || blob.Data == nil {
		return "", download.ErrNoData
	}

	return download.Save(ctx, blob.Data, blob.Filename, dir, c.logger, opts...)
}
