// Package envelopetest runs an in-process backend that answers with
// code/data/message envelopes, for exercising fetcher clients in tests
// and examples.
package envelopetest

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Handler is a http.Handler that returns an error.
type Handler func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

// Middleware chains Handlers together.
type Middleware func(handler Handler) Handler

// Request is one call the server has handled.
type Request struct {
	Method     string
	Path       string
	RawQuery   string
	Header     http.Header
	Body       []byte
	TraceID    string
	StatusCode int
}

// Server is a running envelope backend. Close it when done.
type Server struct {
	*httptest.Server

	mux    *http.ServeMux
	mw     []Middleware
	logger *slog.Logger
	tracer trace.Tracer

	mu       sync.Mutex
	requests []Request
}

type Option func(*options)

type options struct {
	logger *slog.Logger
	tracer trace.Tracer
	mw     []Middleware
}

// WithLogger sets the logger for request and handler error logging.
func WithLogger(log *slog.Logger) Option {
	return func(opts *options) {
		opts.logger = log
	}
}

// WithTracer sets the tracer used for the server-side span of each request.
func WithTracer(tracer trace.Tracer) Option {
	return func(opts *options) {
		opts.tracer = tracer
	}
}

// WithMiddleware appends middleware run on every route, after the
// built-in request logging and panic recovery.
func WithMiddleware(mw ...Middleware) Option {
	return func(opts *options) {
		opts.mw = append(opts.mw, mw...)
	}
}

// NewServer starts a Server. Routes are added with [Server.Handle].
func NewServer(optFns ...Option) *Server {
	var opts options
	for _, opt := range optFns {
		opt(&opts)
	}
	if opts.logger == nil {
		opts.logger = slog.New(slog.DiscardHandler)
	}
	if opts.tracer == nil {
		opts.tracer = noop.NewTracerProvider().Tracer("envelopetest")
	}

	s := &Server{
		mux:    http.NewServeMux(),
		logger: opts.logger,
		tracer: opts.tracer,
	}
	s.mw = append([]Middleware{Logger(s.logger), Panics()}, opts.mw...)
	s.Server = httptest.NewServer(s.mux)

	return s
}

// Handle registers handler for method and path, e.g. ("GET", "/users").
// An empty method matches every method.
func (s *Server) Handle(method, path string, handler Handler, mw ...Middleware) {
	handler = wrap(mw, handler)
	handler = wrap(s.mw, handler)

	h := func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		ctx, span := s.startSpan(w, r)
		defer span.End()

		v := Values{
			TraceID:    span.SpanContext().TraceID().String(),
			Now:        time.Now().UTC(),
			StatusCode: http.StatusOK,
		}
		if !span.SpanContext().TraceID().IsValid() {
			v.TraceID = ""
		}

		r = r.WithContext(setValues(ctx, &v))

		rec := &recorder{ResponseWriter: w, record: func(statusCode int) {
			s.record(Request{
				Method:     r.Method,
				Path:       r.URL.Path,
				RawQuery:   r.URL.RawQuery,
				Header:     r.Header.Clone(),
				Body:       body,
				TraceID:    v.TraceID,
				StatusCode: statusCode,
			})
		}}

		if err := handler(r.Context(), rec, r); err != nil {
			s.logger.Error("envelopetest", "handle", err)
			if !rec.done {
				_ = RespondError(r.Context(), rec, http.StatusInternalServerError, err.Error())
			}
		}

		rec.flush(v.StatusCode)
	}

	pattern := path
	if method != "" {
		pattern = method + " " + path
	}

	s.mux.HandleFunc(pattern, h)
}

// Requests returns the requests handled so far, oldest first.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.requests)
}

func (s *Server) record(r Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, r)
}

// startSpan continues the caller's trace from the request headers and
// echoes the trace context on the response.
func (s *Server) startSpan(w http.ResponseWriter, r *http.Request) (context.Context, trace.Span) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	ctx, span := s.tracer.Start(ctx, "envelopetest.handler")
	span.SetAttributes(attribute.String("path", r.RequestURI))

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(w.Header()))

	return ctx, span
}

// recorder stores the request before the first byte of the response goes
// out, so a client that has read its response always finds the request in
// [Server.Requests].
type recorder struct {
	http.ResponseWriter
	record func(statusCode int)
	done   bool
}

func (rw *recorder) WriteHeader(statusCode int) {
	rw.flush(statusCode)
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *recorder) Write(b []byte) (int, error) {
	rw.flush(http.StatusOK)
	return rw.ResponseWriter.Write(b)
}

func (rw *recorder) flush(statusCode int) {
	if rw.done {
		return
	}
	rw.done = true
	rw.record(statusCode)
}

// wrap middleware around the handler and execute in order given.
func wrap(mw []Middleware, handler Handler) Handler {
	for _, mwFn := range slices.Backward(mw) {
		if mwFn != nil {
			handler = mwFn(handler)
		}
	}

	return handler
}
