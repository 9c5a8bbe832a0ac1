package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"mime/multipart"
	"net/http"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// RequestOption is a functional option for a single [Client.Request] call.
// Per-call values take precedence over the client's [Config].
type RequestOption func(opts *callOpts) error

type callOpts struct {
	method string

	json    any
	hasJSON bool

	body        io.Reader
	contentType string

	params  Params
	headers http.Header
	cookies []*http.Cookie

	ignoreError bool
	unwrap      *bool
	timeout     *time.Duration

	onError   ErrorHandler
	onLogout  ErrorHandler
	onSuccess SuccessHandler

	destination any
}

func (o *callOpts) returnData(cfg *Config) bool {
	if o.unwrap != nil {
		return *o.unwrap
	}
	return cfg.ReturnData
}

func (o *callOpts) deadline(cfg *Config) time.Duration {
	if o.timeout != nil {
		return *o.timeout
	}
	return cfg.Timeout
}

func (o *callOpts) resolveMethod(cfg *Config) string {
	if o.method != "" {
		return o.method
	}
	return cfg.DefaultMethod
}

// WithMethod sets the HTTP method. It is upper-cased.
func WithMethod(method string) RequestOption {
	return func(opts *callOpts) error {
		if method == "" {
			return errors.New("method must not be empty")
		}
		opts.method = strings.ToUpper(method)
		return nil
	}
}

// WithJSON sets the JSON-encoded request body. For GET and HEAD a JSON
// object is folded into the query string instead. Empty payloads (nil,
// false, zero numbers, "" and their pointers, or a raw message holding
// one of those) send nothing.
func WithJSON(body any) RequestOption {
	return func(opts *callOpts) error {
		opts.json = body
		opts.hasJSON = !emptyPayload(body)
		opts.body = nil
		return nil
	}
}

func emptyPayload(body any) bool {
	if raw, ok := body.(json.RawMessage); ok {
		switch v := gjson.ParseBytes(raw); v.Type {
		case gjson.Null, gjson.False:
			return true
		case gjson.Number:
			return v.Num == 0
		case gjson.String:
			return v.Str == ""
		default:
			return false
		}
	}

	v := reflect.ValueOf(body)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return true
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Invalid:
		return true
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return v.IsZero()
	default:
		return false
	}
}

// WithBody sends r unmodified with the given Content-Type. It is never
// folded into the query string.
func WithBody(r io.Reader, contentType string) RequestOption {
	return func(opts *callOpts) error {
		if r == nil {
			return errors.New("body must not be nil")
		}
		if contentType == "" {
			return errors.New("cannot use empty content type")
		}
		opts.body = r
		opts.contentType = contentType
		opts.json, opts.hasJSON = nil, false
		return nil
	}
}

// FormFile is one file part of a multipart body.
type FormFile struct {
	Field    string
	Filename string
	Data     io.Reader
}

// WithMultipart encodes fields and files as multipart/form-data. The
// multipart boundary replaces the default JSON Content-Type.
func WithMultipart(fields map[string]string, files ...FormFile) RequestOption {
	return func(opts *callOpts) error {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)

		for _, k := range sortedKeys(fields) {
			if err := w.WriteField(k, fields[k]); err != nil {
				return fmt.Errorf("writing field %q: %w", k, err)
			}
		}

		for _, f := range files {
			part, err := w.CreateFormFile(f.Field, f.Filename)
			if err != nil {
				return fmt.Errorf("creating form file %q: %w", f.Field, err)
			}
			if _, err := io.Copy(part, f.Data); err != nil {
				return fmt.Errorf("copying form file %q: %w", f.Field, err)
			}
		}

		if err := w.Close(); err != nil {
			return fmt.Errorf("closing multipart writer: %w", err)
		}

		opts.body = &buf
		opts.contentType = w.FormDataContentType()
		opts.json, opts.hasJSON = nil, false
		return nil
	}
}

// WithParams appends ordered query parameters.
func WithParams(params Params) RequestOption {
	return func(opts *callOpts) error {
		opts.params = append(opts.params, params...)
		return nil
	}
}

// WithQuery appends query parameters from m, ordered by key.
func WithQuery(m map[string]any) RequestOption {
	return func(opts *callOpts) error {
		opts.params = append(opts.params, mapParams(m)...)
		return nil
	}
}

// WithHeaders overlays headers on the configured set for this call.
func WithHeaders(headers http.Header) RequestOption {
	return func(opts *callOpts) error {
		if opts.headers == nil {
			opts.headers = make(http.Header, len(headers))
		}
		for k, v := range headers {
			opts.headers[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
		}
		return nil
	}
}

// WithCookies attaches the given cookies to the outgoing request.
func WithCookies(cookies ...*http.Cookie) RequestOption {
	return func(opts *callOpts) error {
		opts.cookies = append(opts.cookies, cookies...)
		return nil
	}
}

// WithIgnoreError returns rejected envelopes as results and suppresses
// every callback. Transport, timeout and status failures are still
// returned as errors.
func WithIgnoreError() RequestOption {
	return func(opts *callOpts) error {
		opts.ignoreError = true
		return nil
	}
}

// WithUnwrapData overrides [Config.ReturnData] for this call.
func WithUnwrapData(unwrap bool) RequestOption {
	return func(opts *callOpts) error {
		opts.unwrap = &unwrap
		return nil
	}
}

// WithRequestTimeout overrides [Config.Timeout] for this call.
func WithRequestTimeout(d time.Duration) RequestOption {
	return func(opts *callOpts) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		opts.timeout = &d
		return nil
	}
}

// WithErrorHandler replaces [Config.OnError] for this call.
func WithErrorHandler(fn ErrorHandler) RequestOption {
	return func(opts *callOpts) error {
		opts.onError = fn
		return nil
	}
}

// WithLogoutHandler replaces [Config.OnLogout] for this call.
func WithLogoutHandler(fn ErrorHandler) RequestOption {
	return func(opts *callOpts) error {
		opts.onLogout = fn
		return nil
	}
}

// WithSuccessHandler replaces [Config.OnSuccess] for this call.
func WithSuccessHandler(fn SuccessHandler) RequestOption {
	return func(opts *callOpts) error {
		opts.onSuccess = fn
		return nil
	}
}

// WithDestination decodes a JSON result into bodyTemplate.
// bodyTemplate must be a pointer.
func WithDestination[T any](bodyTemplate *T) RequestOption {
	return func(opts *callOpts) error {
		if bodyTemplate == nil {
			return errors.New("destination must not be nil")
		}
		opts.destination = bodyTemplate
		return nil
	}
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
