package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	// maxErrBodySize caps the amount of response body kept on an
	// [HTTPError] for a non-2xx status.
	maxErrBodySize = 4 << 10 // 4KB

	// DefaultContentType is set on outgoing requests that carry no Content-Type.
	DefaultContentType = "application/json;charset=UTF-8"

	DefaultCodeKey    = "code"
	DefaultDataKey    = "data"
	DefaultMessageKey = "message"
	DefaultMethod     = http.MethodGet
	DefaultTimeout    = 30 * time.Second
)

// DefaultBlobContentTypes are the Content-Type substrings that mark a
// response as binary.
var DefaultBlobContentTypes = []string{"stream", "excel", "download", "blob", "octet-stream"}

// ErrorHandler is notified of failed calls. It cannot alter the error.
type ErrorHandler func(ctx context.Context, err *HTTPError)

// SuccessHandler receives the full envelope of a successful call.
type SuccessHandler func(ctx context.Context, payload json.RawMessage)

// RequestInterceptor may inspect or mutate the outgoing request after the
// URL, headers and body are final and before it is sent.
type RequestInterceptor func(req *http.Request) error

// ResponseInterceptor transforms a classified success result before it is
// returned. It only runs for blob results and JSON object results.
type ResponseInterceptor func(ctx context.Context, res *Result) (*Result, error)

// Blob is the result of a response whose Content-Type matched one of the
// configured binary markers.
type Blob struct {
	Data     []byte
	Filename string
	// Code is the first configured success code.
	Code     int
	Response *http.Response
}

// Result is the outcome of a successful call. Exactly one of Body and Blob
// is set.
type Result struct {
	// Body is the full JSON payload, or the data field when the call
	// requested unwrapping.
	Body json.RawMessage
	Blob *Blob

	// Response is the raw transport response. Its body has been consumed.
	Response *http.Response
}

// IsBlob reports whether the result holds binary data.
func (r *Result) IsBlob() bool {
	return r != nil && r.Blob != nil
}

// Decode unmarshals the JSON body into v.
func (r *Result) Decode(v any) error {
	if r == nil {
		return errors.New("nil result")
	}
	if r.Blob != nil {
		return errors.New("cannot decode a blob result")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding result: %w", err)
	}
	return nil
}
