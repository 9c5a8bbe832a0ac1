package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// classify turns a raw response into a result or an error, in order:
// transport status, binary content type, JSON decode, envelope code.
func (c *Client) classify(ctx context.Context, cfg *Config, call *callOpts, resp *http.Response) (*Result, error) {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if isBlob(contentType, cfg.BlobContentTypes) {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading binary body: %w", err)
		}

		var code int
		if len(cfg.Codes.Success) > 0 {
			code = cfg.Codes.Success[0]
		}

		return &Result{
			Blob: &Blob{
				Data:     data,
				Filename: extractFilename(resp.Header.Get("Content-Disposition")),
				Code:     code,
				Response: resp,
			},
			Response: resp,
		}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &HTTPError{
			Kind:       KindDecode,
			Message:    err.Error(),
			Response:   resp,
			StatusCode: resp.StatusCode,
			Err:        err,
		}
	}

	payload := gjson.ParseBytes(raw)
	codeField := payload.Get(cfg.CodeKey)
	if !payload.IsObject() || !codeField.Exists() {
		// Unenveloped backend: hand the payload back untouched.
		return &Result{Body: raw, Response: resp}, nil
	}

	code, hasCode := envelopeCode(codeField)
	message := envelopeMessage(payload.Get(cfg.MessageKey))

	if hasCode && slices.Contains(cfg.Codes.Success, code) {
		if call.returnData(cfg) {
			if data := payload.Get(cfg.DataKey); data.Exists() {
				return &Result{Body: json.RawMessage(data.Raw), Response: resp}, nil
			}
		}

		onSuccess := cfg.OnSuccess
		if call.onSuccess != nil {
			onSuccess = call.onSuccess
		}
		if onSuccess != nil {
			onSuccess(ctx, raw)
		}

		return &Result{Body: raw, Response: resp}, nil
	}

	if call.ignoreError || (hasCode && slices.Contains(cfg.Codes.IgnoreError, code)) {
		return &Result{Body: raw, Response: resp}, nil
	}

	he := &HTTPError{
		Kind:       KindRejected,
		Message:    message,
		Code:       code,
		HasCode:    hasCode,
		Payload:    raw,
		Response:   resp,
		StatusCode: resp.StatusCode,
	}

	if hasCode && slices.Contains(cfg.Codes.Logout, code) {
		he.Kind = KindLogout
		if he.Message == "" {
			he.Message = "Unauthorized"
		}
		return nil, he
	}

	if he.Message == "" {
		he.Message = "Request failed"
	}
	return nil, he
}

// statusError builds the error for a non-2xx response, keeping a bounded
// prefix of the body.
func statusError(resp *http.Response) *HTTPError {
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrBodySize))
	if err != nil {
		b = []byte("unable to read body")
	}

	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = "Request failed"
	}

	return &HTTPError{
		Kind:       KindStatus,
		Message:    text,
		Payload:    b,
		Response:   resp,
		StatusCode: resp.StatusCode,
	}
}

func isBlob(contentType string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(contentType, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// envelopeCode reads an integral numeric code that fits in an int. Other
// JSON types and out of range numbers match no classification set.
func envelopeCode(v gjson.Result) (int, bool) {
	if v.Type != gjson.Number {
		return 0, false
	}
	if v.Num != math.Trunc(v.Num) {
		return 0, false
	}
	// float64(math.MaxInt) rounds up to 2^63 on 64-bit platforms.
	if v.Num >= float64(math.MaxInt) || v.Num < float64(math.MinInt) {
		return 0, false
	}
	return int(v.Num), true
}

// envelopeMessage returns the message text. Empty values (null, false,
// zero, "") yield "" so the caller falls back to its default text.
func envelopeMessage(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Null, gjson.False:
		return ""
	case gjson.Number:
		if v.Num == 0 {
			return ""
		}
		return v.Raw
	default:
		if !v.Exists() {
			return ""
		}
		return v.Raw
	}
}

var dispositionFilename = regexp.MustCompile(`filename[^;=\n]*=("[^"]*"|'[^']*'|[^;\n]*)`)

// extractFilename reads the file name from a Content-Disposition header.
// RFC 6266 values, including filename*, are parsed first; malformed headers
// fall back to a lenient pattern match.
func extractFilename(disposition string) string {
	if disposition == "" {
		return ""
	}

	var name string
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		name = params["filename"]
	}

	if name == "" {
		m := dispositionFilename.FindStringSubmatch(disposition)
		if len(m) < 2 {
			return ""
		}
		name = strings.NewReplacer(`"`, "", `'`, "").Replace(strings.TrimSpace(m[1]))
	}

	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}

	return name
}
