package envelopetest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"
)

// Envelope is the response shape the fetcher client classifies.
type Envelope struct {
	Code    any    `json:"code"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// RespondJSON writes data as JSON with the given status code.
func RespondJSON(ctx context.Context, w http.ResponseWriter, statusCode int, data any) error {
	SetStatusCode(ctx, statusCode)

	if statusCode == http.StatusNoContent {
		w.WriteHeader(statusCode)
		return nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if _, err = w.Write(jsonData); err != nil {
		return err
	}

	return nil
}

// RespondEnvelope writes a 200 response carrying an envelope.
func RespondEnvelope(ctx context.Context, w http.ResponseWriter, code any, data any, message string) error {
	return RespondJSON(ctx, w, http.StatusOK, Envelope{Code: code, Data: data, Message: message})
}

// RespondBlob writes data as an attachment. An empty filename omits the
// Content-Disposition header.
func RespondBlob(ctx context.Context, w http.ResponseWriter, contentType, filename string, data []byte) error {
	SetStatusCode(ctx, http.StatusOK)

	w.Header().Set("Content-Type", contentType)
	if filename != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	}
	w.WriteHeader(http.StatusOK)

	_, err := w.Write(data)
	return err
}

// RespondError writes a plain-text transport error.
func RespondError(ctx context.Context, w http.ResponseWriter, statusCode int, msg string) error {
	SetStatusCode(ctx, statusCode)
	http.Error(w, msg, statusCode)
	return nil
}

// Reply answers every request with the same envelope.
func Reply(code any, data any, message string) Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return RespondEnvelope(ctx, w, code, data, message)
	}
}

// Raw answers with body verbatim as JSON, for payloads that are not
// envelopes or not valid JSON.
func Raw(body string) Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		SetStatusCode(ctx, http.StatusOK)
		w.Header().Set("Content-Type", "application/json")
		_, err := io.WriteString(w, body)
		return err
	}
}

// File answers with a binary attachment.
func File(contentType, filename string, data []byte) Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return RespondBlob(ctx, w, contentType, filename, data)
	}
}

// Status answers with a bare transport status.
func Status(statusCode int) Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return RespondError(ctx, w, statusCode, http.StatusText(statusCode))
	}
}

// Echoed is the data field written by [Echo].
type Echoed struct {
	Method      string `json:"method"`
	Query       string `json:"query"`
	ContentType string `json:"contentType"`
	Body        string `json:"body"`
}

// Echo answers with a success envelope describing the request.
func Echo(code any) Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return fmt.Errorf("reading body: %w", err)
		}

		return RespondEnvelope(ctx, w, code, Echoed{
			Method:      r.Method,
			Query:       r.URL.RawQuery,
			ContentType: r.Header.Get("Content-Type"),
			Body:        string(body),
		}, "")
	}
}

// Delay holds the request for d, or until the client goes away, before
// calling next.
func Delay(d time.Duration, next Handler) Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		t := time.NewTimer(d)
		defer t.Stop()

		select {
		case <-t.C:
		case <-ctx.Done():
			return nil
		}

		return next(ctx, w, r)
	}
}
