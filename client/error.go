package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
)

// Kind classifies the failure carried by an [HTTPError].
type Kind int

const (
	// KindTransport is a network level failure (DNS, refused connection, TLS,
	// a cancelled caller context) or a failure preparing the request.
	KindTransport Kind = iota
	// KindTimeout means the call deadline elapsed before headers arrived.
	KindTimeout
	// KindStatus is a non-2xx transport status. No classification is attempted.
	KindStatus
	// KindDecode means the response body was not valid JSON.
	KindDecode
	// KindRejected is a decoded envelope whose code is not a success code.
	KindRejected
	// KindLogout is a rejected envelope whose code is in the logout set.
	KindLogout
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindTimeout:
		return "timeout"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	case KindRejected:
		return "rejected"
	case KindLogout:
		return "logout"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	// ErrTransport is matched by errors of [KindTransport].
	ErrTransport = errors.New("transport failure")
	// ErrTimeout is matched by errors of [KindTimeout]. It is also the
	// cancellation cause recorded on the call context when the deadline fires.
	ErrTimeout = errors.New("request timeout")
	// ErrUnexpectedStatusCode is matched by errors of [KindStatus].
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	// ErrDecode is matched by errors of [KindDecode].
	ErrDecode = errors.New("decoding response")
	// ErrRejected is matched by errors of [KindRejected] and [KindLogout].
	ErrRejected = errors.New("request rejected by server")
	// ErrLogout is matched by errors of [KindLogout].
	ErrLogout = errors.New("session expired")
)

// HTTPError is the single error type returned by [Client.Request].
// It is built by the client and never modified afterwards.
type HTTPError struct {
	Kind    Kind
	Message string

	// Code is the server reported envelope code, valid when HasCode is set.
	// It is distinct from StatusCode, the transport status.
	Code    int
	HasCode bool

	// Payload is the decoded server payload for rejected envelopes, or a
	// bounded prefix of the body for non-2xx responses.
	Payload json.RawMessage

	// Response is the raw transport response when one was received.
	// Its body has already been consumed.
	Response   *http.Response
	StatusCode int

	Err error
}

func (e *HTTPError) Error() string {
	switch {
	case e.HasCode:
		return fmt.Sprintf("%s: %s (code %d)", e.Kind, e.Message, e.Code)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.Message, e.StatusCode)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

// Unwrap exposes both the kind sentinel and the underlying cause, so
// errors.Is works against [ErrTimeout], [ErrLogout], context.Canceled, etc.
func (e *HTTPError) Unwrap() []error {
	errs := []error{e.sentinel()}
	if e.Kind == KindLogout {
		errs = append(errs, ErrRejected)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (e *HTTPError) sentinel() error {
	switch e.Kind {
	case KindTimeout:
		return ErrTimeout
	case KindStatus:
		return ErrUnexpectedStatusCode
	case KindDecode:
		return ErrDecode
	case KindRejected:
		return ErrRejected
	case KindLogout:
		return ErrLogout
	default:
		return ErrTransport
	}
}

// AsHTTPError reports whether err carries an [*HTTPError] and returns it.
func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

// normalize passes *HTTPError values through and wraps everything else as a
// transport failure carrying the underlying message and no code.
func normalize(err error) *HTTPError {
	if he, ok := AsHTTPError(err); ok {
		return he
	}

	msg := "Unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}

	return &HTTPError{
		Kind:    KindTransport,
		Message: msg,
		Err:     err,
	}
}

// handleError normalizes err and decides who gets notified. It always
// returns the normalized error: callbacks never change the outcome of a call.
func handleError(ctx context.Context, cfg *Config, call *callOpts, err error) *HTTPError {
	he := normalize(err)

	if call.ignoreError {
		return he
	}

	if he.HasCode && slices.Contains(cfg.Codes.Logout, he.Code) {
		onLogout := cfg.OnLogout
		if call.onLogout != nil {
			onLogout = call.onLogout
		}
		if onLogout != nil {
			onLogout(ctx, he)
		}
	}

	onError := cfg.OnError
	if call.onError != nil {
		onError = call.onError
	}
	if onError != nil {
		onError(ctx, he)
	}

	return he
}
