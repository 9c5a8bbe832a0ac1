package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// cancelToken scopes one call. Cancel may be triggered by any writer, today
// only the deadline timer; the first cause wins.
type cancelToken struct {
	ctx    context.Context
	cancel context.CancelCauseFunc

	mu    sync.Mutex
	timer *time.Timer
}

func newCancelToken(parent context.Context) *cancelToken {
	ctx, cancel := context.WithCancelCause(parent)
	return &cancelToken{ctx: ctx, cancel: cancel}
}

// Context returns the context the transport call runs under.
func (t *cancelToken) Context() context.Context { return t.ctx }

// Cancel aborts the call with cause.
func (t *cancelToken) Cancel(cause error) { t.cancel(cause) }

// TimedOut reports whether the deadline timer cancelled the call.
func (t *cancelToken) TimedOut() bool {
	return errors.Is(context.Cause(t.ctx), ErrTimeout)
}

// arm starts the deadline timer. A non-positive d leaves the call unbounded.
func (t *cancelToken) arm(d time.Duration) {
	if d <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.timer = time.AfterFunc(d, func() { t.Cancel(ErrTimeout) })
}

// disarm stops the deadline timer if it has not fired.
func (t *cancelToken) disarm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// release stops the timer and cancels the token. It is safe to call more
// than once.
func (t *cancelToken) release() {
	t.disarm()
	t.cancel(context.Canceled)
}

// execute sends req, which must be bound to tok's context. The deadline
// timer armed by the caller is stopped as soon as response headers arrive
// or the call fails. Reading the body stays bound to tok until the caller
// releases it.
func (c *Client) execute(tok *cancelToken, req *http.Request, timeout time.Duration) (*http.Response, error) {
	resp, err := c.c.Do(req)
	tok.disarm()

	if err != nil {
		if tok.TimedOut() {
			return nil, timeoutError(timeout, err)
		}

		return nil, fmt.Errorf("exec http do: %w", err)
	}

	return resp, nil
}

// timeoutError carries transport status 408 and no server payload.
func timeoutError(timeout time.Duration, cause error) *HTTPError {
	return &HTTPError{
		Kind:       KindTimeout,
		Message:    fmt.Sprintf("Request timeout after %dms", timeout.Milliseconds()),
		StatusCode: http.StatusRequestTimeout,
		Err:        cause,
	}
}
