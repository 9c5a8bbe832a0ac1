package envelopetest

import (
	"context"
	"time"
)

type ctxKey int

const values ctxKey = iota + 1

// Values are shared across one handled request.
type Values struct {
	TraceID    string
	Now        time.Time
	StatusCode int
}

// SetStatusCode records the status written for the request.
func SetStatusCode(ctx context.Context, statusCode int) {
	v, ok := ctx.Value(values).(*Values)
	if !ok {
		return
	}

	v.StatusCode = statusCode
}

// GetValues retrieves the request Values, or a zero set outside a handler.
func GetValues(ctx context.Context) *Values {
	v, ok := ctx.Value(values).(*Values)
	if !ok {
		return &Values{Now: time.Now()}
	}

	return v
}

func setValues(ctx context.Context, v *Values) context.Context {
	return context.WithValue(ctx, values, v)
}
