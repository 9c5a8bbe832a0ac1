package client

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"
)

// ErrInvalidConfig is returned by [Build] and [Client.Configure] when the
// resulting configuration is rejected.
var ErrInvalidConfig = errors.New("invalid config")

// Codes holds the envelope code classification sets. The sets are disjoint
// by convention only.
type Codes struct {
	Success     []int `json:"success"`
	Logout      []int `json:"logout"`
	IgnoreError []int `json:"ignoreError"`
}

// Config is the live configuration of a [Client]. Callers read it through
// [Client.Config] and change it through [Client.Configure].
type Config struct {
	BaseURL          string         `json:"baseUrl" validate:"omitempty,url"`
	BlobContentTypes []string       `json:"blobContentTypes" validate:"dive,required"`
	Headers          HeaderProvider `json:"-"`

	// CodeKey, DataKey and MessageKey name the envelope fields. They are
	// gjson paths, so "meta.code" addresses a nested field.
	CodeKey    string `json:"codeKey" validate:"required"`
	DataKey    string `json:"dataKey" validate:"required"`
	MessageKey string `json:"messageKey" validate:"required"`

	ReturnData    bool          `json:"returnData"`
	DefaultMethod string        `json:"defaultMethod" validate:"required,oneof=GET POST PUT DELETE PATCH HEAD OPTIONS"`
	Timeout       time.Duration `json:"timeout" validate:"gte=0"`
	Codes         Codes         `json:"codes"`

	OnError             ErrorHandler        `json:"-"`
	OnLogout            ErrorHandler        `json:"-"`
	OnSuccess           SuccessHandler      `json:"-"`
	RequestInterceptor  RequestInterceptor  `json:"-"`
	ResponseInterceptor ResponseInterceptor `json:"-"`
}

func defaultConfig() Config {
	return Config{
		BlobContentTypes: slices.Clone(DefaultBlobContentTypes),
		CodeKey:          DefaultCodeKey,
		DataKey:          DefaultDataKey,
		MessageKey:       DefaultMessageKey,
		DefaultMethod:    DefaultMethod,
		Timeout:          DefaultTimeout,
		Codes: Codes{
			Success: []int{http.StatusOK},
			Logout:  []int{http.StatusUnauthorized, http.StatusForbidden},
		},
	}
}

// ConfigOption replaces one top-level field of a [Config]. Nested values
// such as [Codes] are replaced wholesale.
type ConfigOption func(*Config) error

// apply runs opts against a copy of base and validates the result.
func (cfg Config) apply(opts ...ConfigOption) (Config, error) {
	for i, opt := range opts {
		if opt == nil {
			return Config{}, fmt.Errorf("%w: option %d is nil", ErrInvalidConfig, i)
		}
		if err := opt(&cfg); err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return cfg, nil
}

// WithBaseURL sets the prefix used for relative paths.
func WithBaseURL(baseURL string) ConfigOption {
	return func(c *Config) error {
		c.BaseURL = baseURL
		return nil
	}
}

// WithBlobContentTypes replaces the Content-Type substrings that mark a
// binary response. Markers are matched case-insensitively.
func WithBlobContentTypes(markers ...string) ConfigOption {
	return func(c *Config) error {
		lowered := make([]string, len(markers))
		for i, m := range markers {
			lowered[i] = strings.ToLower(m)
		}
		c.BlobContentTypes = lowered
		return nil
	}
}

// WithHeaderProvider sets the source of the configured headers.
func WithHeaderProvider(p HeaderProvider) ConfigOption {
	return func(c *Config) error {
		c.Headers = p
		return nil
	}
}

// WithStaticHeaders sets a constant configured header set.
func WithStaticHeaders(h http.Header) ConfigOption {
	return WithHeaderProvider(StaticHeaders(h.Clone()))
}

// WithHeaderFunc sets a producer that is invoked on every request.
func WithHeaderFunc(fn HeaderFunc) ConfigOption {
	return func(c *Config) error {
		if fn == nil {
			return errors.New("header func must not be nil")
		}
		c.Headers = fn
		return nil
	}
}

// WithCodeKey sets the gjson path of the envelope code field.
func WithCodeKey(key string) ConfigOption {
	return func(c *Config) error {
		c.CodeKey = key
		return nil
	}
}

// WithDataKey sets the gjson path of the field returned when a call
// unwraps data.
func WithDataKey(key string) ConfigOption {
	return func(c *Config) error {
		c.DataKey = key
		return nil
	}
}

// WithMessageKey sets the gjson path of the server message used as the
// error text of rejected envelopes.
func WithMessageKey(key string) ConfigOption {
	return func(c *Config) error {
		c.MessageKey = key
		return nil
	}
}

// WithReturnData sets whether successful envelopes are unwrapped to their
// data field by default.
func WithReturnData(returnData bool) ConfigOption {
	return func(c *Config) error {
		c.ReturnData = returnData
		return nil
	}
}

// WithDefaultMethod sets the method used when a call does not name one.
func WithDefaultMethod(method string) ConfigOption {
	return func(c *Config) error {
		c.DefaultMethod = strings.ToUpper(method)
		return nil
	}
}

// WithTimeout sets the default per-call deadline. Zero disables it.
func WithTimeout(d time.Duration) ConfigOption {
	return func(c *Config) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		c.Timeout = d
		return nil
	}
}

// WithCodes replaces all three classification sets.
func WithCodes(codes Codes) ConfigOption {
	return func(c *Config) error {
		c.Codes = Codes{
			Success:     slices.Clone(codes.Success),
			Logout:      slices.Clone(codes.Logout),
			IgnoreError: slices.Clone(codes.IgnoreError),
		}
		return nil
	}
}

// WithOnError sets the callback notified of every failed call that does
// not use [WithIgnoreError]. A nil fn clears it.
func WithOnError(fn ErrorHandler) ConfigOption {
	return func(c *Config) error {
		c.OnError = fn
		return nil
	}
}

// WithOnLogout sets the callback notified, before OnError, when a
// rejected envelope carries a logout code. A nil fn clears it.
func WithOnLogout(fn ErrorHandler) ConfigOption {
	return func(c *Config) error {
		c.OnLogout = fn
		return nil
	}
}

// WithOnSuccess sets the callback that receives the full envelope of a
// successful call returning the whole payload. A nil fn clears it.
func WithOnSuccess(fn SuccessHandler) ConfigOption {
	return func(c *Config) error {
		c.OnSuccess = fn
		return nil
	}
}

// WithRequestInterceptor sets the hook run on each outgoing request once
// its URL, headers and body are final. An error aborts the call.
func WithRequestInterceptor(fn RequestInterceptor) ConfigOption {
	return func(c *Config) error {
		c.RequestInterceptor = fn
		return nil
	}
}

// WithResponseInterceptor sets the hook that may replace a successful
// blob or JSON object result. An error fails the call.
func WithResponseInterceptor(fn ResponseInterceptor) ConfigOption {
	return func(c *Config) error {
		c.ResponseInterceptor = fn
		return nil
	}
}
