// Package config loads fetcher client settings from a file and the
// environment. [Loader.Apply] merges the file into a client once;
// [Loader.Watch] keeps the file-managed fields of a running client in
// sync with the file, including keys that are later removed from it.
//
// Files may be YAML, JSON or TOML. Every key can be overridden by a
// FETCHER_ prefixed environment variable, e.g. FETCHER_BASEURL.
//
//	baseUrl: https://api.example.com
//	timeout: 10s
//	returnData: true
//	codes:
//	  success: [0]
//	  logout: [401]
//	headers:
//	  X-App: console
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/adamwoolhether/fetcher/client"
)

// ErrLoad wraps every failure to read, parse or validate a config file.
var ErrLoad = errors.New("loading config")

const envPrefix = "FETCHER"

// keys are bound to the environment so that env-only values unmarshal.
var keys = []string{
	"baseUrl", "timeout", "codeKey", "dataKey", "messageKey", "returnData",
	"defaultMethod", "blobContentTypes", "codes.success", "codes.logout",
	"codes.ignoreError",
}

// File is the on-disk shape of a client configuration. Unset fields leave
// the client's current value alone.
type File struct {
	BaseURL          string            `mapstructure:"baseUrl" validate:"omitempty,url"`
	Timeout          *time.Duration    `mapstructure:"timeout" validate:"omitempty,gte=0"`
	CodeKey          string            `mapstructure:"codeKey"`
	DataKey          string            `mapstructure:"dataKey"`
	MessageKey       string            `mapstructure:"messageKey"`
	ReturnData       *bool             `mapstructure:"returnData"`
	DefaultMethod    string            `mapstructure:"defaultMethod" validate:"omitempty,oneof=GET POST PUT DELETE PATCH HEAD OPTIONS get post put delete patch head options"`
	BlobContentTypes []string          `mapstructure:"blobContentTypes"`
	Codes            *Codes            `mapstructure:"codes"`
	Headers          map[string]string `mapstructure:"headers"`
}

// Codes mirrors [client.Codes]. When present it replaces all three sets.
type Codes struct {
	Success     []int `mapstructure:"success"`
	Logout      []int `mapstructure:"logout"`
	IgnoreError []int `mapstructure:"ignoreError"`
}

// Options converts the file into client configuration options.
func (f *File) Options() []client.ConfigOption {
	var opts []client.ConfigOption

	if f.BaseURL != "" {
		opts = append(opts, client.WithBaseURL(f.BaseURL))
	}
	if f.Timeout != nil {
		opts = append(opts, client.WithTimeout(*f.Timeout))
	}
	if f.CodeKey != "" {
		opts = append(opts, client.WithCodeKey(f.CodeKey))
	}
	if f.DataKey != "" {
		opts = append(opts, client.WithDataKey(f.DataKey))
	}
	if f.MessageKey != "" {
		opts = append(opts, client.WithMessageKey(f.MessageKey))
	}
	if f.ReturnData != nil {
		opts = append(opts, client.WithReturnData(*f.ReturnData))
	}
	if f.DefaultMethod != "" {
		opts = append(opts, client.WithDefaultMethod(f.DefaultMethod))
	}
	if len(f.BlobContentTypes) > 0 {
		opts = append(opts, client.WithBlobContentTypes(f.BlobContentTypes...))
	}
	if f.Codes != nil {
		opts = append(opts, client.WithCodes(client.Codes{
			Success:     f.Codes.Success,
			Logout:      f.Codes.Logout,
			IgnoreError: f.Codes.IgnoreError,
		}))
	}
	if len(f.Headers) > 0 {
		h := make(http.Header, len(f.Headers))
		for k, v := range f.Headers {
			h.Set(k, v)
		}
		opts = append(opts, client.WithStaticHeaders(h))
	}

	return opts
}

// resetOptions returns base values for every field the file leaves unset.
func (f *File) resetOptions(base client.Config) []client.ConfigOption {
	var opts []client.ConfigOption

	if f.BaseURL == "" {
		opts = append(opts, client.WithBaseURL(base.BaseURL))
	}
	if f.Timeout == nil {
		opts = append(opts, client.WithTimeout(base.Timeout))
	}
	if f.CodeKey == "" {
		opts = append(opts, client.WithCodeKey(base.CodeKey))
	}
	if f.DataKey == "" {
		opts = append(opts, client.WithDataKey(base.DataKey))
	}
	if f.MessageKey == "" {
		opts = append(opts, client.WithMessageKey(base.MessageKey))
	}
	if f.ReturnData == nil {
		opts = append(opts, client.WithReturnData(base.ReturnData))
	}
	if f.DefaultMethod == "" {
		opts = append(opts, client.WithDefaultMethod(base.DefaultMethod))
	}
	if len(f.BlobContentTypes) == 0 {
		opts = append(opts, client.WithBlobContentTypes(base.BlobContentTypes...))
	}
	if f.Codes == nil {
		opts = append(opts, client.WithCodes(base.Codes))
	}
	if len(f.Headers) == 0 {
		opts = append(opts, client.WithHeaderProvider(base.Headers))
	}

	return opts
}

// Loader reads a config file through viper.
type Loader struct {
	viper    *viper.Viper
	validate *validator.Validate
	logger   *slog.Logger
	path     string
}

type Option func(*Loader)

// WithLogger sets the logger used to report reloads.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithViper uses v instead of a fresh viper instance.
func WithViper(v *viper.Viper) Option {
	return func(l *Loader) {
		l.viper = v
	}
}

// New creates a Loader for path. The format is taken from the file
// extension. An empty path loads from the environment only.
func New(path string, opts ...Option) *Loader {
	l := &Loader{
		viper:    viper.New(),
		validate: validator.New(),
		logger:   slog.Default(),
		path:     path,
	}
	for _, opt := range opts {
		opt(l)
	}

	if path != "" {
		l.viper.SetConfigFile(path)
	}

	l.viper.SetEnvPrefix(envPrefix)
	l.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.viper.AutomaticEnv()
	for _, k := range keys {
		_ = l.viper.BindEnv(k)
	}

	return l
}

// Load reads, decodes and validates the file.
func (l *Loader) Load() (*File, error) {
	if l.path != "" {
		if err := l.viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: reading %s: %w", ErrLoad, l.path, err)
		}
	}

	var f File
	if err := l.viper.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("%w: parsing: %w", ErrLoad, err)
	}

	if err := l.validate.Struct(f); err != nil {
		return nil, fmt.Errorf("%w: validating: %w", ErrLoad, err)
	}

	return &f, nil
}

// Apply loads the file and merges it into c. A rejected file leaves c
// unchanged.
func (l *Loader) Apply(c *client.Client) error {
	f, err := l.Load()
	if err != nil {
		return err
	}

	if err := c.Configure(f.Options()...); err != nil {
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}

	return nil
}

// Watch applies the file to c and re-applies it whenever it changes on
// disk. Use it instead of Apply. The configuration c had when Watch was
// called is the baseline: a key removed from the file puts its field back
// to the baseline value. Fields the file never manages, such as callbacks
// and interceptors, are left alone. Failed reloads are logged and the
// previous configuration stays live.
func (l *Loader) Watch(c *client.Client) error {
	if l.path == "" {
		return fmt.Errorf("%w: no file to watch", ErrLoad)
	}

	base := c.Config()
	reload := func() error {
		f, err := l.Load()
		if err != nil {
			return err
		}

		opts := append(f.resetOptions(base), f.Options()...)
		if err := c.Configure(opts...); err != nil {
			return fmt.Errorf("%w: %w", ErrLoad, err)
		}

		return nil
	}

	if err := reload(); err != nil {
		return err
	}

	l.viper.OnConfigChange(func(e fsnotify.Event) {
		l.logger.Info("config change detected", "file", e.Name, "op", e.Op.String())

		if err := reload(); err != nil {
			l.logger.Error("failed to reload config after change", "error", err)
			return
		}

		l.logger.Info("config reloaded successfully", "file", e.Name)
	})

	l.viper.WatchConfig()

	return nil
}
