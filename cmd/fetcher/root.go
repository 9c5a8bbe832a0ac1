package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/adamwoolhether/fetcher/client"
	"github.com/adamwoolhether/fetcher/config"
)

// errReported marks a failure already printed to stderr.
var errReported = errors.New("reported")

type flags struct {
	configPath  string
	baseURL     string
	method      string
	data        string
	params      []string
	headers     []string
	returnData  bool
	ignoreError bool
	timeout     time.Duration
	out         string
	verbose     bool
	noColor     bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "fetcher [flags] <path>",
		Short: "Send a request to an enveloped JSON API",
		Long: `fetcher resolves <path> against the base URL, sends the request and
classifies the {code, data, message} envelope that comes back.

Examples:
  fetcher --base-url https://api.example.com /users --param page=2
  fetcher --config fetcher.yaml -X POST /users --data '{"name":"gopher"}'
  fetcher --config fetcher.yaml /reports/latest --out ./downloads`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0], &f, stdout, stderr)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.configPath, "config", "c", "", "Config file (yaml, json or toml)")
	fs.StringVar(&f.baseURL, "base-url", "", "Base URL, overrides the config file")
	fs.StringVarP(&f.method, "method", "X", "", "HTTP method, defaults to the configured method")
	fs.StringVarP(&f.data, "data", "d", "", "JSON payload; folded into the query for GET")
	fs.StringArrayVarP(&f.params, "param", "p", nil, "Query parameter key=value, repeatable and ordered")
	fs.StringArrayVarP(&f.headers, "header", "H", nil, "Header key=value, repeatable")
	fs.BoolVar(&f.returnData, "return-data", false, "Print only the envelope data field")
	fs.BoolVar(&f.ignoreError, "ignore-error", false, "Print rejected envelopes instead of failing")
	fs.DurationVarP(&f.timeout, "timeout", "t", 0, "Call timeout, overrides the config file")
	fs.StringVarP(&f.out, "out", "o", "", "Directory for binary responses; stdout when empty")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "Log request details to stderr")
	fs.BoolVar(&f.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func run(cmd *cobra.Command, path string, f *flags, stdout, stderr io.Writer) error {
	if f.noColor {
		color.NoColor = true
	}

	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	c, err := client.Build(client.WithLogger(logger), client.WithUserAgent("fetcher-cli"))
	if err != nil {
		return err
	}

	if f.configPath != "" {
		if err := config.New(f.configPath, config.WithLogger(logger)).Apply(c); err != nil {
			return err
		}
	}

	var overrides []client.ConfigOption
	if f.baseURL != "" {
		overrides = append(overrides, client.WithBaseURL(f.baseURL))
	}
	if f.timeout > 0 {
		overrides = append(overrides, client.WithTimeout(f.timeout))
	}
	if err := c.Configure(overrides...); err != nil {
		return err
	}

	opts, err := requestOptions(f)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	res, err := c.Request(ctx, path, opts...)
	if err != nil {
		printError(stderr, err)
		return errReported
	}

	if res.IsBlob() {
		if f.out == "" {
			_, err := stdout.Write(res.Blob.Data)
			return err
		}

		saved, err := c.DownloadFile(ctx, res.Blob, f.out)
		if err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(stdout, "saved %s (%d bytes)\n", saved, len(res.Blob.Data))
		return nil
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, res.Body, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(res.Body)
	}
	pretty.WriteByte('\n')

	_, err = pretty.WriteTo(stdout)
	return err
}

func requestOptions(f *flags) ([]client.RequestOption, error) {
	var opts []client.RequestOption

	if f.method != "" {
		opts = append(opts, client.WithMethod(f.method))
	}

	if f.data != "" {
		if !json.Valid([]byte(f.data)) {
			return nil, fmt.Errorf("--data is not valid JSON: %s", f.data)
		}
		opts = append(opts, client.WithJSON(json.RawMessage(f.data)))
	}

	if len(f.params) > 0 {
		var params client.Params
		for _, kv := range f.params {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return nil, fmt.Errorf("--param %q: expected key=value", kv)
			}
			params = params.Add(k, v)
		}
		opts = append(opts, client.WithParams(params))
	}

	if len(f.headers) > 0 {
		h := make(http.Header, len(f.headers))
		for _, kv := range f.headers {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return nil, fmt.Errorf("--header %q: expected key=value", kv)
			}
			h.Add(k, v)
		}
		opts = append(opts, client.WithHeaders(h))
	}

	if f.returnData {
		opts = append(opts, client.WithUnwrapData(true))
	}

	if f.ignoreError {
		opts = append(opts, client.WithIgnoreError())
	}

	return opts, nil
}

func printError(w io.Writer, err error) {
	he, ok := client.AsHTTPError(err)
	if !ok {
		color.New(color.FgRed).Fprintf(w, "error: %v\n", err)
		return
	}

	color.New(color.FgRed, color.Bold).Fprintf(w, "%s: %s\n", he.Kind, he.Message)
	if he.HasCode {
		color.New(color.FgYellow).Fprintf(w, "  code:   %d\n", he.Code)
	}
	if he.StatusCode != 0 {
		color.New(color.FgYellow).Fprintf(w, "  status: %d\n", he.StatusCode)
	}
	if len(he.Payload) > 0 {
		fmt.Fprintf(w, "  payload: %s\n", bytes.TrimSpace(he.Payload))
	}
}
