// Package fetcher exposes the client builder.
package fetcher

import (
	"github.com/adamwoolhether/fetcher/client"
)

// NewClient instantiates a new *client.Client with the provided options.
// Without options it uses [http.DefaultTransport] and the default
// envelope configuration.
func NewClient(opts ...client.Option) (*client.Client, error) {
	return client.Build(opts...)
}
