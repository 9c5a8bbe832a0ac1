package download

import (
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"time"
)

// Option configures [Save].
type Option func(*options) error

type options struct {
	checksum     *checksum
	progress     bool
	skipExisting bool
	clock        func() time.Time
}

func (o *options) now() time.Time {
	if o.clock != nil {
		return o.clock()
	}
	return time.Now()
}

// WithChecksum rejects data whose digest under a fresh newHash() (e.g.
// sha256.New) differs from the hex-encoded expected value. Nothing is
// written on a mismatch. The option may be reused across saves.
func WithChecksum(newHash func() hash.Hash, expected string) Option {
	return func(opts *options) error {
		if newHash == nil {
			return errors.New("hash constructor must not be nil")
		}
		if _, err := hex.DecodeString(expected); err != nil || expected == "" {
			return fmt.Errorf("expected checksum %q is not a hex digest", expected)
		}

		opts.checksum = &checksum{newHash: newHash, expected: expected}
		return nil
	}
}

// WithProgress logs write progress at most once per second and once on
// completion.
func WithProgress() Option {
	return func(opts *options) error {
		opts.progress = true
		return nil
	}
}

// WithSkipExisting returns the destination path untouched when a file
// already exists there.
func WithSkipExisting() Option {
	return func(opts *options) error {
		opts.skipExisting = true
		return nil
	}
}

// WithClock sets the time source used for fallback file names.
func WithClock(now func() time.Time) Option {
	return func(opts *options) error {
		if now == nil {
			return errors.New("clock must not be nil")
		}
		opts.clock = now
		return nil
	}
}
