package client

import (
	"hash"
	"time"

	"github.com/adamwoolhether/fetcher/client/download"
)

type (
	// DownloadOption configures [Client.DownloadFile].
	DownloadOption = download.Option

	// DownloadError names the file a save failed for and wraps the cause.
	DownloadError = download.Error
)

var (
	// ErrNoData is returned when there is no blob to save.
	ErrNoData = download.ErrNoData

	// ErrChecksumMismatch indicates the file checksum did not match the expected value.
	ErrChecksumMismatch = download.ErrChecksumMismatch

	// ErrDownloadCancelled indicates the save was cancelled via context.
	ErrDownloadCancelled = download.ErrDownloadCancelled
)

// WithChecksum refuses to save a blob whose digest under newHash (e.g.
// sha256.New) differs from the hex-encoded expected value.
func WithChecksum(newHash func() hash.Hash, expected string) DownloadOption {
	return download.WithChecksum(newHash, expected)
}

// WithProgress enables periodic progress logging.
func WithProgress() DownloadOption { return download.WithProgress() }

// WithSkipExisting returns the existing path without writing when the
// destination file already exists.
func WithSkipExisting() DownloadOption { return download.WithSkipExisting() }

// WithDownloadClock sets the time source for fallback file names.
func WithDownloadClock(now func() time.Time) DownloadOption { return download.WithClock(now) }
