package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Save writes data into dir under filename and returns the final path.
// Only the base of filename is used; an empty name becomes
// "download-<unix ms>". A configured checksum is verified before anything
// touches the disk. The bytes land in a temp file next to the destination
// which is renamed into place on success and removed on any failure.
func Save(ctx context.Context, data []byte, filename, dir string, logger *slog.Logger, optFns ...Option) (string, error) {
	if data == nil {
		return "", ErrNoData
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return "", fmt.Errorf("applying option: %w", err)
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	name := Filename(filename, opts.now())

	if opts.checksum != nil {
		if actual, ok := opts.checksum.sum(data); !ok {
			return "", &Error{
				Filename: name,
				Detail:   fmt.Sprintf("expected %s, got %s", opts.checksum.expected, actual),
				Err:      ErrChecksumMismatch,
			}
		}
	}

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}

	destPath := filepath.Join(dir, name)

	if opts.skipExisting {
		if _, err := os.Stat(destPath); err == nil {
			logger.Info("skipping existing file", "path", destPath)
			return destPath, nil
		}
	}

	var report func(int)
	if opts.progress {
		report = newProgress(logger, name, len(data)).report
	}

	if err := write(ctx, data, destPath, logger, report); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", &Error{Filename: name, Err: fmt.Errorf("%w: %w", ErrDownloadCancelled, err)}
		}
		return "", err
	}

	logger.Debug("file saved", "path", destPath, "bytes", len(data))

	return destPath, nil
}

// Filename returns the on-disk name for a download: the base of name, or
// a timestamped fallback when name carries nothing usable.
func Filename(name string, now time.Time) string {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." || base == "" {
		return "download-" + strconv.FormatInt(now.UnixMilli(), 10)
	}
	return base
}

func write(ctx context.Context, data []byte, destPath string, logger *slog.Logger, report func(int)) error {
	file, err := os.CreateTemp(filepath.Dir(destPath), ".fetcher-dl-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	var successful bool
	defer func() {
		if err := file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			logger.Error("defer closing temp file", "error", err)
		}
		if !successful {
			if err := os.Remove(file.Name()); err != nil {
				logger.Error("failed to remove temp file", "error", err)
			}
		}
	}()

	if err := writeChunks(ctx, file, data, report); err != nil {
		return err
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(file.Name(), destPath); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	successful = true

	return nil
}

// writeChunks writes data in chunkSize pieces, stopping once ctx ends.
func writeChunks(ctx context.Context, w io.Writer, data []byte, report func(int)) error {
	written := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(written+chunkSize, len(data))
		n, err := w.Write(data[written:end])
		written += n
		if err != nil {
			return fmt.Errorf("writing temp file: %w", err)
		}

		if report != nil {
			report(written)
		}

		if written == len(data) {
			return nil
		}
	}
}
