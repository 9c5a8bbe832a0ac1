package download

import (
	"errors"
	"fmt"
)

var (
	ErrNoData            = errors.New("no data to save")
	ErrChecksumMismatch  = errors.New("checksum mismatch")
	ErrDownloadCancelled = errors.New("download cancelled")
)

// chunkSize bounds each write so cancellation and progress are observed
// while a large blob is flushed to disk.
const chunkSize = 32 << 10 // 32KB

// Error reports why a blob could not be saved under Filename.
type Error struct {
	Filename string
	Detail   string
	Err      error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("saving %s: %v", e.Filename, e.Err)
	}
	return fmt.Sprintf("saving %s: %v: %s", e.Filename, e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}
