package download

import (
	"fmt"
	"log/slog"
	"time"
)

// progress logs how much of a blob has been flushed, at most once per
// second and always once when the write completes.
type progress struct {
	logger *slog.Logger
	name   string
	total  int
	start  time.Time
	last   time.Time
}

func newProgress(logger *slog.Logger, name string, total int) *progress {
	now := time.Now()
	return &progress{logger: logger, name: name, total: total, start: now, last: now}
}

func (p *progress) report(written int) {
	done := written == p.total
	if !done && time.Since(p.last) < time.Second {
		return
	}
	p.last = time.Now()

	msg := "saving blob"
	if done {
		msg = "blob saved"
	}

	pct := 100.0
	if p.total > 0 {
		pct = float64(written) / float64(p.total) * 100
	}

	p.logger.Info(msg,
		"file", p.name,
		"progress", fmt.Sprintf("%.1f%%", pct),
		"written", written,
		"total", p.total,
		"elapsed", time.Since(p.start).Round(time.Millisecond),
	)
}
