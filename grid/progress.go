package grid

import (
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// progressReporter periodically logs the fraction of grid points completed,
// grounded in Consensys-go-corset's termio.Terminal.GetSize for sizing a
// text progress bar to the actual terminal width when attached to one.
type progressReporter struct {
	logger   *logrus.Logger
	total    int
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func newProgressReporter(logger *logrus.Logger, total int, interval time.Duration) *progressReporter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &progressReporter{logger: logger, total: total, interval: interval, stop: make(chan struct{}), done: make(chan struct{})}
}

// start launches the periodic flush goroutine; read is polled for the
// current completed count.
func (p *progressReporter) start(read func() int64) {
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
				p.flush(read())
			}
		}
	}()
}

func (p *progressReporter) flush(completed int64) {
	if p.total <= 0 {
		return
	}
	frac := float64(completed) / float64(p.total)
	width := barWidth()
	filled := int(frac * float64(width))
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("#", filled) + strings.Repeat("-", width-filled)
	p.logger.WithFields(logrus.Fields{
		"completed": completed,
		"total":     p.total,
	}).Infof("[%s] %.1f%%", bar, frac*100)
}

func (p *progressReporter) stopAndWait() {
	close(p.stop)
	<-p.done
}

// barWidth sizes the text progress bar to the attached terminal, falling
// back to a fixed width when stdout is not a terminal (e.g. under a CI
// runner or when output is redirected to a file).
func barWidth() int {
	const fallback = 40
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return fallback
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 10 {
		return fallback
	}
	if w > 80 {
		w = 80
	}
	return w - 10
}
