package lines

import (
	"context"
	"time"

	"github.com/LeoCommon/linkpm/internal/linkpm"
	"github.com/LeoCommon/linkpm/pkg/log"
	"go.uber.org/zap"
)

const DefaultPollInterval = 20 * time.Millisecond

// Watcher polls an active low line and reports every assertion. Neither
// backend can deliver edge interrupts to user space.
type Watcher struct {
	lines    linkpm.SignalLines
	line     linkpm.LineID
	interval time.Duration
	onAssert func()
}

func NewWatcher(lines linkpm.SignalLines, line linkpm.LineID, interval time.Duration, onAssert func()) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	return &Watcher{
		lines:    lines,
		line:     line,
		interval: interval,
		onAssert: onAssert,
	}
}

// Run blocks until ctx is done
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Start from the released level so an already asserted line fires once
	last := true
	failing := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		level, err := w.lines.Get(w.line)
		if err != nil {
			// Only log the first error of a streak
			if !failing {
				log.Error("could not poll signal line", zap.String("line", string(w.line)), zap.Error(err))
			}
			failing = true
			continue
		}
		failing = false

		if last && !level {
			w.onAssert()
		}
		last = level
	}
}
