// Package background provides the recurring-task abstraction used by the
// behavior monitor's polled probes (instrumentation-surface checks, memory
// sampling). Probes schedule work through an explicit Scheduler rather than
// holding raw timer handles, so the concurrency model stays testable.
package background

import (
	"context"
	"log/slog"
	"time"
)

// Clock abstracts time.Now so detection logic can run against a virtual
// clock in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// TaskFunc is one unit of recurring work.
type TaskFunc func(ctx context.Context)

// Scheduler runs a task on a fixed interval until its stop handle is
// called or the context is cancelled.
type Scheduler interface {
	Schedule(ctx context.Context, name string, interval time.Duration, fn TaskFunc) (stop func())
}

// TickerScheduler is the production Scheduler, one goroutine per task.
type TickerScheduler struct {
	logger *slog.Logger
}

// NewTickerScheduler creates a ticker-backed scheduler.
func NewTickerScheduler(logger *slog.Logger) *TickerScheduler {
	return &TickerScheduler{logger: logger}
}

// Schedule starts the task loop. The first run happens after one interval,
// not immediately. The returned stop function is idempotent-safe for a
// single caller and blocks nothing.
func (s *TickerScheduler) Schedule(ctx context.Context, name string, interval time.Duration, fn TaskFunc) func() {
	stopCh := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				fn(ctx)
			case <-stopCh:
				s.logger.Debug("background task stopped", slog.String("task", name))
				return
			case <-ctx.Done():
				s.logger.Debug("background task context cancelled", slog.String("task", name))
				return
			}
		}
	}()

	return func() { close(stopCh) }
}
