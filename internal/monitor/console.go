package monitor

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/BradenHooton/sentinel/internal/models"
)

// consoleHandler decorates a slog.Handler, recording a console interaction
// event for every record the host emits through it. The monitor's own
// logger writes to the undecorated base handler, so instrumentation lines
// never feed back into themselves.
type consoleHandler struct {
	inner  slog.Handler
	m      *Monitor
	active *atomic.Bool
}

// InstrumentLogger wraps the host's logging primitive and returns both the
// wrapped logger and a restore function that detaches the instrumentation.
// The monitor tracks the wrap and detaches it on Stop as well.
func (m *Monitor) InstrumentLogger(base *slog.Logger) (*slog.Logger, func()) {
	if !m.cfg.ConsoleInteraction {
		return base, func() {}
	}

	active := &atomic.Bool{}
	active.Store(true)
	restore := func() { active.Store(false) }

	m.mu.Lock()
	m.restores = append(m.restores, restore)
	m.mu.Unlock()

	handler := &consoleHandler{inner: base.Handler(), m: m, active: active}
	return slog.New(handler), restore
}

func (h *consoleHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.active.Load() {
		h.m.recordConsoleUsage(ctx, record.Level)
	}
	return h.inner.Handle(ctx, record)
}

func (h *consoleHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &consoleHandler{inner: h.inner.WithAttrs(attrs), m: h.m, active: h.active}
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	return &consoleHandler{inner: h.inner.WithGroup(name), m: h.m, active: h.active}
}

func (m *Monitor) recordConsoleUsage(ctx context.Context, level slog.Level) {
	m.mu.Lock()
	defer m.mu.Unlock()

	eventType := models.EventConsoleLogUsage
	severity := models.SeverityLow
	switch {
	case level >= slog.LevelError:
		eventType = models.EventConsoleErrorUsage
		severity = models.SeverityMedium
	case level >= slog.LevelWarn:
		eventType = models.EventConsoleWarnUsage
	}

	m.emit(ctx, eventType, severity, "", models.EventData{"level": level.String()})
}
