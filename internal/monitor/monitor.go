// Package monitor implements the passive behavior monitor: a collection of
// independently enableable probes mapping raw host signals (input cadence,
// focus changes, instrumentation surfaces, resource usage) to severity
// tagged security events. Probes never block; high and critical detections
// notify the host synchronously, everything else is logged silently.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/sentinel/internal/background"
	"github.com/BradenHooton/sentinel/internal/eventlog"
	"github.com/BradenHooton/sentinel/internal/models"
	pkglogger "github.com/BradenHooton/sentinel/pkg/logger"
)

// Fixed probe parameters. The configurable thresholds live in Config.
const (
	clickWindow       = 10 * time.Second
	keystrokeWindow   = 5 * time.Second
	navigationWindow  = 30 * time.Second
	focusFlipInterval = 100 * time.Millisecond

	devToolsGapPixels = 160
	devToolsPoll      = 500 * time.Millisecond

	memoryLimitBytes = 500 * 1024 * 1024
	memoryPoll       = 30 * time.Second

	urlTruncateLen = 100
)

// Config holds the tunable probe thresholds and switches. Merge host
// overrides over DefaultConfig.
type Config struct {
	RapidClicks          int // clicks per 10s window before tripping
	RapidNavigation      int // history pops per 30s window
	SuspiciousKeystrokes int // keydowns per 5s window

	DevToolsDetection  bool
	ConsoleInteraction bool
	NetworkMonitoring  bool
}

// DefaultConfig returns the standard probe thresholds.
func DefaultConfig() Config {
	return Config{
		RapidClicks:          20,
		RapidNavigation:      10,
		SuspiciousKeystrokes: 50,
		DevToolsDetection:    true,
		ConsoleInteraction:   true,
		NetworkMonitoring:    true,
	}
}

// ViewportReader exposes outer and inner viewport dimensions for the
// instrumentation-surface probe. Hosts without a windowed surface leave it
// nil and the probe is simply not installed.
type ViewportReader interface {
	OuterSize() (width, height int)
	InnerSize() (width, height int)
}

// HeapSampler returns current heap usage in bytes.
type HeapSampler func() uint64

func runtimeHeapSampler() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapAlloc
}

// Notifier receives (eventType, message) for high and critical detections.
type Notifier func(eventType, message string)

// ClipboardOp distinguishes clipboard signals.
type ClipboardOp string

const (
	ClipboardCopy  ClipboardOp = "copy"
	ClipboardPaste ClipboardOp = "paste"
)

// devToolsChords are keyboard shortcuts commonly used to open an
// instrumentation surface; flagged at low severity regardless of burst
// state.
var devToolsChords = map[string]struct{}{
	"f12":          {},
	"ctrl+shift+i": {},
	"ctrl+shift+j": {},
	"ctrl+shift+c": {},
	"ctrl+u":       {},
	"cmd+opt+i":    {},
	"cmd+opt+j":    {},
}

// Monitor observes host signals against configured thresholds and writes
// detections to the behavior event log.
type Monitor struct {
	mu       sync.Mutex
	log      *eventlog.Log
	cfg      Config
	clock    background.Clock
	sched    background.Scheduler
	logger   *slog.Logger
	security *pkglogger.SecurityLogger
	notify   Notifier
	viewport ViewportReader
	heap     HeapSampler

	clicks     *slidingWindow
	keystrokes *slidingWindow
	navigation *slidingWindow

	lastFocusFlip time.Time
	devToolsOpen  bool

	started  bool
	stops    []func()
	restores []func()
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithNotifier sets the host notification callback.
func WithNotifier(fn Notifier) Option {
	return func(m *Monitor) { m.notify = fn }
}

// WithClock overrides the clock, for tests.
func WithClock(clock background.Clock) Option {
	return func(m *Monitor) { m.clock = clock }
}

// WithScheduler overrides the scheduler, for tests.
func WithScheduler(sched background.Scheduler) Option {
	return func(m *Monitor) { m.sched = sched }
}

// WithViewport installs the instrumentation-surface probe's size source.
func WithViewport(v ViewportReader) Option {
	return func(m *Monitor) { m.viewport = v }
}

// WithHeapSampler overrides the memory probe's sampler, for tests.
func WithHeapSampler(fn HeapSampler) Option {
	return func(m *Monitor) { m.heap = fn }
}

// New creates a Monitor writing to the given behavior log.
func New(log *eventlog.Log, cfg Config, logger *slog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		log:      log,
		cfg:      cfg,
		clock:    background.SystemClock{},
		logger:   logger,
		security: pkglogger.NewSecurityLogger(logger),
		notify:   func(string, string) {},
		heap:     runtimeHeapSampler,
	}
	if m.sched == nil {
		m.sched = background.NewTickerScheduler(logger)
	}
	m.clicks = newSlidingWindow(cfg.RapidClicks+1, clickWindow)
	m.keystrokes = newSlidingWindow(cfg.SuspiciousKeystrokes+1, keystrokeWindow)
	m.navigation = newSlidingWindow(cfg.RapidNavigation+1, navigationWindow)

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start attaches the periodic probes. Signal methods work regardless, but
// polled probes only run between Start and Stop.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return errors.New("monitor already started")
	}
	m.started = true

	if m.cfg.DevToolsDetection && m.viewport != nil {
		stop := m.sched.Schedule(ctx, "devtools_probe", devToolsPoll, m.pollDevTools)
		m.stops = append(m.stops, stop)
	}
	if m.heap != nil {
		stop := m.sched.Schedule(ctx, "memory_probe", memoryPoll, m.pollMemory)
		m.stops = append(m.stops, stop)
	}

	m.logger.Info("behavior monitor started",
		slog.Bool("devtools_detection", m.cfg.DevToolsDetection && m.viewport != nil),
		slog.Bool("console_interaction", m.cfg.ConsoleInteraction),
		slog.Bool("network_monitoring", m.cfg.NetworkMonitoring),
	)
	return nil
}

// Stop cancels every scheduled probe and restores every wrapped primitive.
// Partial teardown is a leak, not a best-effort cleanup: wrappers compound
// if the monitor is started more than once per process lifetime.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return
	}
	for _, stop := range m.stops {
		stop()
	}
	for _, restore := range m.restores {
		restore()
	}
	m.stops = nil
	m.restores = nil
	m.started = false

	m.logger.Info("behavior monitor stopped")
}

// RecordClick registers a pointer click signal.
func (m *Monitor) RecordClick(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if count := m.clicks.observe(now); count > m.cfg.RapidClicks {
		m.clicks.reset()
		m.emit(ctx, models.EventRapidClicking, models.SeverityMedium,
			fmt.Sprintf("Rapid clicking detected (%d clicks in %s)", count, clickWindow),
			models.EventData{"clicks": count, "window_seconds": int(clickWindow.Seconds())})
	}
}

// RecordKeystroke registers a keydown signal. Known instrumentation
// shortcut chords are flagged regardless of burst state.
func (m *Monitor) RecordKeystroke(ctx context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()

	if _, ok := devToolsChords[strings.ToLower(key)]; ok {
		m.emit(ctx, models.EventDevToolsShortcut, models.SeverityLow,
			"Developer tools shortcut pressed",
			models.EventData{"key": strings.ToLower(key)})
	}

	if count := m.keystrokes.observe(now); count > m.cfg.SuspiciousKeystrokes {
		m.keystrokes.reset()
		m.emit(ctx, models.EventSuspiciousKeystrokes, models.SeverityHigh,
			fmt.Sprintf("Suspicious keystroke burst (%d keys in %s)", count, keystrokeWindow),
			models.EventData{"keystrokes": count, "window_seconds": int(keystrokeWindow.Seconds())})
	}
}

// RecordNavigation registers a history pop signal.
func (m *Monitor) RecordNavigation(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if count := m.navigation.observe(now); count > m.cfg.RapidNavigation {
		m.navigation.reset()
		m.emit(ctx, models.EventRapidNavigation, models.SeverityMedium,
			fmt.Sprintf("Rapid navigation detected (%d transitions in %s)", count, navigationWindow),
			models.EventData{"transitions": count, "window_seconds": int(navigationWindow.Seconds())})
	}
}

// RecordVisibilityChange registers a focus/visibility transition. The
// transition itself is low severity; pathologically fast consecutive flips
// are flagged at medium.
func (m *Monitor) RecordVisibilityChange(ctx context.Context, visible bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()

	eventType := models.EventWindowLostFocus
	if visible {
		eventType = models.EventWindowGainedFocus
	}
	m.emit(ctx, eventType, models.SeverityLow, "", models.EventData{"visible": visible})

	if !m.lastFocusFlip.IsZero() && now.Sub(m.lastFocusFlip) < focusFlipInterval {
		m.emit(ctx, models.EventRapidFocusChanges, models.SeverityMedium,
			"Abnormally fast focus transitions",
			models.EventData{"interval_ms": now.Sub(m.lastFocusFlip).Milliseconds()})
	}
	m.lastFocusFlip = now
}

// RecordContextMenu registers a context-menu attempt. The returned value is
// always true: the host should suppress the default action.
func (m *Monitor) RecordContextMenu(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.emit(ctx, models.EventContextMenuAttempt, models.SeverityLow, "", nil)
	return true
}

// RecordClipboard registers a clipboard signal.
func (m *Monitor) RecordClipboard(ctx context.Context, op ClipboardOp) {
	m.mu.Lock()
	defer m.mu.Unlock()

	eventType := models.EventClipboardCopy
	if op == ClipboardPaste {
		eventType = models.EventClipboardPaste
	}
	m.emit(ctx, eventType, models.SeverityLow, "", models.EventData{"operation": string(op)})
}

// pollDevTools checks the outer-vs-inner viewport delta. Edge-triggered:
// one opened event per transition, a matching closed event when the
// condition clears.
func (m *Monitor) pollDevTools(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	outerW, outerH := m.viewport.OuterSize()
	innerW, innerH := m.viewport.InnerSize()
	open := outerW-innerW > devToolsGapPixels || outerH-innerH > devToolsGapPixels

	switch {
	case open && !m.devToolsOpen:
		m.devToolsOpen = true
		m.emit(ctx, models.EventDevToolsOpened, models.SeverityMedium,
			"Developer tools appear to be open",
			models.EventData{"width_gap": outerW - innerW, "height_gap": outerH - innerH})
	case !open && m.devToolsOpen:
		m.devToolsOpen = false
		m.emit(ctx, models.EventDevToolsClosed, models.SeverityLow, "", nil)
	}
}

// pollMemory samples heap usage against the fixed limit.
func (m *Monitor) pollMemory(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	used := m.heap()
	if used > memoryLimitBytes {
		m.emit(ctx, models.EventHighMemoryUsage, models.SeverityMedium,
			fmt.Sprintf("High memory usage: %d MB", used/(1024*1024)),
			models.EventData{"heap_bytes": used})
	}
}

// GetSecurityEvents returns behavior events from the trailing hoursBack
// window, oldest first.
func (m *Monitor) GetSecurityEvents(ctx context.Context, hoursBack int) []models.SecurityEvent {
	cutoff := m.clock.Now().Add(-time.Duration(hoursBack) * time.Hour)
	return m.log.EventsSince(ctx, cutoff)
}

// ClearSecurityEvents purges the behavior log.
func (m *Monitor) ClearSecurityEvents(ctx context.Context) {
	m.log.Clear(ctx)
}

// ExportSecurityLog serializes the behavior log for offline analysis.
func (m *Monitor) ExportSecurityLog(ctx context.Context) ([]byte, error) {
	return m.log.Export(ctx)
}

// emit appends a detection to the behavior log and notifies the host when
// the severity warrants it. Caller holds the monitor mutex.
func (m *Monitor) emit(ctx context.Context, eventType string, severity models.Severity, message string, data models.EventData) {
	m.log.Append(ctx, models.NewSecurityEvent(eventType, severity, m.clock.Now(), data))
	m.security.LogDetection(eventType, severity, data)

	if severity.Notifiable() {
		if message == "" {
			message = eventType
		}
		m.notify(eventType, message)
	}
}
