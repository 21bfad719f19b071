package monitor_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/sentinel/internal/background"
	"github.com/BradenHooton/sentinel/internal/eventlog"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/monitor"
	"github.com/BradenHooton/sentinel/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClock is a settable clock for probe timing tests
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// manualScheduler captures scheduled tasks so tests drive polls directly
type manualScheduler struct {
	mu    sync.Mutex
	tasks map[string]background.TaskFunc
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{tasks: make(map[string]background.TaskFunc)}
}

func (s *manualScheduler) Schedule(_ context.Context, name string, _ time.Duration, fn background.TaskFunc) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[name] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.tasks, name)
	}
}

func (s *manualScheduler) Run(ctx context.Context, name string) bool {
	s.mu.Lock()
	fn, ok := s.tasks[name]
	s.mu.Unlock()
	if ok {
		fn(ctx)
	}
	return ok
}

// fakeViewport reports configurable outer/inner dimensions
type fakeViewport struct {
	mu             sync.Mutex
	outerW, outerH int
	innerW, innerH int
}

func (v *fakeViewport) OuterSize() (int, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.outerW, v.outerH
}

func (v *fakeViewport) InnerSize() (int, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.innerW, v.innerH
}

func (v *fakeViewport) set(outerW, outerH, innerW, innerH int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.outerW, v.outerH = outerW, outerH
	v.innerW, v.innerH = innerW, innerH
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestMonitor(t *testing.T, opts ...monitor.Option) (*monitor.Monitor, *eventlog.Log, *mockClock) {
	t.Helper()

	log := eventlog.NewBehaviorLog(store.NewMemory(), discardLogger())
	clock := newMockClock()
	opts = append([]monitor.Option{monitor.WithClock(clock)}, opts...)
	m := monitor.New(log, monitor.DefaultConfig(), discardLogger(), opts...)
	return m, log, clock
}

func eventsOfType(events []models.SecurityEvent, eventType string) []models.SecurityEvent {
	var out []models.SecurityEvent
	for _, event := range events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

func TestMonitorRapidClickingTripsOncePerBurst(t *testing.T) {
	m, log, clock := newTestMonitor(t)
	ctx := context.Background()

	// 21 clicks inside the window trips the detector exactly once.
	for i := 0; i < 21; i++ {
		m.RecordClick(ctx)
		clock.Advance(100 * time.Millisecond)
	}
	require.Len(t, eventsOfType(log.Events(ctx), models.EventRapidClicking), 1)

	// The window reset on trip, so the very next click stays quiet.
	m.RecordClick(ctx)
	require.Len(t, eventsOfType(log.Events(ctx), models.EventRapidClicking), 1)

	// A second full burst trips again.
	for i := 0; i < 21; i++ {
		m.RecordClick(ctx)
	}
	assert.Len(t, eventsOfType(log.Events(ctx), models.EventRapidClicking), 2)
}

func TestMonitorSlowClickingStaysQuiet(t *testing.T) {
	m, log, clock := newTestMonitor(t)
	ctx := context.Background()

	for i := 0; i < 40; i++ {
		m.RecordClick(ctx)
		clock.Advance(time.Second)
	}
	assert.Empty(t, eventsOfType(log.Events(ctx), models.EventRapidClicking))
}

func TestMonitorKeystrokeBurstNotifiesHost(t *testing.T) {
	var mu sync.Mutex
	var notified []string
	notify := func(eventType, message string) {
		mu.Lock()
		defer mu.Unlock()
		notified = append(notified, eventType)
	}

	m, log, _ := newTestMonitor(t, monitor.WithNotifier(notify))
	ctx := context.Background()

	for i := 0; i < 51; i++ {
		m.RecordKeystroke(ctx, "a")
	}

	events := eventsOfType(log.Events(ctx), models.EventSuspiciousKeystrokes)
	require.Len(t, events, 1)
	assert.Equal(t, models.SeverityHigh, events[0].Severity)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, notified, models.EventSuspiciousKeystrokes)
}

func TestMonitorDevToolsShortcutFlagged(t *testing.T) {
	m, log, _ := newTestMonitor(t)
	ctx := context.Background()

	m.RecordKeystroke(ctx, "F12")
	m.RecordKeystroke(ctx, "ctrl+shift+i")
	m.RecordKeystroke(ctx, "a")

	events := eventsOfType(log.Events(ctx), models.EventDevToolsShortcut)
	require.Len(t, events, 2)
	assert.Equal(t, "f12", events[0].Data["key"])
}

func TestMonitorRapidNavigation(t *testing.T) {
	m, log, _ := newTestMonitor(t)
	ctx := context.Background()

	for i := 0; i < 11; i++ {
		m.RecordNavigation(ctx)
	}
	assert.Len(t, eventsOfType(log.Events(ctx), models.EventRapidNavigation), 1)
}

func TestMonitorFocusFlips(t *testing.T) {
	m, log, clock := newTestMonitor(t)
	ctx := context.Background()

	m.RecordVisibilityChange(ctx, false)
	clock.Advance(50 * time.Millisecond)
	m.RecordVisibilityChange(ctx, true)

	events := log.Events(ctx)
	assert.Len(t, eventsOfType(events, models.EventWindowLostFocus), 1)
	assert.Len(t, eventsOfType(events, models.EventWindowGainedFocus), 1)
	assert.Len(t, eventsOfType(events, models.EventRapidFocusChanges), 1)

	// Slow transitions never flag.
	clock.Advance(time.Second)
	m.RecordVisibilityChange(ctx, false)
	assert.Len(t, eventsOfType(log.Events(ctx), models.EventRapidFocusChanges), 1)
}

func TestMonitorContextMenuSuppressed(t *testing.T) {
	m, log, _ := newTestMonitor(t)
	ctx := context.Background()

	assert.True(t, m.RecordContextMenu(ctx))
	assert.Len(t, eventsOfType(log.Events(ctx), models.EventContextMenuAttempt), 1)
}

func TestMonitorClipboard(t *testing.T) {
	m, log, _ := newTestMonitor(t)
	ctx := context.Background()

	m.RecordClipboard(ctx, monitor.ClipboardCopy)
	m.RecordClipboard(ctx, monitor.ClipboardPaste)

	events := log.Events(ctx)
	assert.Len(t, eventsOfType(events, models.EventClipboardCopy), 1)
	assert.Len(t, eventsOfType(events, models.EventClipboardPaste), 1)
}

func TestMonitorDevToolsProbeEdgeTriggered(t *testing.T) {
	viewport := &fakeViewport{}
	viewport.set(1920, 1080, 1920, 1080)
	sched := newManualScheduler()

	m, log, _ := newTestMonitor(t, monitor.WithViewport(viewport), monitor.WithScheduler(sched))
	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	require.True(t, sched.Run(ctx, "devtools_probe"))
	assert.Empty(t, eventsOfType(log.Events(ctx), models.EventDevToolsOpened))

	// A large height gap means an instrumentation surface opened. Repeated
	// polls in the same state stay quiet.
	viewport.set(1920, 1080, 1920, 800)
	sched.Run(ctx, "devtools_probe")
	sched.Run(ctx, "devtools_probe")
	require.Len(t, eventsOfType(log.Events(ctx), models.EventDevToolsOpened), 1)

	viewport.set(1920, 1080, 1920, 1080)
	sched.Run(ctx, "devtools_probe")
	assert.Len(t, eventsOfType(log.Events(ctx), models.EventDevToolsClosed), 1)
}

func TestMonitorMemoryProbe(t *testing.T) {
	var heap uint64 = 100 * 1024 * 1024
	sched := newManualScheduler()

	m, log, _ := newTestMonitor(t,
		monitor.WithScheduler(sched),
		monitor.WithHeapSampler(func() uint64 { return heap }))
	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	sched.Run(ctx, "memory_probe")
	assert.Empty(t, eventsOfType(log.Events(ctx), models.EventHighMemoryUsage))

	heap = 600 * 1024 * 1024
	sched.Run(ctx, "memory_probe")
	assert.Len(t, eventsOfType(log.Events(ctx), models.EventHighMemoryUsage), 1)
}

func TestMonitorStartTwiceFails(t *testing.T) {
	m, _, _ := newTestMonitor(t, monitor.WithScheduler(newManualScheduler()))
	ctx := context.Background()

	require.NoError(t, m.Start(ctx))
	assert.Error(t, m.Start(ctx))

	m.Stop()
	assert.NoError(t, m.Start(ctx))
	m.Stop()
}

func TestMonitorStopDetachesProbes(t *testing.T) {
	viewport := &fakeViewport{}
	viewport.set(1920, 1080, 1920, 800)
	sched := newManualScheduler()

	m, _, _ := newTestMonitor(t, monitor.WithViewport(viewport), monitor.WithScheduler(sched))
	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	m.Stop()

	assert.False(t, sched.Run(ctx, "devtools_probe"))
	assert.False(t, sched.Run(ctx, "memory_probe"))
}

func TestMonitorInstrumentLogger(t *testing.T) {
	m, log, _ := newTestMonitor(t)
	ctx := context.Background()

	wrapped, restore := m.InstrumentLogger(discardLogger())

	wrapped.Info("hello")
	wrapped.Warn("careful")
	wrapped.Error("boom")

	events := log.Events(ctx)
	assert.Len(t, eventsOfType(events, models.EventConsoleLogUsage), 1)
	assert.Len(t, eventsOfType(events, models.EventConsoleWarnUsage), 1)
	assert.Len(t, eventsOfType(events, models.EventConsoleErrorUsage), 1)

	// After restore the wrapper passes records through untouched.
	restore()
	wrapped.Info("quiet now")
	assert.Len(t, eventsOfType(log.Events(ctx), models.EventConsoleLogUsage), 1)
}

func TestMonitorInstrumentLoggerDisabled(t *testing.T) {
	log := eventlog.NewBehaviorLog(store.NewMemory(), discardLogger())
	cfg := monitor.DefaultConfig()
	cfg.ConsoleInteraction = false
	m := monitor.New(log, cfg, discardLogger())

	wrapped, restore := m.InstrumentLogger(discardLogger())
	defer restore()

	wrapped.Info("hello")
	assert.Empty(t, log.Events(context.Background()))
}

// roundTripFunc adapts a function to http.RoundTripper
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestMonitorInstrumentTransport(t *testing.T) {
	m, log, _ := newTestMonitor(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	transport, restore := m.InstrumentTransport(nil)
	defer restore()
	client := &http.Client{Transport: transport}

	resp, err := client.Get(server.URL + "/probe")
	require.NoError(t, err)
	resp.Body.Close()

	events := eventsOfType(log.Events(context.Background()), models.EventNetworkRequest)
	require.Len(t, events, 1)
	assert.Equal(t, "GET", events[0].Data["method"])
	assert.EqualValues(t, http.StatusNoContent, events[0].Data["status"])
	assert.Contains(t, events[0].Data["url"], "/probe")
}

func TestMonitorInstrumentTransportFailure(t *testing.T) {
	m, log, _ := newTestMonitor(t)

	failing := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	transport, restore := m.InstrumentTransport(failing)
	defer restore()

	req := httptest.NewRequest(http.MethodGet, "http://svc.internal/data", nil)
	_, err := transport.RoundTrip(req)
	require.Error(t, err)

	events := eventsOfType(log.Events(context.Background()), models.EventNetworkRequestFailed)
	require.Len(t, events, 1)
	assert.Equal(t, "connection refused", events[0].Data["error"])
}

func TestMonitorInstrumentTransportTruncatesLongURLs(t *testing.T) {
	m, log, _ := newTestMonitor(t)

	ok := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
	})
	transport, restore := m.InstrumentTransport(ok)
	defer restore()

	long := "http://svc.internal/" + strings.Repeat("x", 200)
	req := httptest.NewRequest(http.MethodGet, long, nil)
	_, err := transport.RoundTrip(req)
	require.NoError(t, err)

	events := eventsOfType(log.Events(context.Background()), models.EventNetworkRequest)
	require.Len(t, events, 1)
	url, ok2 := events[0].Data["url"].(string)
	require.True(t, ok2)
	assert.Len(t, url, 100)
}

func TestMonitorStopRunsRestores(t *testing.T) {
	m, log, _ := newTestMonitor(t, monitor.WithScheduler(newManualScheduler()))
	ctx := context.Background()
	require.NoError(t, m.Start(ctx))

	wrapped, _ := m.InstrumentLogger(discardLogger())
	m.Stop()

	wrapped.Info("after stop")
	assert.Empty(t, eventsOfType(log.Events(ctx), models.EventConsoleLogUsage))
}

func TestMonitorGetClearExport(t *testing.T) {
	m, _, clock := newTestMonitor(t)
	ctx := context.Background()

	m.RecordContextMenu(ctx)
	clock.Advance(48 * time.Hour)
	m.RecordContextMenu(ctx)

	assert.Len(t, m.GetSecurityEvents(ctx, 24), 1)
	assert.Len(t, m.GetSecurityEvents(ctx, 72), 2)

	raw, err := m.ExportSecurityLog(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)

	m.ClearSecurityEvents(ctx)
	assert.Empty(t, m.GetSecurityEvents(ctx, 72))
}
