package monitor

import (
	"net/http"
	"sync/atomic"

	"github.com/BradenHooton/sentinel/internal/models"
)

// instrumentedTransport decorates an http.RoundTripper, logging every
// outbound request's URL (truncated), method, status, and duration.
// Failures are logged distinctly at medium severity.
type instrumentedTransport struct {
	base   http.RoundTripper
	m      *Monitor
	active *atomic.Bool
}

// InstrumentTransport wraps the host's outbound HTTP primitive and returns
// both the wrapped transport and a restore function. After restore (or
// monitor Stop), the wrapper passes requests through untouched.
func (m *Monitor) InstrumentTransport(base http.RoundTripper) (http.RoundTripper, func()) {
	if !m.cfg.NetworkMonitoring {
		return base, func() {}
	}
	if base == nil {
		base = http.DefaultTransport
	}

	active := &atomic.Bool{}
	active.Store(true)
	restore := func() { active.Store(false) }

	m.mu.Lock()
	m.restores = append(m.restores, restore)
	m.mu.Unlock()

	return &instrumentedTransport{base: base, m: m, active: active}, restore
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.active.Load() {
		return t.base.RoundTrip(req)
	}

	start := t.m.clock.Now()
	resp, err := t.base.RoundTrip(req)
	duration := t.m.clock.Now().Sub(start)

	url := req.URL.String()
	if len(url) > urlTruncateLen {
		url = url[:urlTruncateLen]
	}

	t.m.mu.Lock()
	defer t.m.mu.Unlock()

	if err != nil {
		t.m.emit(req.Context(), models.EventNetworkRequestFailed, models.SeverityMedium, "",
			models.EventData{
				"url":    url,
				"method": req.Method,
				"error":  err.Error(),
			})
		return resp, err
	}

	t.m.emit(req.Context(), models.EventNetworkRequest, models.SeverityLow, "",
		models.EventData{
			"url":         url,
			"method":      req.Method,
			"status":      resp.StatusCode,
			"duration_ms": duration.Milliseconds(),
		})
	return resp, err
}
