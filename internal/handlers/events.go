package handlers

import (
	"net/http"
	"strconv"

	"github.com/BradenHooton/sentinel/internal/eventlog"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/monitor"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
)

// EventsHandler exposes the read/maintenance surface over both security
// logs: trailing-window queries, purge, and export for offline analysis.
type EventsHandler struct {
	monitor  *monitor.Monitor
	loginLog *eventlog.Log
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(m *monitor.Monitor, loginLog *eventlog.Log) *EventsHandler {
	return &EventsHandler{monitor: m, loginLog: loginLog}
}

// List returns events from the trailing hours window (default 24). The
// log query parameter selects "behavior" (default) or "login".
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			pkghttp.WriteBadRequest(w, "hours must be a positive integer")
			return
		}
		hours = parsed
	}

	ctx := r.Context()

	var events []models.SecurityEvent
	switch r.URL.Query().Get("log") {
	case "", "behavior":
		events = h.monitor.GetSecurityEvents(ctx, hours)
	case "login":
		events = h.loginLog.Events(ctx)
	default:
		pkghttp.WriteBadRequest(w, "log must be behavior or login")
		return
	}

	if events == nil {
		events = []models.SecurityEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(events),
		"events": events,
	})
}

// Clear purges the behavior log.
func (h *EventsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.monitor.ClearSecurityEvents(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Export serializes the behavior log as a downloadable document.
func (h *EventsHandler) Export(w http.ResponseWriter, r *http.Request) {
	payload, err := h.monitor.ExportSecurityLog(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Unable to export security log")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="security-events.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}
