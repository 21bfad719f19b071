package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/BradenHooton/sentinel/internal/monitor"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
)

// SignalHandler ingests raw behavior signals from the protected view and
// feeds them to the monitor's probes.
type SignalHandler struct {
	monitor *monitor.Monitor
}

// NewSignalHandler creates a new SignalHandler.
func NewSignalHandler(m *monitor.Monitor) *SignalHandler {
	return &SignalHandler{monitor: m}
}

// SignalRequest carries one raw signal.
type SignalRequest struct {
	Signal  string `json:"signal" validate:"required,oneof=click keydown navigation visibility context_menu clipboard"`
	Key     string `json:"key,omitempty"`
	Visible *bool  `json:"visible,omitempty"`
	Op      string `json:"op,omitempty" validate:"omitempty,oneof=copy paste"`
}

// Ingest dispatches a signal to the matching probe.
func (h *SignalHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req SignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ctx := r.Context()
	resp := map[string]any{"status": "ok"}

	switch req.Signal {
	case "click":
		h.monitor.RecordClick(ctx)
	case "keydown":
		h.monitor.RecordKeystroke(ctx, req.Key)
	case "navigation":
		h.monitor.RecordNavigation(ctx)
	case "visibility":
		if req.Visible == nil {
			pkghttp.WriteBadRequest(w, "visibility signals require the visible field")
			return
		}
		h.monitor.RecordVisibilityChange(ctx, *req.Visible)
	case "context_menu":
		resp["suppress_default"] = h.monitor.RecordContextMenu(ctx)
	case "clipboard":
		if req.Op == "" {
			pkghttp.WriteBadRequest(w, "clipboard signals require the op field")
			return
		}
		h.monitor.RecordClipboard(ctx, monitor.ClipboardOp(req.Op))
	}

	writeJSON(w, http.StatusOK, resp)
}
