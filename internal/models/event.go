package models

import (
	"time"

	"github.com/google/uuid"
)

// Severity classifies how urgently a security event should be handled.
// Only high and critical events are surfaced to the host notifier; the
// rest are logged silently.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Notifiable reports whether events of this severity should trigger a
// synchronous host notification.
func (s Severity) Notifiable() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// Event types emitted by the attempt governor
const (
	EventFailedLoginAttempt = "failed_login_attempt"
	EventSuccessfulLogin    = "successful_login"
	EventRapidFireAttempts  = "rapid_fire_attempts"
	EventDistributedAttack  = "distributed_attack_pattern"
)

// Event types emitted by the behavior monitor
const (
	EventDevToolsOpened        = "developer_tools_opened"
	EventDevToolsClosed        = "developer_tools_closed"
	EventConsoleLogUsage       = "console_log_usage"
	EventConsoleWarnUsage      = "console_warn_usage"
	EventConsoleErrorUsage     = "console_error_usage"
	EventRapidClicking         = "rapid_clicking_detected"
	EventSuspiciousKeystrokes  = "suspicious_keystroke_pattern"
	EventDevToolsShortcut      = "devtools_shortcut_attempt"
	EventRapidNavigation       = "rapid_navigation_detected"
	EventWindowLostFocus       = "window_lost_focus"
	EventWindowGainedFocus     = "window_gained_focus"
	EventRapidFocusChanges     = "rapid_focus_changes"
	EventContextMenuAttempt    = "context_menu_attempt"
	EventClipboardCopy         = "clipboard_copy"
	EventClipboardPaste        = "clipboard_paste"
	EventNetworkRequest        = "network_request"
	EventNetworkRequestFailed  = "network_request_failed"
	EventHighMemoryUsage       = "high_memory_usage"
)

// EventData holds additional context for security events
type EventData map[string]interface{}

// SecurityEvent is a single append-only entry in one of the security logs.
// Events are immutable once written; eviction from the capped log is the
// only way they disappear.
type SecurityEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	URL       string    `json:"url,omitempty"`
}

// NewSecurityEvent creates an event with a fresh ID and the given timestamp.
func NewSecurityEvent(eventType string, severity Severity, ts time.Time, data EventData) SecurityEvent {
	return SecurityEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Severity:  severity,
		Timestamp: ts,
		Data:      data,
	}
}
