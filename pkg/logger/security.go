package logger

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
)

// SecurityLogger provides structured logging for guard decisions and
// behavior detections, alongside the durable event logs. Governor denials
// and high-severity detections log at Warn so they stand out in aggregated
// output.
type SecurityLogger struct {
	logger *slog.Logger
}

// NewSecurityLogger creates a new security logger.
func NewSecurityLogger(logger *slog.Logger) *SecurityLogger {
	return &SecurityLogger{logger: logger}
}

// LogAttempt logs the outcome of a governor operation for an identity.
func (sl *SecurityLogger) LogAttempt(eventType, identity string, attemptCount int, allowed bool) {
	attrs := []slog.Attr{
		slog.String("audit_type", "login_guard"),
		slog.String("event_type", eventType),
		slog.String("identity", SanitizedIdentity(identity)),
		slog.Int("attempt_count", attemptCount),
		slog.Bool("allowed", allowed),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	level := slog.LevelInfo
	if !allowed {
		level = slog.LevelWarn
	}
	sl.logger.LogAttrs(context.Background(), level, "security", attrs...)
}

// LogLockout logs a triggered lockout with its escalation level.
func (sl *SecurityLogger) LogLockout(identity string, lockoutLevel int, duration time.Duration, blockUntil time.Time) {
	sl.logger.LogAttrs(context.Background(), slog.LevelWarn, "security",
		slog.String("audit_type", "login_guard"),
		slog.String("event_type", "lockout_triggered"),
		slog.String("identity", SanitizedIdentity(identity)),
		slog.Int("lockout_level", lockoutLevel),
		slog.Duration("lockout_duration", duration),
		slog.String("block_until", blockUntil.UTC().Format(time.RFC3339)),
	)
}

// LogDetection logs a behavior-monitor detection.
func (sl *SecurityLogger) LogDetection(eventType string, severity models.Severity, data map[string]any) {
	attrs := []slog.Attr{
		slog.String("audit_type", "behavior_monitor"),
		slog.String("event_type", eventType),
		slog.String("severity", string(severity)),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	for key, val := range data {
		attrs = append(attrs, slog.Any(key, val))
	}

	level := slog.LevelInfo
	if severity.Notifiable() {
		level = slog.LevelWarn
	}
	sl.logger.LogAttrs(context.Background(), level, "security", attrs...)
}
