// Package eventlog implements the bounded, durable security event logs
// shared by the attempt governor and the behavior monitor. Two logs exist
// with the same shape: a login-security log capped at 100 entries and a
// general behavior log capped at 200. Oldest entries are evicted first.
package eventlog

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/store"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
)

const (
	LoginLogCap    = 100
	BehaviorLogCap = 200
)

// Log is a capped, append-only event buffer persisted through the Store.
// Every append is a fresh read-modify-write of the full buffer; no stale
// in-memory copy survives across operations.
type Log struct {
	mu     sync.Mutex
	store  store.Store
	key    string
	cap    int
	logger *slog.Logger

	// Environment context stamped onto every appended event.
	agent string
	url   string
}

// Option configures a Log.
type Option func(*Log)

// WithOrigin stamps the given agent string and URL onto appended events,
// mirroring the environment context captured at emit time.
func WithOrigin(agent, url string) Option {
	return func(l *Log) {
		l.agent = agent
		l.url = url
	}
}

// New creates a log over the given store key with the given cap.
func New(s store.Store, key string, capacity int, logger *slog.Logger, opts ...Option) *Log {
	l := &Log{
		store:  s,
		key:    key,
		cap:    capacity,
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewLoginLog creates the login-security log.
func NewLoginLog(s store.Store, logger *slog.Logger, opts ...Option) *Log {
	return New(s, store.LoginLogKey, LoginLogCap, logger, opts...)
}

// NewBehaviorLog creates the general behavior log.
func NewBehaviorLog(s store.Store, logger *slog.Logger, opts ...Option) *Log {
	return New(s, store.BehaviorLogKey, BehaviorLogCap, logger, opts...)
}

// Append writes an event, evicting the oldest entries once the cap is
// exceeded. Persistence failures are logged and swallowed: losing an audit
// entry must never block the caller's login path.
func (l *Log) Append(ctx context.Context, event models.SecurityEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.UserAgent == "" {
		if meta, ok := pkghttp.ClientMetaFrom(ctx); ok {
			event.UserAgent = meta.UserAgent
		} else {
			event.UserAgent = l.agent
		}
	}
	if event.URL == "" {
		event.URL = l.url
	}

	events := l.read(ctx)
	events = append(events, event)
	if len(events) > l.cap {
		events = events[len(events)-l.cap:]
	}
	l.write(ctx, events)
}

// Events returns all entries, oldest first.
func (l *Log) Events(ctx context.Context) []models.SecurityEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read(ctx)
}

// EventsSince returns entries with a timestamp at or after the cutoff.
func (l *Log) EventsSince(ctx context.Context, cutoff time.Time) []models.SecurityEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []models.SecurityEvent
	for _, event := range l.read(ctx) {
		if !event.Timestamp.Before(cutoff) {
			out = append(out, event)
		}
	}
	return out
}

// Clear purges the log.
func (l *Log) Clear(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.Delete(ctx, l.key); err != nil {
		l.logger.Warn("unable to clear event log",
			slog.String("log", l.key), slog.Any("error", err))
	}
}

// Export serializes the full log for offline analysis.
func (l *Log) Export(ctx context.Context) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return json.MarshalIndent(l.read(ctx), "", "  ")
}

// read loads the persisted buffer. Malformed or absent state is treated as
// an empty log, never as an error.
func (l *Log) read(ctx context.Context) []models.SecurityEvent {
	raw, err := l.store.Get(ctx, l.key)
	if err != nil {
		return nil
	}
	var events []models.SecurityEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		l.logger.Warn("discarding corrupted event log",
			slog.String("log", l.key), slog.Any("error", err))
		return nil
	}
	return events
}

func (l *Log) write(ctx context.Context, events []models.SecurityEvent) {
	raw, err := json.Marshal(events)
	if err != nil {
		l.logger.Error("unable to marshal event log",
			slog.String("log", l.key), slog.Any("error", err))
		return
	}
	if err := l.store.Set(ctx, l.key, raw); err != nil {
		l.logger.Warn("unable to persist event log",
			slog.String("log", l.key), slog.Any("error", err))
	}
}
