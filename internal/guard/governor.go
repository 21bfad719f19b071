// Package guard implements the adaptive attempt governor: per-identity and
// per-device throttling of failed logins, progressive lockout, challenge
// escalation, and cross-identity attack detection. The governor only decides
// whether an attempt may proceed and reacts to its outcome; credential
// validation and final enforcement belong to the server side.
package guard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/sentinel/internal/background"
	"github.com/BradenHooton/sentinel/internal/eventlog"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/store"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
	pkglogger "github.com/BradenHooton/sentinel/pkg/logger"
)

// Config holds thresholds for the attempt governor.
type Config struct {
	MaxAttempts        int           // failures before lockout
	ChallengeThreshold int           // failures before a challenge is required
	InitialLockout     time.Duration // first lockout duration
	LockoutMultiplier  float64       // escalation factor per lockout level

	RapidFireThreshold   int           // attempts across all identities
	RapidFireWindow      time.Duration
	DistributedThreshold int           // distinct identities
	DistributedWindow    time.Duration
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:          5,
		ChallengeThreshold:   3,
		InitialLockout:       5 * time.Minute,
		LockoutMultiplier:    2,
		RapidFireThreshold:   10,
		RapidFireWindow:      60 * time.Second,
		DistributedThreshold: 5,
		DistributedWindow:    300 * time.Second,
	}
}

// Notifier receives user-facing messages about remaining attempts and
// lockouts. Presentation is owned by the host; the governor only supplies
// the copy.
type Notifier func(identity, message string)

// Governor tracks login attempt state per identity and per device. All
// operations are synchronous; persistence failures degrade through the
// store's fallback rather than blocking the login path.
type Governor struct {
	mu       sync.Mutex
	store    store.Store
	log      *eventlog.Log
	cfg      Config
	clock    background.Clock
	logger   *slog.Logger
	security *pkglogger.SecurityLogger
	notify   Notifier
}

// Option configures a Governor.
type Option func(*Governor)

// WithNotifier sets the host notification callback.
func WithNotifier(fn Notifier) Option {
	return func(g *Governor) { g.notify = fn }
}

// WithClock overrides the clock, for tests.
func WithClock(clock background.Clock) Option {
	return func(g *Governor) { g.clock = clock }
}

// New creates a Governor over the given store and login-security log.
func New(s store.Store, log *eventlog.Log, cfg Config, logger *slog.Logger, opts ...Option) *Governor {
	g := &Governor{
		store:    s,
		log:      log,
		cfg:      cfg,
		clock:    background.SystemClock{},
		logger:   logger,
		security: pkglogger.NewSecurityLogger(logger),
		notify:   func(string, string) {},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NormalizeIdentity canonicalizes an identity for use as a state key.
// Identity matching is case-insensitive.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// CanAttemptLogin reports whether a login attempt for the identity may
// proceed. It returns false while the identity or the device is inside an
// unexpired lockout window, or while a cross-identity attack pattern is
// active. Governor state is never mutated here.
func (g *Governor) CanAttemptLogin(ctx context.Context, identity string) bool {
	identity = NormalizeIdentity(identity)
	if identity == "" {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()

	state := g.loadIdentity(ctx, identity, now)
	if state.Locked(now) {
		g.security.LogAttempt("login_check", identity, state.AttemptCount, false)
		return false
	}

	device := g.loadDevice(ctx, now)
	if device.Locked(now) {
		g.security.LogAttempt("login_check_device", identity, device.AttemptCount, false)
		return false
	}

	if g.suspiciousPatternActive(ctx, now) {
		g.security.LogAttempt("login_check_pattern", identity, state.AttemptCount, false)
		return false
	}

	return true
}

// RecordFailedAttempt registers a failed login for the identity, escalating
// to a challenge requirement or a lockout when thresholds are crossed. An
// identity lockout also blocks the device for the same window.
func (g *Governor) RecordFailedAttempt(ctx context.Context, identity string) {
	identity = NormalizeIdentity(identity)
	if identity == "" {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()

	state := g.loadIdentity(ctx, identity, now)
	state.AttemptCount++
	state.LastAttempt = &now

	device := g.loadDevice(ctx, now)
	device.AttemptCount++

	data := models.EventData{
		"identity":      pkglogger.SanitizedIdentity(identity),
		"attempt_count": state.AttemptCount,
	}
	if meta, ok := pkghttp.ClientMetaFrom(ctx); ok {
		data["device"] = DeviceFingerprint(meta.IP, meta.UserAgent)
	}
	severity := models.SeverityMedium

	switch {
	case state.AttemptCount >= g.cfg.MaxAttempts:
		duration := g.lockoutDuration(state.LockoutLevel)
		blockUntil := now.Add(duration)
		state.IsBlocked = true
		state.BlockUntil = &blockUntil
		state.LockoutLevel++

		// Once a device has driven one identity to exhaustion, the whole
		// device is throttled for the same window.
		device.BlockUntil = &blockUntil

		data["locked"] = true
		data["lockout_level"] = state.LockoutLevel
		data["block_until"] = blockUntil
		severity = models.SeverityHigh

		g.security.LogLockout(identity, state.LockoutLevel, duration, blockUntil)
		g.notify(identity, fmt.Sprintf("Too many failed attempts. Try again in %s.", formatDuration(duration)))

	case state.AttemptCount >= g.cfg.ChallengeThreshold:
		state.RequiresChallenge = true
		data["requires_challenge"] = true
		g.notify(identity, fmt.Sprintf("%d attempts remaining. Please complete the verification challenge.",
			g.cfg.MaxAttempts-state.AttemptCount))

	default:
		g.notify(identity, fmt.Sprintf("Invalid credentials. %d attempts remaining.",
			g.cfg.MaxAttempts-state.AttemptCount))
	}

	g.saveIdentity(ctx, identity, state)
	g.saveDevice(ctx, device)

	g.log.Append(ctx, models.NewSecurityEvent(models.EventFailedLoginAttempt, severity, now, data))
	g.security.LogAttempt(models.EventFailedLoginAttempt, identity, state.AttemptCount, true)
}

// RecordSuccessfulLogin clears attempt history for the identity and lifts
// the device block. The lockout level is deliberately preserved so repeat
// offenders face longer lockouts later.
func (g *Governor) RecordSuccessfulLogin(ctx context.Context, identity string) {
	identity = NormalizeIdentity(identity)
	if identity == "" {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()

	state := g.loadIdentity(ctx, identity, now)
	state.AttemptCount = 0
	state.LastAttempt = nil
	state.IsBlocked = false
	state.BlockUntil = nil
	state.RequiresChallenge = false
	g.saveIdentity(ctx, identity, state)

	g.saveDevice(ctx, &models.DeviceSecurityState{})

	g.log.Append(ctx, models.NewSecurityEvent(models.EventSuccessfulLogin, models.SeverityLow, now, models.EventData{
		"identity": pkglogger.SanitizedIdentity(identity),
	}))
	g.security.LogAttempt(models.EventSuccessfulLogin, identity, 0, true)
}

// GetTimeRemaining returns how long until the identity's lockout expires,
// floored at zero. Pure read; persisted state is never touched.
func (g *Governor) GetTimeRemaining(ctx context.Context, identity string) time.Duration {
	identity = NormalizeIdentity(identity)

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	state := g.loadIdentity(ctx, identity, now)
	if state.BlockUntil == nil {
		return 0
	}
	remaining := state.BlockUntil.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FormatTimeRemaining renders the remaining lockout for human display,
// e.g. "5 minutes". Returns the empty string when no lockout is active.
func (g *Governor) FormatTimeRemaining(ctx context.Context, identity string) string {
	remaining := g.GetTimeRemaining(ctx, identity)
	if remaining == 0 {
		return ""
	}
	return formatDuration(remaining)
}

// IdentityState returns a snapshot of the identity's current state with
// lockout expiry already applied.
func (g *Governor) IdentityState(ctx context.Context, identity string) models.IdentitySecurityState {
	identity = NormalizeIdentity(identity)

	g.mu.Lock()
	defer g.mu.Unlock()

	return *g.loadIdentity(ctx, identity, g.clock.Now())
}

// RequiresChallenge reports whether the identity must complete a
// human-verification challenge before the next attempt.
func (g *Governor) RequiresChallenge(ctx context.Context, identity string) bool {
	return g.IdentityState(ctx, identity).RequiresChallenge
}

// StateFor derives the state-machine position for the identity.
func (g *Governor) StateFor(ctx context.Context, identity string) models.AttemptState {
	state := g.IdentityState(ctx, identity)
	return state.State(g.clock.Now(), g.cfg.ChallengeThreshold, g.cfg.MaxAttempts)
}

// lockoutDuration computes the progressive lockout for a given level:
// initial × multiplier^level.
func (g *Governor) lockoutDuration(level int) time.Duration {
	factor := math.Pow(g.cfg.LockoutMultiplier, float64(level))
	return time.Duration(float64(g.cfg.InitialLockout) * factor)
}

// loadIdentity reads the persisted state for an identity. Absent or
// malformed state is a fresh identity, never an error. Expired lockouts
// are normalized in memory: the block is lifted and the attempt count
// reset, while requiresChallenge and lockoutLevel survive until a
// successful login or the next escalation.
func (g *Governor) loadIdentity(ctx context.Context, identity string, now time.Time) *models.IdentitySecurityState {
	state := &models.IdentitySecurityState{}

	raw, err := g.store.Get(ctx, store.IdentityKey(identity))
	if err == nil {
		if err := json.Unmarshal(raw, state); err != nil {
			g.logger.Warn("discarding corrupted identity state",
				slog.String("identity", pkglogger.SanitizedIdentity(identity)),
				slog.Any("error", err))
			state = &models.IdentitySecurityState{}
		}
	}

	if state.BlockUntil != nil && !now.Before(*state.BlockUntil) {
		state.IsBlocked = false
		state.BlockUntil = nil
		state.AttemptCount = 0
	}
	state.IsBlocked = state.Locked(now)

	return state
}

func (g *Governor) saveIdentity(ctx context.Context, identity string, state *models.IdentitySecurityState) {
	raw, err := json.Marshal(state)
	if err != nil {
		g.logger.Error("unable to marshal identity state", slog.Any("error", err))
		return
	}
	if err := g.store.Set(ctx, store.IdentityKey(identity), raw); err != nil {
		g.logger.Warn("unable to persist identity state", slog.Any("error", err))
	}
}

func (g *Governor) loadDevice(ctx context.Context, now time.Time) *models.DeviceSecurityState {
	state := &models.DeviceSecurityState{}

	raw, err := g.store.Get(ctx, store.DeviceKey)
	if err == nil {
		if err := json.Unmarshal(raw, state); err != nil {
			g.logger.Warn("discarding corrupted device state", slog.Any("error", err))
			state = &models.DeviceSecurityState{}
		}
	}

	if state.BlockUntil != nil && !now.Before(*state.BlockUntil) {
		state.BlockUntil = nil
		state.AttemptCount = 0
	}

	return state
}

func (g *Governor) saveDevice(ctx context.Context, state *models.DeviceSecurityState) {
	raw, err := json.Marshal(state)
	if err != nil {
		g.logger.Error("unable to marshal device state", slog.Any("error", err))
		return
	}
	if err := g.store.Set(ctx, store.DeviceKey, raw); err != nil {
		g.logger.Warn("unable to persist device state", slog.Any("error", err))
	}
}

// formatDuration renders a lockout duration for user-facing copy.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		seconds := int(math.Ceil(d.Seconds()))
		if seconds == 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", seconds)
	}
	minutes := int(math.Ceil(d.Minutes()))
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
