package guard

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/store"
)

// suspiciousPatternActive evaluates the cross-identity heuristics. Both are
// logged every time they are detected, not just on first occurrence; the
// dense audit trail while a pattern persists is intentional. Caller holds
// the governor mutex.
func (g *Governor) suspiciousPatternActive(ctx context.Context, now time.Time) bool {
	rapid := g.rapidFireActive(ctx, now)
	distributed := g.distributedAttackActive(ctx, now)
	return rapid || distributed
}

// rapidFireActive flags a burst of failed attempts across all identities.
// The shared login log is the only state consulted, so bursts against a
// single identity count the same as bursts spread across many.
func (g *Governor) rapidFireActive(ctx context.Context, now time.Time) bool {
	cutoff := now.Add(-g.cfg.RapidFireWindow)

	count := 0
	for _, event := range g.log.EventsSince(ctx, cutoff) {
		if event.Type == models.EventFailedLoginAttempt {
			count++
		}
	}
	if count < g.cfg.RapidFireThreshold {
		return false
	}

	g.log.Append(ctx, models.NewSecurityEvent(models.EventRapidFireAttempts, models.SeverityHigh, now, models.EventData{
		"attempts_in_window": count,
		"window_seconds":     int(g.cfg.RapidFireWindow.Seconds()),
	}))
	return true
}

// distributedAttackActive flags many distinct identities being probed from
// this origin inside the trailing window.
func (g *Governor) distributedAttackActive(ctx context.Context, now time.Time) bool {
	cutoff := now.Add(-g.cfg.DistributedWindow)

	keys, err := g.store.Keys(ctx, store.IdentityKeyPrefix)
	if err != nil {
		// Detection is best-effort; a failed scan never blocks login.
		return false
	}

	distinct := 0
	for _, key := range keys {
		raw, err := g.store.Get(ctx, key)
		if err != nil {
			continue
		}
		var state models.IdentitySecurityState
		if err := json.Unmarshal(raw, &state); err != nil {
			continue
		}
		if state.LastAttempt != nil && state.LastAttempt.After(cutoff) {
			distinct++
		}
	}
	if distinct < g.cfg.DistributedThreshold {
		return false
	}

	g.log.Append(ctx, models.NewSecurityEvent(models.EventDistributedAttack, models.SeverityCritical, now, models.EventData{
		"identities_in_window": distinct,
		"window_seconds":       int(g.cfg.DistributedWindow.Seconds()),
	}))
	return true
}
