package models

import "time"

// AttemptState is the derived per-identity state machine position.
type AttemptState string

const (
	StateClear             AttemptState = "clear"
	StateWarning           AttemptState = "warning"
	StateChallengeRequired AttemptState = "challenge_required"
	StateLocked            AttemptState = "locked"
)

// IdentitySecurityState tracks failed-attempt history for a single login
// identity (normalized email or username). Created lazily on the first
// failed attempt and never explicitly deleted.
type IdentitySecurityState struct {
	AttemptCount      int        `json:"attempt_count"`
	LastAttempt       *time.Time `json:"last_attempt,omitempty"`
	IsBlocked         bool       `json:"is_blocked"`
	BlockUntil        *time.Time `json:"block_until,omitempty"`
	RequiresChallenge bool       `json:"requires_challenge"`
	// LockoutLevel escalates lockout durations for repeat offenders. It is
	// never reset by a successful login, only by administrative action.
	LockoutLevel int `json:"lockout_level"`
}

// Locked reports whether the identity is inside an unexpired lockout window.
func (s *IdentitySecurityState) Locked(now time.Time) bool {
	return s.BlockUntil != nil && now.Before(*s.BlockUntil)
}

// State derives the state machine position at the given instant. Lockout
// expiry is evaluated lazily here, not via a timer.
func (s *IdentitySecurityState) State(now time.Time, challengeThreshold, maxAttempts int) AttemptState {
	switch {
	case s.Locked(now):
		return StateLocked
	case s.AttemptCount >= challengeThreshold || s.RequiresChallenge:
		return StateChallengeRequired
	case s.AttemptCount >= 1:
		return StateWarning
	default:
		return StateClear
	}
}

// DeviceSecurityState rate-limits an originating device independent of
// which identity it targets. An identity lockout escalates to a device
// lockout at the moment of trigger.
type DeviceSecurityState struct {
	AttemptCount int        `json:"attempt_count"`
	BlockUntil   *time.Time `json:"block_until,omitempty"`
}

// Locked reports whether the device is inside an unexpired lockout window.
func (s *DeviceSecurityState) Locked(now time.Time) bool {
	return s.BlockUntil != nil && now.Before(*s.BlockUntil)
}
