// Package store provides the persistent key-value substrate shared by the
// attempt governor and the behavior monitor. All components take a Store as
// an injected dependency; nothing reaches for ambient global state.
package store

import (
	"context"
	"errors"

	"github.com/BradenHooton/sentinel/internal/models"
)

// Well-known keys and prefixes
const (
	// IdentityKeyPrefix namespaces per-identity governor state.
	IdentityKeyPrefix = "login_security_"

	// DeviceKey holds the single device-level rate-limit state for the
	// originating device/profile.
	DeviceKey = "device_security_global"

	// LoginLogKey and BehaviorLogKey hold the two capped event logs.
	LoginLogKey    = "security_logs"
	BehaviorLogKey = "security_events"
)

// Store is a minimal key-value contract. Get returns models.ErrNotFound
// for absent keys. Keys returns every stored key with the given prefix.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// IdentityKey builds the store key for a normalized identity.
func IdentityKey(identity string) string {
	return IdentityKeyPrefix + identity
}

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}
