package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Storage errors
	ErrStoreUnavailable = errors.New("store unavailable")

	// Guard denial outcomes. Inside the core these are normal return
	// values, never thrown; the HTTP facade maps them to responses.
	ErrIdentityLocked     = errors.New("identity is temporarily locked")
	ErrSuspiciousActivity = errors.New("suspicious activity detected")
)
