package guard

import (
	"crypto/sha256"
	"fmt"
)

// DeviceFingerprint creates a stable hash of IP + user agent for device
// identification in event payloads. It is contextual annotation only; the
// governor's device-level throttle is keyed to the originating profile.
func DeviceFingerprint(ipAddress, userAgent string) string {
	data := []byte(fmt.Sprintf("%s:%s", ipAddress, userAgent))
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)[:32]
}
