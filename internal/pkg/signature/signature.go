// internal/pkg/signature/signature.go
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// MaxAge bounds how old a signed payload may be before it is rejected.
const MaxAge = 5 * time.Minute

// Sign creates an HMAC-SHA256 signature over timestamp + "." + payload.
// Binding the timestamp into the digest prevents replay of captured payloads.
func Sign(secret string, payload []byte, timestamp int64) string {
	h := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(h, "%d.%s", timestamp, payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks a payload signature with constant-time comparison and a
// timestamp window.
func Verify(secret string, payload []byte, sig string, timestamp int64, now time.Time) error {
	if secret == "" {
		return fmt.Errorf("signing secret is not configured")
	}
	if sig == "" {
		return fmt.Errorf("signature is missing")
	}

	age := now.Sub(time.Unix(timestamp, 0))
	if age > MaxAge {
		return fmt.Errorf("signature timestamp too old: %v", age)
	}
	// Tolerate modest clock skew but reject far-future timestamps
	if age < -1*time.Minute {
		return fmt.Errorf("signature timestamp is in the future")
	}

	expected := Sign(secret, payload, timestamp)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return fmt.Errorf("signature mismatch")
	}

	return nil
}
