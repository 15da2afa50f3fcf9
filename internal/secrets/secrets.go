// Package secrets generates the opaque identifiers and signing material the
// platform hands out. Each class carries a textual prefix so a leaked value
// can be identified at a glance. Uniqueness against the store is the
// caller's responsibility.
package secrets

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	PrefixAppID          = "app_"
	PrefixAppSecret      = "as_"
	PrefixIntegrationKey = "tk_"
	PrefixShadowUserID   = "shadow_"
	PrefixUserAuthToken  = "uat_"
)

// NewAppID returns a new opaque application identifier.
func NewAppID() string { return prefixed(PrefixAppID, 8) }

// NewAppSecret returns a backend-to-backend app secret.
func NewAppSecret() string { return prefixed(PrefixAppSecret, 24) }

// NewIntegrationKey returns a chat-scoped API key.
func NewIntegrationKey() string { return prefixed(PrefixIntegrationKey, 24) }

// NewShadowUserID returns an opaque id for a pre-signup account.
func NewShadowUserID() string { return prefixed(PrefixShadowUserID, 12) }

// NewUserAuthToken returns the user-controlled consent token.
func NewUserAuthToken() string { return prefixed(PrefixUserAuthToken, 24) }

// NewJWTSecret returns 32 bytes of CSPRNG entropy hex-encoded (64 chars).
// This is the only secret class that signs tokens, so it takes the full
// entropy budget rather than a timestamp-prefixed identifier.
func NewJWTSecret() string {
	return randHex(32)
}

// prefixed builds "<prefix><unix-nano>_<n random bytes hex>". The timestamp
// keeps values sortable and practically unique within a process; the random
// suffix covers concurrent calls in the same nanosecond.
func prefixed(prefix string, n int) string {
	return fmt.Sprintf("%s%d_%s", prefix, time.Now().UnixNano(), randHex(n))
}

func randHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms; if it does the
		// process has no business issuing credentials.
		panic(fmt.Sprintf("secrets: entropy source failed: %v", err))
	}
	return hex.EncodeToString(b)
}
