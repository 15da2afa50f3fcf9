package secrets

import (
	"encoding/hex"
	"strings"
	"testing"
)

func TestPrefixes(t *testing.T) {
	tests := []struct {
		name   string
		gen    func() string
		prefix string
	}{
		{"app id", NewAppID, "app_"},
		{"app secret", NewAppSecret, "as_"},
		{"integration key", NewIntegrationKey, "tk_"},
		{"shadow user id", NewShadowUserID, "shadow_"},
		{"user auth token", NewUserAuthToken, "uat_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := tt.gen()
			if !strings.HasPrefix(v, tt.prefix) {
				t.Errorf("got %q, want prefix %q", v, tt.prefix)
			}
		})
	}
}

func TestJWTSecret(t *testing.T) {
	s := NewJWTSecret()
	if len(s) != 64 {
		t.Fatalf("length = %d, want 64", len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		t.Fatalf("not hex: %v", err)
	}
	if s == NewJWTSecret() {
		t.Fatal("two secrets are identical")
	}
}

func TestUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		k := NewIntegrationKey()
		if seen[k] {
			t.Fatalf("duplicate key %q", k)
		}
		seen[k] = true
	}
}
