package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func idToken(t *testing.T, secret, sub, issuer string, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestVerify(t *testing.T) {
	now := time.Now()
	v := NewJWTVerifier("idp-secret", "https://idp.example.com", "").
		WithClock(func() time.Time { return now })

	tok := idToken(t, "idp-secret", "user-42", "https://idp.example.com", now.Add(time.Hour))
	subject, err := v.Verify(context.Background(), tok)
	if err != nil {
		t.Fatal(err)
	}
	if subject.ID != "user-42" {
		t.Errorf("subject = %q", subject.ID)
	}
	if subject.Email != "" {
		t.Errorf("email = %q, want empty without a claim", subject.Email)
	}
}

func TestVerifyEmailClaim(t *testing.T) {
	now := time.Now()
	v := NewJWTVerifier("idp-secret", "https://idp.example.com", "").
		WithClock(func() time.Time { return now })

	claims := struct {
		Email string `json:"email"`
		jwt.RegisteredClaims
	}{
		Email: "user-42@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-42",
			Issuer:    "https://idp.example.com",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("idp-secret"))
	if err != nil {
		t.Fatal(err)
	}

	subject, err := v.Verify(context.Background(), tok)
	if err != nil {
		t.Fatal(err)
	}
	if subject.Email != "user-42@example.com" {
		t.Errorf("email = %q", subject.Email)
	}
}

func TestVerifyFailures(t *testing.T) {
	now := time.Now()
	v := NewJWTVerifier("idp-secret", "https://idp.example.com", "").
		WithClock(func() time.Time { return now })

	tests := []struct {
		name  string
		token string
	}{
		{"expired", idToken(t, "idp-secret", "user-42", "https://idp.example.com", now.Add(-time.Minute))},
		{"wrong secret", idToken(t, "other-secret", "user-42", "https://idp.example.com", now.Add(time.Hour))},
		{"wrong issuer", idToken(t, "idp-secret", "user-42", "https://evil.example.com", now.Add(time.Hour))},
		{"empty subject", idToken(t, "idp-secret", "", "https://idp.example.com", now.Add(time.Hour))},
		{"garbage", "not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.Verify(context.Background(), tt.token); err == nil {
				t.Error("expected verification failure")
			}
		})
	}
}
