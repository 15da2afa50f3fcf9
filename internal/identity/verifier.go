// Package identity wraps the external identity provider. The rest of the
// system only needs one contract out of it: a verified subject, or an
// error.
package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/trainlyhq/trainly-core/internal/errs"
)

// Subject is what a verified assertion proves about the caller. Email is
// empty when the provider did not include the claim; anything keyed on
// email must treat it as verified-or-absent, never caller-supplied.
type Subject struct {
	ID    string
	Email string
}

// Verifier validates a subject assertion and returns the verified subject.
type Verifier interface {
	Verify(ctx context.Context, subjectToken string) (Subject, error)
}

// JWTVerifier checks HS256 id_tokens issued by the configured provider.
type JWTVerifier struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

func NewJWTVerifier(secret, issuer, audience string) *JWTVerifier {
	return &JWTVerifier{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}
}

type idClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func (v *JWTVerifier) Verify(ctx context.Context, subjectToken string) (Subject, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := idClaims{}
	tok, err := jwt.ParseWithClaims(subjectToken, &claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !tok.Valid {
		return Subject{}, errs.InvalidSubjectToken()
	}

	if claims.Subject == "" {
		return Subject{}, errs.InvalidSubjectToken()
	}
	return Subject{ID: claims.Subject, Email: claims.Email}, nil
}

// WithClock overrides the verifier clock. Test hook.
func (v *JWTVerifier) WithClock(now func() time.Time) *JWTVerifier {
	v.now = now
	return v
}

var _ Verifier = (*JWTVerifier)(nil)

// Static resolves every token to a fixed subject. Development mode only.
type Static struct {
	Subject string
	Email   string
}

func (s Static) Verify(ctx context.Context, subjectToken string) (Subject, error) {
	if subjectToken == "" {
		return Subject{}, errs.InvalidSubjectToken()
	}
	if s.Subject == "" {
		return Subject{}, fmt.Errorf("identity: static verifier has no subject configured")
	}
	return Subject{ID: s.Subject, Email: s.Email}, nil
}
