// Package token mints and verifies the short-lived scoped tokens handed to
// developer backends. A token binds one end user to one subchat partition
// inside one chat; the subchat id is derived, never supplied.
package token

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/trainlyhq/trainly-core/internal/capability"
	"github.com/trainlyhq/trainly-core/internal/errs"
)

const TTL = time.Hour

type Claims struct {
	ChatID       string   `json:"chat_id"`
	SubchatID    string   `json:"subchat_id"`
	Capabilities []string `json:"capabilities"`
	jwt.RegisteredClaims
}

// SubchatID derives the per-end-user partition id for a chat. The same
// (chat, subject) pair always lands in the same partition, and nothing
// else can land there.
func SubchatID(chatID, subjectID string) string {
	h := sha256.Sum256([]byte(chatID + ":" + subjectID))
	return "sub_" + hex.EncodeToString(h[:])[:32]
}

// Mint signs a scoped token with the app's jwtSecret.
func Mint(secret, subjectID, chatID string, caps []capability.Capability, now time.Time) (string, error) {
	claims := Claims{
		ChatID:       chatID,
		SubchatID:    SubchatID(chatID, subjectID),
		Capabilities: capability.Names(caps),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign scoped token: %w", err)
	}
	return signed, nil
}

// Verifier checks scoped tokens against an app's current jwtSecret, falling
// back to the previous secret only inside the rotation grace window. With a
// zero grace window (the default) rotation is immediately destructive.
type Verifier struct {
	Grace time.Duration
}

type VerifyInput struct {
	Token      string
	Secret     string
	PrevSecret string
	RotatedAt  *time.Time
	Now        time.Time
}

func (v Verifier) Verify(in VerifyInput) (*Claims, error) {
	claims, err := parse(in.Token, in.Secret, in.Now)
	if err == nil {
		return claims, nil
	}

	if in.PrevSecret != "" && in.RotatedAt != nil && v.Grace > 0 &&
		in.Now.Before(in.RotatedAt.Add(v.Grace)) {
		if claims, prevErr := parse(in.Token, in.PrevSecret, in.Now); prevErr == nil {
			return claims, nil
		}
	}

	return nil, err
}

func parse(tokenStr, secret string, now time.Time) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil || !tok.Valid {
		return nil, errs.AccessDenied("invalid or expired scoped token")
	}
	if claims.ExpiresAt == nil || claims.SubchatID == "" || claims.ChatID == "" {
		return nil, errs.AccessDenied("invalid or expired scoped token")
	}
	return claims, nil
}

// CheckSubject re-derives the subchat from the claims and the end user id
// supplied with a request. This runs on every scoped query, independent of
// signature verification: a replayed token pointed at another user id must
// fail here even though its claims are internally consistent.
func CheckSubject(claims *Claims, endUserID string) error {
	if endUserID == "" {
		return errs.NotAuthenticated()
	}
	if claims.Subject != endUserID {
		return errs.PrivacyViolation()
	}
	if SubchatID(claims.ChatID, endUserID) != claims.SubchatID {
		return errs.PrivacyViolation()
	}
	return nil
}
