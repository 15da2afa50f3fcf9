package token

import (
	"testing"
	"time"

	"github.com/trainlyhq/trainly-core/internal/capability"
	"github.com/trainlyhq/trainly-core/internal/secrets"
)

func TestSubchatIDDeterministic(t *testing.T) {
	a := SubchatID("chat1", "user1")
	if a != SubchatID("chat1", "user1") {
		t.Fatal("same inputs produced different subchat ids")
	}
	if a == SubchatID("chat1", "user2") {
		t.Fatal("different users share a subchat id")
	}
	if a == SubchatID("chat2", "user1") {
		t.Fatal("different chats share a subchat id")
	}
	if len(a) != len("sub_")+32 {
		t.Fatalf("unexpected subchat id %q", a)
	}
}

func TestMintVerify(t *testing.T) {
	secret := secrets.NewJWTSecret()
	now := time.Now()

	tok, err := Mint(secret, "user1", "chat1", []capability.Capability{capability.Ask}, now)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := Verifier{}.Verify(VerifyInput{Token: tok, Secret: secret, Now: now.Add(time.Minute)})
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "user1" || claims.ChatID != "chat1" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.SubchatID != SubchatID("chat1", "user1") {
		t.Error("subchat id not derived from (chat, subject)")
	}
	if len(claims.Capabilities) != 1 || claims.Capabilities[0] != "ask" {
		t.Errorf("capabilities = %v", claims.Capabilities)
	}
}

func TestExpiryBoundary(t *testing.T) {
	secret := secrets.NewJWTSecret()
	issued := time.Now()

	tok, err := Mint(secret, "user1", "chat1", []capability.Capability{capability.Ask}, issued)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := (Verifier{}).Verify(VerifyInput{Token: tok, Secret: secret, Now: issued.Add(3599 * time.Second)}); err != nil {
		t.Errorf("token rejected at T+3599s: %v", err)
	}
	if _, err := (Verifier{}).Verify(VerifyInput{Token: tok, Secret: secret, Now: issued.Add(3601 * time.Second)}); err == nil {
		t.Error("token accepted at T+3601s")
	}
}

func TestRotationInvalidates(t *testing.T) {
	oldSecret := secrets.NewJWTSecret()
	now := time.Now()

	tok, err := Mint(oldSecret, "user1", "chat1", []capability.Capability{capability.Ask}, now)
	if err != nil {
		t.Fatal(err)
	}

	newSecret := secrets.NewJWTSecret()
	rotated := now.Add(time.Minute)

	// Default zero grace: old-secret tokens die immediately.
	_, err = Verifier{}.Verify(VerifyInput{
		Token: tok, Secret: newSecret, PrevSecret: oldSecret,
		RotatedAt: &rotated, Now: rotated.Add(time.Second),
	})
	if err == nil {
		t.Fatal("token signed with rotated-out secret still verifies")
	}

	// With a grace window the previous secret holds until it closes.
	v := Verifier{Grace: 5 * time.Minute}
	if _, err := v.Verify(VerifyInput{
		Token: tok, Secret: newSecret, PrevSecret: oldSecret,
		RotatedAt: &rotated, Now: rotated.Add(time.Minute),
	}); err != nil {
		t.Errorf("token rejected inside grace window: %v", err)
	}
	if _, err := v.Verify(VerifyInput{
		Token: tok, Secret: newSecret, PrevSecret: oldSecret,
		RotatedAt: &rotated, Now: rotated.Add(10 * time.Minute),
	}); err == nil {
		t.Error("token accepted after grace window closed")
	}
}

func TestCheckSubject(t *testing.T) {
	secret := secrets.NewJWTSecret()
	now := time.Now()
	tok, _ := Mint(secret, "userA", "chatX", []capability.Capability{capability.Ask}, now)
	claims, err := Verifier{}.Verify(VerifyInput{Token: tok, Secret: secret, Now: now})
	if err != nil {
		t.Fatal(err)
	}

	if err := CheckSubject(claims, "userA"); err != nil {
		t.Errorf("legitimate subject rejected: %v", err)
	}

	err = CheckSubject(claims, "userB")
	if err == nil {
		t.Fatal("cross-user request passed subject check")
	}
	if err.Error() != "privacy_violation: token subject does not match end_user_id; scoped tokens cannot cross user partitions" {
		t.Errorf("wrong error: %v", err)
	}

	if err := CheckSubject(claims, ""); err == nil {
		t.Error("missing end_user_id passed subject check")
	}
}
