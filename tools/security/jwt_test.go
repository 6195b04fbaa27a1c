package security

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

func TestGenerateVerifyRoundTrip(t *testing.T) {
	opts := DefaultOptions([]byte("k-1"))
	token, hash, exp, err := Generate(opts, "u1", []string{"viewer"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if token == "" || hash == "" || !exp.After(time.Now()) {
		t.Fatalf("bad output: token=%q hash=%q exp=%v", token, hash, exp)
	}

	claims, err := Verify(opts, token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID() != "u1" {
		t.Fatalf("sub = %q, want u1", claims.UserID())
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	token, _, _, err := Generate(DefaultOptions([]byte("k-1")), "u1", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := Verify(DefaultOptions([]byte("k-2")), token); err == nil {
		t.Fatalf("wrong key accepted")
	}
}

func TestVerifyRejectsUnsupportedAlg(t *testing.T) {
	opts := Options{Secret: []byte("k"), Alg: "RS256"}
	if _, _, _, err := Generate(opts, "u1", nil); err == nil {
		t.Fatalf("RS256 generate accepted")
	}
	if _, err := Verify(opts, "whatever"); err == nil {
		t.Fatalf("RS256 verify accepted")
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Now()

	fresh, _, _, err := Generate(DefaultOptions([]byte("k")), "u1", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if IsExpired(fresh, now) {
		t.Fatalf("fresh token reported expired")
	}

	stale, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub": "u1",
		"exp": now.Add(-time.Minute).Unix(),
	}).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !IsExpired(stale, now) {
		t.Fatalf("stale token reported valid")
	}

	// opaque tokens fall through to the server check
	if IsExpired("not-a-jwt", now) {
		t.Fatalf("opaque token reported expired")
	}
}
