package token

import (
	"strings"
	"testing"
	"time"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	s, err := NewSigner("a-long-enough-test-secret")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	tok, expiry, err := s.Sign(42, 7)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !expiry.After(time.Now()) {
		t.Errorf("expiry = %v, want future", expiry)
	}

	jobID, fileID, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if jobID != 42 || fileID != 7 {
		t.Errorf("claims = %d/%d, want 42/7", jobID, fileID)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	s, _ := NewSigner("a-long-enough-test-secret")
	tok, _, _ := s.Sign(42, 7)

	if _, _, err := s.Verify(tok + "x"); err == nil {
		t.Error("tampered token must not verify")
	}
	if _, _, err := s.Verify("not.a.token"); err == nil {
		t.Error("garbage must not verify")
	}

	// A token signed with a different secret is rejected.
	other, _ := NewSigner("some-other-signing-secret")
	otherTok, _, _ := other.Sign(42, 7)
	if _, _, err := s.Verify(otherTok); err == nil {
		t.Error("token from a different secret must not verify")
	}
	if !strings.Contains(tok, ".") {
		t.Error("token should be a compact JWT")
	}
}

func TestNewSignerRejectsShortSecret(t *testing.T) {
	if _, err := NewSigner("short"); err == nil {
		t.Error("short secret must be rejected")
	}
}
