package security

import (
	"encoding/base64"
	"testing"
)

func TestRandomOpaqueToken_EntropyAndEncoding(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		tok, err := RandomOpaqueToken()
		if err != nil {
			t.Fatalf("RandomOpaqueToken: %v", err)
		}
		raw, err := base64.RawURLEncoding.DecodeString(tok)
		if err != nil {
			t.Fatalf("token %q is not base64url: %v", tok, err)
		}
		if len(raw) != OpaqueTokenBytes {
			t.Fatalf("decoded length = %d, want %d", len(raw), OpaqueTokenBytes)
		}
		if seen[tok] {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = true
	}
}

func TestHashOpaqueToken(t *testing.T) {
	h1 := HashOpaqueToken("token-1")
	if h1 != HashOpaqueToken("token-1") {
		t.Error("HashOpaqueToken not deterministic")
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64 (SHA-256 hex)", len(h1))
	}
	if h1 == HashOpaqueToken("token-2") {
		t.Error("HashOpaqueToken produced same hash for different tokens")
	}
	if h1 == "token-1" {
		t.Error("hash must not equal the raw token")
	}
}

func TestOpaqueTokenHashEqual(t *testing.T) {
	stored := HashOpaqueToken("refresh-abc")
	tests := []struct {
		name  string
		token string
		hash  string
		want  bool
	}{
		{"match", "refresh-abc", stored, true},
		{"wrong token", "refresh-abd", stored, false},
		{"empty hash", "refresh-abc", "", false},
		{"raw token as hash", "refresh-abc", "refresh-abc", false},
	}
	for _, tt := range tests {
		if got := OpaqueTokenHashEqual(tt.token, tt.hash); got != tt.want {
			t.Errorf("%s: OpaqueTokenHashEqual = %v, want %v", tt.name, got, tt.want)
		}
	}
}
