package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func generateECPEM(t *testing.T) (privatePEM, publicPEM string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	privatePEM = string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}))
	publicPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))
	return privatePEM, publicPEM
}

func TestLoadPEM_InlinePEM(t *testing.T) {
	pemBytes, err := LoadPEM(testPrivateKeyPEM)
	if err != nil {
		t.Fatalf("LoadPEM: %v", err)
	}
	if !strings.Contains(string(pemBytes), "-----BEGIN") {
		t.Error("LoadPEM did not return PEM content")
	}
}

func TestLoadPEM_InlinePEMWithLiteralNewlines(t *testing.T) {
	oneLine := strings.ReplaceAll(testPublicKeyPEM, "\n", `\n`)
	pemBytes, err := LoadPEM(oneLine)
	if err != nil {
		t.Fatalf("LoadPEM: %v", err)
	}
	if string(pemBytes) != testPublicKeyPEM {
		t.Errorf("LoadPEM did not expand literal \\n sequences")
	}
	if _, err := ParsePublicKey(oneLine); err != nil {
		t.Errorf("ParsePublicKey(one line): %v", err)
	}
}

func TestLoadPEM_FilePath(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "test.pem")
	if err := os.WriteFile(tmpFile, []byte(testPrivateKeyPEM), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	pemBytes, err := LoadPEM(tmpFile)
	if err != nil {
		t.Fatalf("LoadPEM: %v", err)
	}
	if string(pemBytes) != testPrivateKeyPEM {
		t.Error("LoadPEM returned different content than the file")
	}
}

func TestLoadPEM_Errors(t *testing.T) {
	if _, err := LoadPEM("   "); err != ErrInvalidKey {
		t.Errorf("LoadPEM(empty) = %v, want ErrInvalidKey", err)
	}
	if _, err := LoadPEM(filepath.Join(t.TempDir(), "missing.pem")); err == nil {
		t.Error("LoadPEM(missing file) should fail")
	}
}

func TestParsePrivateKey_RSAAndEC(t *testing.T) {
	rsaSigner, err := ParsePrivateKey(testPrivateKeyPEM)
	if err != nil {
		t.Fatalf("ParsePrivateKey(rsa): %v", err)
	}
	if KeyAlg(rsaSigner.Public()) != "RS256" {
		t.Errorf("KeyAlg(rsa) = %q, want RS256", KeyAlg(rsaSigner.Public()))
	}

	ecPriv, ecPub := generateECPEM(t)
	ecSigner, err := ParsePrivateKey(ecPriv)
	if err != nil {
		t.Fatalf("ParsePrivateKey(ec): %v", err)
	}
	if KeyAlg(ecSigner.Public()) != "ES256" {
		t.Errorf("KeyAlg(ec) = %q, want ES256", KeyAlg(ecSigner.Public()))
	}
	pub, err := ParsePublicKey(ecPub)
	if err != nil {
		t.Fatalf("ParsePublicKey(ec): %v", err)
	}
	if KeyAlg(pub) != "ES256" {
		t.Errorf("KeyAlg(ec public) = %q, want ES256", KeyAlg(pub))
	}
}

func TestParseKey_InvalidPEM(t *testing.T) {
	bad := "-----BEGIN NOTHING-----\nAAAA\n-----END NOTHING-----"
	if _, err := ParsePrivateKey(bad); err == nil {
		t.Error("ParsePrivateKey should reject unknown block type")
	}
	if _, err := ParsePublicKey(bad); err == nil {
		t.Error("ParsePublicKey should reject unknown block type")
	}
	if _, err := ParsePrivateKey("-----BEGIN garbage"); err != ErrInvalidKey {
		t.Errorf("ParsePrivateKey(undecodable) = %v, want ErrInvalidKey", err)
	}
	if KeyAlg("not a key") != "" {
		t.Error("KeyAlg of unknown type should be empty")
	}
}

func TestNewTokenProviderFromPEM_MismatchedFamilies(t *testing.T) {
	_, ecPub := generateECPEM(t)
	if _, err := NewTokenProviderFromPEM(testPrivateKeyPEM, ecPub, "iss", "aud", time.Minute); err != ErrInvalidKey {
		t.Fatalf("NewTokenProviderFromPEM(rsa, ec) = %v, want ErrInvalidKey", err)
	}
}

func TestKeyAlg_OnlyP256IsES256(t *testing.T) {
	p384, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if got := KeyAlg(&p384.PublicKey); got != "" {
		t.Errorf("KeyAlg(P-384) = %q, want empty", got)
	}
	p256, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if got := KeyAlg(&p256.PublicKey); got != "ES256" {
		t.Errorf("KeyAlg(P-256) = %q, want ES256", got)
	}
}
