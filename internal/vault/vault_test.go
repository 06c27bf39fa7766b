package vault

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"
)

func testKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(key)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v, err := New(testKey(t))
	if err != nil {
		t.Fatal(err)
	}

	plaintexts := []string{"", "secret-api-key", "license|with|pipes", "長いマルチバイト文字列"}
	for _, plain := range plaintexts {
		ct, iv, err := v.Encrypt(plain)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", plain, err)
		}
		got, err := v.Decrypt(ct, iv)
		if err != nil {
			t.Fatalf("Decrypt(%q): %v", plain, err)
		}
		if got != plain {
			t.Errorf("round trip = %q, want %q", got, plain)
		}
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	v, err := New(testKey(t))
	if err != nil {
		t.Fatal(err)
	}

	ct1, iv1, _ := v.Encrypt("same plaintext")
	ct2, iv2, _ := v.Encrypt("same plaintext")
	if iv1 == iv2 {
		t.Error("expected distinct nonces for consecutive encryptions")
	}
	if ct1 == ct2 {
		t.Error("expected distinct ciphertexts for consecutive encryptions")
	}
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	v, err := New(testKey(t))
	if err != nil {
		t.Fatal(err)
	}

	ct, iv, _ := v.Encrypt("secret")
	raw, _ := base64.StdEncoding.DecodeString(ct)
	raw[0] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := v.Decrypt(tampered, iv); !errors.Is(err, ErrDecryption) {
		t.Errorf("expected ErrDecryption, got %v", err)
	}
}

func TestDecryptWrongKey(t *testing.T) {
	v1, _ := New(testKey(t))
	v2, _ := New(testKey(t))

	ct, iv, _ := v1.Encrypt("secret")
	if _, err := v2.Decrypt(ct, iv); !errors.Is(err, ErrDecryption) {
		t.Errorf("expected ErrDecryption, got %v", err)
	}
}

func TestDecryptBadEncoding(t *testing.T) {
	v, _ := New(testKey(t))
	if _, err := v.Decrypt("not base64!!", "also not"); !errors.Is(err, ErrDecryption) {
		t.Errorf("expected ErrDecryption, got %v", err)
	}
}

func TestNewRejectsShortKey(t *testing.T) {
	if _, err := New(base64.StdEncoding.EncodeToString([]byte("short"))); err == nil {
		t.Error("expected error for a short key")
	}
}

func TestNewEphemeralKey(t *testing.T) {
	v, err := New("")
	if err != nil {
		t.Fatal(err)
	}
	ct, iv, err := v.Encrypt("works anyway")
	if err != nil {
		t.Fatal(err)
	}
	got, err := v.Decrypt(ct, iv)
	if err != nil || got != "works anyway" {
		t.Errorf("ephemeral key round trip = %q, %v", got, err)
	}
}
