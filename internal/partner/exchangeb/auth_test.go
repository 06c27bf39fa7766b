package exchangeb

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/wealthdesk/exchange-gateway/internal/partner"
)

var testCreds = partner.Credentials{
	AdvisorID:  "adv-9",
	MemberID:   "M001",
	LoginID:    "advisor1",
	Secret:     "api-secret-value",
	LicenseKey: "0123456789abcdefEXTRA",
}

func TestBuildAuthHeadersShape(t *testing.T) {
	headers, err := buildAuthHeaders(testCreds)
	if err != nil {
		t.Fatal(err)
	}

	if headers["memberId"] != "M001" {
		t.Errorf("memberId = %q", headers["memberId"])
	}
	if headers["Content-Type"] != "application/json" {
		t.Errorf("Content-Type = %q", headers["Content-Type"])
	}
	auth := headers["Authorization"]
	if !strings.HasPrefix(auth, "BASIC ") {
		t.Fatalf("Authorization = %q, want BASIC prefix", auth)
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "BASIC "))
	if err != nil {
		t.Fatalf("authorization payload is not base64: %v", err)
	}
	loginID, material, found := strings.Cut(string(decoded), ":")
	if !found || loginID != "advisor1" {
		t.Fatalf("decoded authorization = %q, want loginId:material", decoded)
	}
	if material == "" {
		t.Error("empty password material")
	}
}

// Decrypt the material back to prove the encoding matches what the partner
// expects: base64(iv::salt::base64(AES-128-CBC(secret|nonce))).
func TestPasswordMaterialDecryptsBack(t *testing.T) {
	headers, err := buildAuthHeaders(testCreds)
	if err != nil {
		t.Fatal(err)
	}

	decoded, _ := base64.StdEncoding.DecodeString(strings.TrimPrefix(headers["Authorization"], "BASIC "))
	_, material, _ := strings.Cut(string(decoded), ":")

	combined, err := base64.StdEncoding.DecodeString(material)
	if err != nil {
		t.Fatalf("material is not base64: %v", err)
	}
	parts := strings.Split(string(combined), "::")
	if len(parts) != 3 {
		t.Fatalf("material = %q, want iv::salt::ciphertext", combined)
	}
	ivString, salt, ctB64 := parts[0], parts[1], parts[2]
	if len(ivString) != 32 || len(salt) != 32 {
		t.Errorf("iv len = %d, salt len = %d, want 32 each", len(ivString), len(salt))
	}

	ciphertext, err := base64.StdEncoding.DecodeString(ctB64)
	if err != nil {
		t.Fatalf("ciphertext is not base64: %v", err)
	}

	block, err := aes.NewCipher([]byte(testCreds.LicenseKey)[:16])
	if err != nil {
		t.Fatal(err)
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, []byte(ivString)[:16]).CryptBlocks(plain, ciphertext)

	// Strip PKCS#7 padding.
	padding := int(plain[len(plain)-1])
	if padding <= 0 || padding > aes.BlockSize {
		t.Fatalf("bad padding byte %d", padding)
	}
	plain = plain[:len(plain)-padding]

	secret, nonce, found := strings.Cut(string(plain), "|")
	if !found {
		t.Fatalf("plaintext = %q, want secret|nonce", plain)
	}
	if secret != testCreds.Secret {
		t.Errorf("secret = %q, want %q", secret, testCreds.Secret)
	}
	if len(nonce) != 16 {
		t.Errorf("nonce len = %d, want 16", len(nonce))
	}
}

func TestConsecutiveHeadersDiffer(t *testing.T) {
	h1, err := buildAuthHeaders(testCreds)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := buildAuthHeaders(testCreds)
	if err != nil {
		t.Fatal(err)
	}
	if h1["Authorization"] == h2["Authorization"] {
		t.Error("consecutive calls produced identical signatures")
	}
}

func TestShortLicenseKeyRejected(t *testing.T) {
	creds := testCreds
	creds.LicenseKey = "too-short"
	if _, err := buildAuthHeaders(creds); err == nil {
		t.Error("expected error for a short license key")
	}
}

func TestRandomAlphanumericCharset(t *testing.T) {
	s, err := randomAlphanumeric(64)
	if err != nil {
		t.Fatal(err)
	}
	if len(s) != 64 {
		t.Fatalf("len = %d", len(s))
	}
	for _, r := range s {
		if !strings.ContainsRune(alphanumerics, r) {
			t.Errorf("unexpected character %q", r)
		}
	}
}
