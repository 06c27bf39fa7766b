package exchangeb

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/wealthdesk/exchange-gateway/internal/partner"
)

const alphanumerics = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func randomAlphanumeric(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = alphanumerics[int(b)%len(alphanumerics)]
	}
	return string(out), nil
}

// buildAuthHeaders produces the per-request signed headers this exchange
// requires. There is no session: every request carries a fresh signature
// built from random salt, iv and nonce, so consecutive calls never repeat.
//
// The password material is AES-128-CBC over "secret|nonce" keyed by the first
// 16 bytes of the license key, packaged as base64(iv::salt::base64(cipher)).
func buildAuthHeaders(creds partner.Credentials) (map[string]string, error) {
	if len(creds.LicenseKey) < 16 {
		return nil, fmt.Errorf("license key must be at least 16 characters, got %d", len(creds.LicenseKey))
	}

	salt, err := randomAlphanumeric(32)
	if err != nil {
		return nil, err
	}
	ivString, err := randomAlphanumeric(32)
	if err != nil {
		return nil, err
	}
	nonce, err := randomAlphanumeric(16)
	if err != nil {
		return nil, err
	}

	material, err := encryptPassword(creds.Secret, creds.LicenseKey, salt, ivString, nonce)
	if err != nil {
		return nil, err
	}

	basic := base64.StdEncoding.EncodeToString([]byte(creds.LoginID + ":" + material))
	return map[string]string{
		"Content-Type":  "application/json",
		"memberId":      creds.MemberID,
		"Authorization": "BASIC " + basic,
	}, nil
}

func encryptPassword(secret, licenseKey, salt, ivString, nonce string) (string, error) {
	block, err := aes.NewCipher([]byte(licenseKey)[:16])
	if err != nil {
		return "", err
	}

	plaintext := pkcs7Pad([]byte(secret+"|"+nonce), aes.BlockSize)
	ciphertext := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, []byte(ivString)[:16]).CryptBlocks(ciphertext, plaintext)

	combined := ivString + "::" + salt + "::" + base64.StdEncoding.EncodeToString(ciphertext)
	return base64.StdEncoding.EncodeToString([]byte(combined)), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+padding)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(padding)
	}
	return out
}
