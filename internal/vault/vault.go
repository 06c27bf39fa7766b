// Package vault encrypts partner credentials at rest. Each field is sealed
// independently with AES-256-GCM under a process-wide key, so a leaked
// database row never exposes usable secrets.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ErrDecryption marks any failure to recover a plaintext: wrong key, corrupt
// ciphertext, or a tampered auth tag. Callers treat it as non-retryable.
var ErrDecryption = errors.New("credential decryption failed")

type Vault struct {
	aead cipher.AEAD
}

// New builds a Vault from a base64-encoded 32-byte key. An empty key is
// tolerated for local development: a random key is generated and a warning
// logged, since everything encrypted with it is lost on restart.
func New(keyBase64 string) (*Vault, error) {
	var key []byte
	if keyBase64 == "" {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating ephemeral vault key: %w", err)
		}
		log.Warn().Msg("VAULT_KEY not set, using an ephemeral key; stored credentials will not survive a restart")
	} else {
		decoded, err := base64.StdEncoding.DecodeString(keyBase64)
		if err != nil {
			return nil, fmt.Errorf("decoding vault key: %w", err)
		}
		if len(decoded) != 32 {
			return nil, fmt.Errorf("vault key must be 32 bytes, got %d", len(decoded))
		}
		key = decoded
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Vault{aead: aead}, nil
}

// Encrypt seals a plaintext and returns the ciphertext and the nonce used,
// both base64-encoded. A fresh nonce is drawn for every call.
func (v *Vault) Encrypt(plaintext string) (ciphertext, iv string, err error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", "", err
	}
	sealed := v.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), base64.StdEncoding.EncodeToString(nonce), nil
}

// Decrypt reverses Encrypt. Any failure, including a flipped ciphertext bit,
// comes back wrapping ErrDecryption.
func (v *Vault) Decrypt(ciphertext, iv string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext encoding", ErrDecryption)
	}
	nonce, err := base64.StdEncoding.DecodeString(iv)
	if err != nil {
		return "", fmt.Errorf("%w: bad iv encoding", ErrDecryption)
	}
	if len(nonce) != v.aead.NonceSize() {
		return "", fmt.Errorf("%w: iv length %d", ErrDecryption, len(nonce))
	}
	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return string(plaintext), nil
}
