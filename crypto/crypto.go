// Package crypto provides the note content cipher and password hashing for
// quickpad. Note content is encrypted client-side with AES-GCM under a key
// derived from the user's password; the server only ever verifies a separate
// Argon2id hash of the same password.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// ErrDecryptionFailed is returned when a blob cannot be decrypted: wrong
// password, truncated data, or an authentication tag mismatch. Callers never
// see partial plaintext.
var ErrDecryptionFailed = errors.New("decryption failed")

const nonceSize = 12

// DeriveKey derives the 32-byte AES key from a note password.
//
// The derivation is a bare SHA-256 of the password with no per-note salt,
// which matches what deployed clients produce. Changing it would break every
// stored ciphertext, so a salted scheme has to be introduced as a new blob
// format, not by editing this function.
func DeriveKey(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	return sum[:]
}

// EncryptText encrypts plaintext with AES-GCM under a key derived from
// password. A fresh random nonce is generated per call and prepended to the
// ciphertext; the result is base64 encoded for storage and transport.
func EncryptText(plaintext, password string) (string, error) {
	aead, err := newAEAD(password)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	ciphertext := aead.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(append(nonce, ciphertext...)), nil
}

// DecryptText reverses EncryptText. Any integrity failure surfaces as
// ErrDecryptionFailed.
func DecryptText(blob, password string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	if len(raw) < nonceSize {
		return "", ErrDecryptionFailed
	}

	aead, err := newAEAD(password)
	if err != nil {
		return "", err
	}

	plaintext, err := aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

func newAEAD(password string) (cipher.AEAD, error) {
	block, err := aes.NewCipher(DeriveKey(password))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
