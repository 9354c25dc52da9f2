// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// pbkdf2Salt is fixed rather than per-installation: the derived key must
// be reproducible from the database password alone, with no separate
// secret to lose.
var pbkdf2Salt = []byte("loginsight-credential-store-v1")

const pbkdf2Iterations = 100_000

// deriveKey turns the store password into a 32-byte AES-256 key.
func deriveKey(dbPassword string) []byte {
	return pbkdf2.Key([]byte(dbPassword), pbkdf2Salt, pbkdf2Iterations, 32, sha256.New)
}

// encryptCredential seals plaintext under AES-256-GCM, returning
// nonce||ciphertext.
func encryptCredential(dbPassword, plaintext string) (string, error) {
	key := deriveKey(dbPassword)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("config: init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("config: init gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("config: read nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return string(sealed), nil
}

// decryptCredential reverses encryptCredential. Any failure — wrong key,
// truncated blob, tampered ciphertext — yields ("", false); callers treat
// this the same as "not set" rather than surfacing an error, per the
// credential-at-rest contract.
func decryptCredential(dbPassword, sealed string) (string, bool) {
	key := deriveKey(dbPassword)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", false
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", false
	}
	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize {
		return "", false
	}
	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := gcm.Open(nil, []byte(nonce), []byte(ciphertext), nil)
	if err != nil {
		return "", false
	}
	return string(plaintext), true
}
