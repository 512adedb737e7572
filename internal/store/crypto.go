// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/roomcast/roomcast/internal/logging"
)

// KeyEnvVar, when set, derives the memory encryption key from its SHA-256.
const KeyEnvVar = "MEMORY_ENCRYPTION_KEY"

const keyFileName = ".memory.key"

// ErrBadCiphertext is returned for sealed blobs that fail to parse or
// authenticate.
var ErrBadCiphertext = errors.New("malformed or unauthenticated ciphertext")

// resolveKey returns the 32-byte AES key for the memory file. Precedence:
// the environment variable (hashed), an existing key file in dataDir, or a
// freshly generated key persisted with mode 0600.
func resolveKey(dataDir string) ([]byte, error) {
	if pass := os.Getenv(KeyEnvVar); pass != "" {
		sum := sha256.Sum256([]byte(pass))
		return sum[:], nil
	}

	path := filepath.Join(dataDir, keyFileName)
	if raw, err := os.ReadFile(path); err == nil {
		if len(raw) != 32 {
			return nil, fmt.Errorf("key file %s: want 32 bytes, have %d", path, len(raw))
		}
		return raw, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate memory key: %w", err)
	}
	if err := renameio.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}
	logging.Warn().
		Str("path", path).
		Msg("generated new memory encryption key; back it up to keep persisted names and matches readable")
	return key, nil
}

// seal encrypts plaintext as hex(iv) ":" hex(tag) ":" hex(ciphertext).
func seal(key, plaintext []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}
	out := gcm.Seal(nil, iv, plaintext, nil)

	// Seal appends the 16-byte tag; the wire format carries it separately.
	ct, tag := out[:len(out)-gcm.Overhead()], out[len(out)-gcm.Overhead():]
	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ct), nil
}

// open decrypts a sealed blob produced by seal.
func open(key []byte, sealed string) ([]byte, error) {
	parts := strings.Split(sealed, ":")
	if len(parts) != 3 {
		return nil, ErrBadCiphertext
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return nil, ErrBadCiphertext
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil {
		return nil, ErrBadCiphertext
	}
	ct, err := hex.DecodeString(parts[2])
	if err != nil {
		return nil, ErrBadCiphertext
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(iv) != gcm.NonceSize() || len(tag) != gcm.Overhead() {
		return nil, ErrBadCiphertext
	}

	plain, err := gcm.Open(nil, iv, append(ct, tag...), nil)
	if err != nil {
		return nil, ErrBadCiphertext
	}
	return plain, nil
}
