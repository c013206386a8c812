// Package snapshot persists a Coordinator's in-memory state to disk,
// encrypted at rest with a password-derived key, so the engine can restart
// without rebuilding every intent and balance from the audit trail.
package snapshot

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"

	"github.com/xchain-labs/orderbook-engine/internal/orderbook"
)

const (
	argon2Time    = 4
	argon2Memory  = 256 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32
	argon2SaltLen = 16
	aesNonceLen   = 12
	formatVersion = 1
)

// Save encrypts coordinator's exported state with password and writes it to
// path, creating parent directories as needed.
func Save(path string, coordinator *orderbook.Coordinator, password string) error {
	state := coordinator.ExportState()
	plaintext, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	encrypted, err := encrypt(plaintext, password)
	if err != nil {
		return fmt.Errorf("encrypting snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	if err := os.WriteFile(path, encrypted, 0o600); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// Load decrypts the snapshot at path with password and restores it into
// coordinator. coordinator should be freshly constructed via
// orderbook.NewCoordinator; any state it already holds is discarded.
func Load(path string, coordinator *orderbook.Coordinator, password string) error {
	encrypted, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}

	plaintext, err := decrypt(encrypted, password)
	if err != nil {
		return fmt.Errorf("decrypting snapshot: %w", err)
	}

	var state orderbook.State
	if err := json.Unmarshal(plaintext, &state); err != nil {
		return fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	coordinator.ImportState(state)
	return nil
}

// encrypt derives an AES-256-GCM key from password via Argon2id and seals
// data, prefixing the ciphertext with a small fixed-width header so decrypt
// can recover the parameters used.
//
// Format: [version:1][salt:16][nonce:12][ciphertext...]
func encrypt(data []byte, password string) ([]byte, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	nonce := make([]byte, aesNonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, data, nil)

	out := make([]byte, 0, 1+argon2SaltLen+aesNonceLen+len(ciphertext))
	out = append(out, formatVersion)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

func decrypt(data []byte, password string) ([]byte, error) {
	minSize := 1 + argon2SaltLen + aesNonceLen
	if len(data) < minSize {
		return nil, fmt.Errorf("snapshot too short: %d bytes", len(data))
	}
	version := data[0]
	if version != formatVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", version)
	}
	offset := 1
	salt := data[offset : offset+argon2SaltLen]
	offset += argon2SaltLen
	nonce := data[offset : offset+aesNonceLen]
	offset += aesNonceLen
	ciphertext := data[offset:]

	key := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: wrong password or corrupted snapshot")
	}
	return plaintext, nil
}
