// Package crypto provides Argon2id + AES-256-GCM encryption for provider
// configuration at rest, mirroring the scheme internal/snapshot uses for
// state snapshot encryption.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
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

// Encrypt seals data under password, returning
// [version:1][salt:16][nonce:12][ciphertext...].
func Encrypt(data []byte, password string) ([]byte, error) {
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

// Decrypt reverses Encrypt.
func Decrypt(data []byte, password string) ([]byte, error) {
	minLen := 1 + argon2SaltLen + aesNonceLen
	if len(data) < minLen {
		return nil, errors.New("encrypted data too short")
	}
	if data[0] != formatVersion {
		return nil, fmt.Errorf("unsupported format version %d", data[0])
	}
	salt := data[1 : 1+argon2SaltLen]
	nonce := data[1+argon2SaltLen : minLen]
	ciphertext := data[minLen:]

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
		return nil, errors.New("authentication failed: wrong password or corrupted config")
	}
	return plaintext, nil
}
