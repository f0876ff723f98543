// Package vault seals tenant database passwords at rest.
//
// Blobs have the form hex(nonce):hex(ciphertext) and are sealed with
// XChaCha20-Poly1305 under a single process-wide key.
package vault

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/ritikbhatt20/Helius-Dexer/internal/domain"
)

// KeySize is the exact key length in bytes.
const KeySize = chacha20poly1305.KeySize

// Vault encrypts and decrypts short secrets.
type Vault struct {
	key []byte
}

// New builds a vault from a raw key. It fails unless the key is exactly KeySize bytes.
func New(key []byte) (*Vault, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", domain.ErrCrypto, KeySize, len(key))
	}
	k := make([]byte, KeySize)
	copy(k, key)
	return &Vault{key: k}, nil
}

// NewFromHex decodes a hex-encoded key, as stored in configuration.
func NewFromHex(hexKey string) (*Vault, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("%w: key is not valid hex", domain.ErrCrypto)
	}
	return New(key)
}

// Encrypt seals plaintext with a fresh random nonce.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrCrypto, err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: failed to read nonce: %v", domain.ErrCrypto, err)
	}

	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt. Malformed blobs and key changes yield ErrCrypto.
func (v *Vault) Decrypt(blob string) (string, error) {
	nonceHex, sealedHex, ok := strings.Cut(blob, ":")
	if !ok {
		return "", fmt.Errorf("%w: malformed ciphertext", domain.ErrCrypto)
	}

	nonce, err := hex.DecodeString(nonceHex)
	if err != nil || len(nonce) != chacha20poly1305.NonceSizeX {
		return "", fmt.Errorf("%w: malformed nonce", domain.ErrCrypto)
	}
	sealed, err := hex.DecodeString(sealedHex)
	if err != nil {
		return "", fmt.Errorf("%w: malformed ciphertext", domain.ErrCrypto)
	}

	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrCrypto, err)
	}

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext could not be authenticated", domain.ErrCrypto)
	}
	return string(plaintext), nil
}
