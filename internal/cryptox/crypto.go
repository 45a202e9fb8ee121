// Package cryptox holds the vault's cryptographic primitives: argon2id key
// derivation, AES-GCM sealing with a prepended nonce, and the canary used to
// verify that a re-derived key matches an existing vault.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"

	"golang.org/x/crypto/argon2"
)

// KeySize is the length of every derived key (AES-256).
const KeySize = 32

// canaryText is sealed with the vault key when the vault is created.
const canaryText = "dialkeeper-vault-canary-v1"

var ErrCiphertextTooShort = errors.New("ciphertext too short")

func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, KeySize)
}

// DeriveVaultKey binds the key to both credentials: the username is appended
// to the persisted salt before derivation.
func DeriveVaultKey(username string, password []byte, salt []byte) []byte {
	material := make([]byte, 0, len(salt)+len(username))
	material = append(material, salt...)
	material = append(material, username...)
	return DeriveMasterKey(password, material)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext using AES-GCM and returns nonce || ciphertext || tag.
//
// The key must be a valid AES key length (16, 24, or 32 bytes). A new random
// nonce is generated for each call.
func Seal(key, plaintext []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return aesgcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal. A wrong key or tampered blob yields an error from the
// AEAD; callers must not distinguish between the two.
func Open(key, blob []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonceSize := aesgcm.NonceSize()
	if len(blob) < nonceSize {
		return nil, ErrCiphertextTooShort
	}

	nonce, ciphertext := blob[:nonceSize], blob[nonceSize:]
	return aesgcm.Open(nil, nonce, ciphertext, nil)
}

// SealJSON serializes v to JSON and seals it with key.
//
// Example:
//
//	blob, err := SealJSON(map[string]any{"user": "alice"}, key)
//	if err != nil {
//	    log.Fatal(err)
//	}
func SealJSON(v any, key []byte) ([]byte, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Seal(key, plaintext)
}

// OpenJSON opens blob with key and unmarshals the JSON into v.
func OpenJSON(blob, key []byte, v any) error {
	plaintext, err := Open(key, blob)
	if err != nil {
		return err
	}
	return json.Unmarshal(plaintext, v)
}

// MakeCanary seals the canary constant with key.
func MakeCanary(key []byte) ([]byte, error) {
	return Seal(key, []byte(canaryText))
}

// VerifyCanary reports whether key opens the canary and yields the constant.
func VerifyCanary(key, canary []byte) bool {
	plaintext, err := Open(key, canary)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(plaintext, []byte(canaryText)) == 1
}
