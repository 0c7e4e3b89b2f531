// Package crypto encrypts message text at rest with AES-256-GCM. Ciphertext
// is tagged with a scheme prefix followed by base64 of nonce plus sealed
// payload. Untagged values are treated as the legacy format: plain base64 of
// UTF-8 text. Decrypt never fails; unrecognized or corrupt input degrades to
// a fixed placeholder so rendering pipelines keep working.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"
)

// SchemePrefix tags ciphertext produced by the current scheme version.
const SchemePrefix = "gcm:v1:"

// Placeholder is returned by Decrypt for input it cannot make sense of.
const Placeholder = "[unreadable message]"

const nonceSize = 12

// Box performs authenticated encryption with a primary key and optional
// legacy keys kept for decryption-only rotation.
type Box struct {
	primary cipher.AEAD
	legacy  []cipher.AEAD
}

// NewBox builds a Box from raw AES keys. The first key encrypts; all keys are
// tried on decryption, primary first.
func NewBox(primary []byte, legacy ...[]byte) (*Box, error) {
	aead, err := newGCM(primary)
	if err != nil {
		return nil, fmt.Errorf("crypto: primary key: %w", err)
	}
	box := &Box{primary: aead}
	for i, key := range legacy {
		old, err := newGCM(key)
		if err != nil {
			return nil, fmt.Errorf("crypto: legacy key %d: %w", i, err)
		}
		box.legacy = append(box.legacy, old)
	}
	return box, nil
}

// NewBoxFromKeysCSV builds a Box from a comma-separated list of encoded keys.
// The first entry is the primary; the rest are legacy rotation keys.
func NewBoxFromKeysCSV(raw string) (*Box, error) {
	keys, err := DecodeKeysCSV(raw)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("crypto: no encryption keys configured")
	}
	return NewBox(keys[0], keys[1:]...)
}

// Encrypt seals plaintext under the primary key with a fresh random nonce.
// Empty input stays empty.
func (b *Box) Encrypt(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("crypto: nonce: %w", err)
	}
	sealed := b.primary.Seal(nonce, nonce, []byte(plain), nil)
	return SchemePrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. It also accepts the untagged legacy format and
// returns Placeholder for anything else. It never returns an error.
func (b *Box) Decrypt(enc string) string {
	s := strings.TrimSpace(enc)
	if s == "" {
		return ""
	}

	if strings.HasPrefix(s, SchemePrefix) {
		return b.openTagged(strings.TrimPrefix(s, SchemePrefix))
	}

	// Legacy format: plain base64 of UTF-8 text, written before encryption
	// was introduced.
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil || !utf8.Valid(decoded) {
		return Placeholder
	}
	return string(decoded)
}

func (b *Box) openTagged(payload string) string {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(raw) <= nonceSize {
		return Placeholder
	}
	nonce, sealed := raw[:nonceSize], raw[nonceSize:]

	for _, aead := range append([]cipher.AEAD{b.primary}, b.legacy...) {
		if plain, err := aead.Open(nil, nonce, sealed, nil); err == nil {
			return string(plain)
		}
	}
	return Placeholder
}

// DecodeKey accepts a hex or base64 encoded AES key of 16, 24 or 32 bytes.
func DecodeKey(raw string) ([]byte, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, fmt.Errorf("crypto: encryption key is empty")
	}
	if b, err := hex.DecodeString(value); err == nil && validKeyLen(len(b)) {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(value); err == nil && validKeyLen(len(b)) {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(value); err == nil && validKeyLen(len(b)) {
		return b, nil
	}
	return nil, fmt.Errorf("crypto: key must be hex or base64 encoded 16/24/32-byte value")
}

// DecodeKeysCSV parses comma-separated encoded keys, skipping blanks.
func DecodeKeysCSV(raw string) ([][]byte, error) {
	parts := strings.Split(raw, ",")
	result := make([][]byte, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, err := DecodeKey(part)
		if err != nil {
			return nil, err
		}
		result = append(result, key)
	}
	return result, nil
}

func validKeyLen(n int) bool {
	return n == 16 || n == 24 || n == 32
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
