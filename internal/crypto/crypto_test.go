package crypto

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBox(t *testing.T) *Box {
	t.Helper()
	box, err := NewBox([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return box
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	box := testBox(t)

	for _, plain := range []string{"hi", "olá, tudo bem?", strings.Repeat("x", 4096)} {
		enc, err := box.Encrypt(plain)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(enc, SchemePrefix))
		assert.Equal(t, plain, box.Decrypt(enc))
	}
}

func TestEncryptEmptyStaysEmpty(t *testing.T) {
	box := testBox(t)

	enc, err := box.Encrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", enc)
	assert.Equal(t, "", box.Decrypt(""))
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	box := testBox(t)

	a, err := box.Encrypt("same text")
	require.NoError(t, err)
	b, err := box.Encrypt("same text")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecryptLegacyBase64(t *testing.T) {
	box := testBox(t)

	legacy := base64.StdEncoding.EncodeToString([]byte("plain old text"))
	assert.Equal(t, "plain old text", box.Decrypt(legacy))
}

func TestDecryptCorruptInputReturnsPlaceholder(t *testing.T) {
	box := testBox(t)

	enc, err := box.Encrypt("secret")
	require.NoError(t, err)

	corrupted := enc[:len(enc)-4] + "AAAA"
	assert.Equal(t, Placeholder, box.Decrypt(corrupted))
	assert.Equal(t, Placeholder, box.Decrypt(SchemePrefix+"not-base64!!"))
	assert.Equal(t, Placeholder, box.Decrypt(SchemePrefix+base64.StdEncoding.EncodeToString([]byte("short"))))
	assert.Equal(t, Placeholder, box.Decrypt("also not base64 \xff"))
}

func TestDecryptWithRotatedKeys(t *testing.T) {
	oldKey := []byte("old-key-old-key-old-key-old-key!")
	newKey := []byte("new-key-new-key-new-key-new-key!")

	oldBox, err := NewBox(oldKey)
	require.NoError(t, err)
	enc, err := oldBox.Encrypt("carried over")
	require.NoError(t, err)

	rotated, err := NewBox(newKey, oldKey)
	require.NoError(t, err)
	assert.Equal(t, "carried over", rotated.Decrypt(enc))

	noLegacy, err := NewBox(newKey)
	require.NoError(t, err)
	assert.Equal(t, Placeholder, noLegacy.Decrypt(enc))
}

func TestDecodeKey(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString(make([]byte, 32))
	key, err := DecodeKey(b64)
	require.NoError(t, err)
	assert.Len(t, key, 32)

	key, err = DecodeKey("00112233445566778899aabbccddeeff")
	require.NoError(t, err)
	assert.Len(t, key, 16)

	_, err = DecodeKey("tiny")
	assert.Error(t, err)
	_, err = DecodeKey("")
	assert.Error(t, err)
}

func TestNewBoxFromKeysCSV(t *testing.T) {
	primary := base64.StdEncoding.EncodeToString([]byte("new-key-new-key-new-key-new-key!"))
	legacy := base64.StdEncoding.EncodeToString([]byte("old-key-old-key-old-key-old-key!"))

	box, err := NewBoxFromKeysCSV(primary + ", " + legacy)
	require.NoError(t, err)

	oldBox, err := NewBoxFromKeysCSV(legacy)
	require.NoError(t, err)
	enc, err := oldBox.Encrypt("rotated")
	require.NoError(t, err)
	assert.Equal(t, "rotated", box.Decrypt(enc))

	_, err = NewBoxFromKeysCSV(" , ")
	assert.Error(t, err)
}
