package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptAESWithAAD(t *testing.T) {
	key, err := NewAESKey()
	require.NoError(t, err)

	plaintext := []byte("hello tradewire")
	aad := []byte("session_token")

	sealed, err := EncryptAESWithAAD(plaintext, key, aad)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, sealed)

	opened, err := DecryptAESWithAAD(sealed, key, aad)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestDecryptAESWithAAD_WrongAAD(t *testing.T) {
	key, err := NewAESKey()
	require.NoError(t, err)

	sealed, err := EncryptAESWithAAD([]byte("payload"), key, []byte("aad-a"))
	require.NoError(t, err)

	_, err = DecryptAESWithAAD(sealed, key, []byte("aad-b"))
	assert.Error(t, err)
}

func TestDecryptAESWithAAD_ShortCiphertext(t *testing.T) {
	key, err := NewAESKey()
	require.NoError(t, err)

	_, err = DecryptAESWithAAD([]byte("short"), key, nil)
	assert.Error(t, err)
}

func TestEncryptAESWithAAD_BadKeySize(t *testing.T) {
	_, err := EncryptAESWithAAD([]byte("data"), []byte("tiny"), nil)
	assert.Error(t, err)
}

func TestDeriveArgon2idKey_Deterministic(t *testing.T) {
	salt, err := RandomBytes(16)
	require.NoError(t, err)

	params := DefaultArgon2idParams()
	k1, err := DeriveArgon2idKey("device-secret", salt, params)
	require.NoError(t, err)
	k2, err := DeriveArgon2idKey("device-secret", salt, params)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 32)

	k3, err := DeriveArgon2idKey("other-secret", salt, params)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)
}

func TestWipeBytes(t *testing.T) {
	b := []byte{1, 2, 3}
	WipeBytes(b)
	assert.Equal(t, []byte{0, 0, 0}, b)
}
