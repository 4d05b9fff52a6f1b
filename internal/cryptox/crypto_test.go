package cryptox

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	password := []byte("secret-password")
	salt := []byte("fixed-salt")

	k1 := DeriveKey(password, salt)
	k2 := DeriveKey(password, salt)
	require.Len(t, k1, keyLength)
	assert.True(t, bytes.Equal(k1, k2), "same inputs must derive the same key")

	k3 := DeriveKey(password, []byte("other-salt"))
	assert.False(t, bytes.Equal(k1, k3), "different salts must derive different keys")
}

func TestHashPassword_RoundTrip(t *testing.T) {
	encoded := HashPassword("password123")
	require.True(t, strings.HasPrefix(encoded, "argon2id$"))

	ok, err := VerifyPassword("password123", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("password124", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPassword_SaltsDiffer(t *testing.T) {
	a := HashPassword("same")
	b := HashPassword("same")
	assert.NotEqual(t, a, b)
}

func TestVerifyPassword_Malformed(t *testing.T) {
	cases := []string{
		"",
		"plain",
		"md5$00$00",
		"argon2id$zz$00",
		"argon2id$00$abcd",
	}
	for _, c := range cases {
		_, err := VerifyPassword("x", c)
		assert.ErrorIs(t, err, ErrMalformedHash, "input %q", c)
	}
}

func TestBurnVerify_DoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() { BurnVerify("whatever") })
}
