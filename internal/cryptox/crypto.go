// Package cryptox implements salted credential hashing for stored users.
//
// Credentials are derived with Argon2id and encoded as
//
//	argon2id$<hex salt>$<hex key>
//
// so the parameters travel with the record and a verifier never needs
// anything beyond the stored string.
package cryptox

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	scheme     = "argon2id"
	saltSize   = 16
	keyLength  = 32
	iterations = 1
	memory     = 64 * 1024
	threads    = 4
)

// ErrMalformedHash is returned when a stored credential cannot be decoded.
var ErrMalformedHash = errors.New("malformed credential hash")

// DeriveKey stretches password with salt using Argon2id.
func DeriveKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, iterations, memory, threads, keyLength)
}

// HashPassword returns an encoded credential for password with a fresh salt.
func HashPassword(password string) string {
	salt := common.GenerateRandByteArray(saltSize)
	return encode(salt, DeriveKey([]byte(password), salt))
}

// VerifyPassword reports whether password matches the encoded credential.
// The comparison runs in constant time.
func VerifyPassword(password, encoded string) (bool, error) {
	salt, want, err := decode(encoded)
	if err != nil {
		return false, err
	}
	got := DeriveKey([]byte(password), salt)
	defer common.WipeByteArray(got)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// BurnVerify performs the same amount of work as VerifyPassword against a
// throwaway salt. Callers use it when no credential exists so that lookups
// of unknown identities take as long as real ones.
func BurnVerify(password string) {
	key := DeriveKey([]byte(password), common.GenerateRandByteArray(saltSize))
	common.WipeByteArray(key)
}

func encode(salt, key []byte) string {
	return scheme + "$" + hex.EncodeToString(salt) + "$" + hex.EncodeToString(key)
}

func decode(encoded string) (salt, key []byte, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 3 || parts[0] != scheme {
		return nil, nil, ErrMalformedHash
	}
	if salt, err = hex.DecodeString(parts[1]); err != nil {
		return nil, nil, ErrMalformedHash
	}
	if key, err = hex.DecodeString(parts[2]); err != nil || len(key) != keyLength {
		return nil, nil, ErrMalformedHash
	}
	return salt, key, nil
}
