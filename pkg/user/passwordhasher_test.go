package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashers(t *testing.T) {
	hashers := map[string]PasswordHasher{
		"bcrypt":   NewBcryptHasher(bcrypt.MinCost),
		"argon2id": NewArgon2Hasher(),
	}

	for name, h := range hashers {
		t.Run(name, func(t *testing.T) {
			hash, err := h.Hash("password123")
			require.NoError(t, err)
			assert.NotEqual(t, "password123", hash)

			// salted: same input, different hash
			other, err := h.Hash("password123")
			require.NoError(t, err)
			assert.NotEqual(t, hash, other)

			ok, err := h.Verify("password123", hash)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = h.Verify("password124", hash)
			require.NoError(t, err)
			assert.False(t, ok)

			_, err = h.Hash("")
			assert.Error(t, err)
		})
	}
}

func TestArgon2Hasher_RejectsMalformedHash(t *testing.T) {
	h := NewArgon2Hasher()
	_, err := h.Verify("password123", "$bcrypt$whatever")
	assert.Error(t, err)
}

func TestNewPasswordHasher(t *testing.T) {
	h, err := NewPasswordHasher("", 0)
	require.NoError(t, err)
	assert.IsType(t, &BcryptHasher{}, h)

	h, err = NewPasswordHasher("argon2id", 0)
	require.NoError(t, err)
	assert.IsType(t, &Argon2Hasher{}, h)

	_, err = NewPasswordHasher("md5", 0)
	assert.Error(t, err)
}
