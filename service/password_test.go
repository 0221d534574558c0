package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_HashAndVerify(t *testing.T) {
	hasher, err := NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	password := "mySecretPassword123"

	hashed, err := hasher.Hash(password)
	require.NoError(t, err)
	assert.NotEqual(t, password, hashed)

	assert.True(t, hasher.Verify(password, hashed))
	assert.False(t, hasher.Verify("notMyPassword", hashed))
	assert.False(t, hasher.Verify(password, "not-a-bcrypt-hash"))
}

func TestNewBcryptHasher_RejectsBadCost(t *testing.T) {
	_, err := NewBcryptHasher(bcrypt.MinCost - 1)
	assert.Error(t, err)
	_, err = NewBcryptHasher(bcrypt.MaxCost + 1)
	assert.Error(t, err)
}
