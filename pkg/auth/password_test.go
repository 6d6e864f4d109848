package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher(t *testing.T) {
	hasher, err := NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	hash, err := hasher.Hash("Secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "Secret123", hash)

	ok, err := hasher.Compare(hash, "Secret123")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hasher.Compare(hash, "Secret124")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPasswordHashesAreSalted(t *testing.T) {
	hasher, err := NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	a, err := hasher.Hash("Secret123")
	require.NoError(t, err)
	b, err := hasher.Hash("Secret123")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestPasswordHasherCost(t *testing.T) {
	_, err := NewPasswordHasher(bcrypt.MaxCost + 1)
	assert.Error(t, err)

	hasher, err := NewPasswordHasher(0)
	require.NoError(t, err)
	assert.Equal(t, DefaultBcryptCost, hasher.cost)
}

func TestCompareMalformedHash(t *testing.T) {
	hasher, err := NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	ok, err := hasher.Compare("not-a-hash", "Secret123")
	assert.False(t, ok)
	assert.Error(t, err)

	assert.NotPanics(t, func() { hasher.CompareDummy("Secret123") })
}
