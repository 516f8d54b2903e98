package password_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authgate/authgate/internal/password"
)

const testBcryptCost = 4 // low cost for fast tests

func TestHashMatches(t *testing.T) {
	hasher := password.NewHasher(testBcryptCost)

	hash, err := hasher.Hash("s3cret")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "s3cret", hash)

	assert.True(t, hasher.Matches("s3cret", hash))
	assert.False(t, hasher.Matches("wrong", hash))
}

func TestMatches_EmptyHashNeverMatches(t *testing.T) {
	hasher := password.NewHasher(testBcryptCost)

	// OAuth-only accounts have no stored hash. Password verification
	// must fail cleanly for any input, including the empty string.
	assert.False(t, hasher.Matches("anything", ""))
	assert.False(t, hasher.Matches("", ""))
}

func TestHash_DistinctSalts(t *testing.T) {
	hasher := password.NewHasher(testBcryptCost)

	h1, err := hasher.Hash("s3cret")
	require.NoError(t, err)
	h2, err := hasher.Hash("s3cret")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}
