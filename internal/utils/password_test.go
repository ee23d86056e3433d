package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse 1")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse 1", hash)

	assert.True(t, CheckPassword("correct horse 1", hash))
	assert.False(t, CheckPassword("wrong horse 1", hash))
	assert.False(t, CheckPassword("correct horse 1", "not-a-hash"))
}

func TestCheckPasswordStrength(t *testing.T) {
	assert.Empty(t, CheckPasswordStrength("abcdefg1"))

	assert.Len(t, CheckPasswordStrength("ab1"), 1)         // short
	assert.Len(t, CheckPasswordStrength("12345678"), 1)    // no letter
	assert.Len(t, CheckPasswordStrength("abcdefgh"), 1)    // no digit
	assert.Len(t, CheckPasswordStrength(""), 3)
}

func TestGenerateRandomString(t *testing.T) {
	a, err := GenerateRandomString(32)
	require.NoError(t, err)
	b, err := GenerateRandomString(32)
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}
