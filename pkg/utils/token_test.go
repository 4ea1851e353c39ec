package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundtrip(t *testing.T) {
	token, err := GenerateToken("507f1f77bcf86cd799439011", "test-secret")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := ParseToken(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, "507f1f77bcf86cd799439011", userID)
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("507f1f77bcf86cd799439011", "test-secret")
	require.NoError(t, err)

	_, err = ParseToken(token, "other-secret")
	assert.Error(t, err)
}

func TestParseTokenGarbage(t *testing.T) {
	_, err := ParseToken("not.a.token", "test-secret")
	assert.Error(t, err)

	_, err = ParseToken("", "test-secret")
	assert.Error(t, err)
}
