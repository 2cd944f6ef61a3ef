package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuildTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)

	token, _, err := tm.GenerateGuildToken("guild-1")
	require.NoError(t, err)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "guild", claims.TokenType)
	assert.True(t, claims.AllowsGuild("guild-1"))
	assert.False(t, claims.AllowsGuild("guild-2"))
}

func TestUserTokenGuildAccess(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)

	token, _, err := tm.GenerateUserToken("u1", []string{"guild-1", "guild-3"})
	require.NoError(t, err)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.True(t, claims.AllowsGuild("guild-3"))
	assert.False(t, claims.AllowsGuild("guild-2"))
}

func TestParseRejectsForeignSecret(t *testing.T) {
	token, _, err := NewTokenManager("secret-a", 60).GenerateGuildToken("guild-1")
	require.NoError(t, err)

	_, err = NewTokenManager("secret-b", 60).ParseToken(token)
	assert.Error(t, err)
}
