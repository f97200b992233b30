package utils

import (
	"testing"
	"time"

	"backend/entity"

	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	user := &entity.User{Utorid: "custom01", Role: entity.RoleCashier}
	user.ID = 7

	token, expiresAt, err := GenerateToken(user, "secret", time.Hour)
	require.NoError(t, err)
	require.True(t, expiresAt.After(time.Now()))

	claims, err := ParseToken(token, "secret")
	require.NoError(t, err)
	require.Equal(t, uint(7), claims.UserID)
	require.Equal(t, "custom01", claims.Utorid)
	require.Equal(t, entity.RoleCashier, claims.Role)
}

func TestTokenWrongSecret(t *testing.T) {
	user := &entity.User{Utorid: "custom01", Role: entity.RoleRegular}
	token, _, err := GenerateToken(user, "secret", time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(token, "other")
	require.Error(t, err)
}

func TestTokenExpired(t *testing.T) {
	user := &entity.User{Utorid: "custom01", Role: entity.RoleRegular}
	token, _, err := GenerateToken(user, "secret", -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token, "secret")
	require.Error(t, err)
}
