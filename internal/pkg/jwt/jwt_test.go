package jwt

import (
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessToken_Claims(t *testing.T) {
	svc := NewJWTService("secret", time.Hour)

	token, exp, err := svc.GenerateAccessToken("u1", "u1@example.com", user.RoleManager)
	require.NoError(t, err)
	assert.Greater(t, exp, time.Now().Unix())

	decoded, err := svc.JWTAuth().Decode(token)
	require.NoError(t, err)
	role, _ := decoded.Get("role")
	assert.Equal(t, "manager", role)
	typ, _ := decoded.Get("type")
	assert.Equal(t, TokenTypeAccess, typ)

	_, _, err = svc.ValidateSSEToken(token)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestSSEToken(t *testing.T) {
	svc := NewJWTService("secret", time.Hour)

	token, expiresIn, err := svc.GenerateSSEToken("u1", user.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, 300, expiresIn)

	userID, role, err := svc.ValidateSSEToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
	assert.Equal(t, user.RoleAdmin, role)

	_, _, err = NewJWTService("other", time.Hour).ValidateSSEToken(token)
	assert.Error(t, err)

	svc.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
	_, _, err = svc.ValidateSSEToken(token)
	assert.Error(t, err)
}
