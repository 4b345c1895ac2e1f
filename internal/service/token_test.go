package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)

	for _, actor := range []valueobject.Actor{
		valueobject.Customer("cust-1"),
		valueobject.Operator("op-7"),
		valueobject.System("support"),
	} {
		token, exp, err := m.Issue(actor, time.Now())
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

		got, err := m.ParseAccess(token)
		require.NoError(t, err)
		assert.Equal(t, actor, got)
	}
}

func TestTokenManager_Rejects(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)

	expired, _, err := m.Issue(valueobject.Customer("cust-1"), time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = m.ParseAccess(expired)
	assert.Error(t, err)

	foreign, _, err := NewTokenManager("other-secret", time.Hour).Issue(valueobject.Customer("cust-1"), time.Now())
	require.NoError(t, err)
	_, err = m.ParseAccess(foreign)
	assert.Error(t, err)

	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, ActorClaims{
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = m.ParseAccess(badRole)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidClaims)

	_, _, err = m.Issue(valueobject.Actor{Role: valueobject.ActorCustomer}, time.Now())
	assert.Error(t, err)
}
