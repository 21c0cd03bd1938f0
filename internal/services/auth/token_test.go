package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestTokenSigner_RoundTrip(t *testing.T) {
	s, err := NewTokenSigner("secret")
	require.NoError(t, err)

	id := uuid.NewString()
	now := time.Now()
	tok, err := s.Sign(id, "u1", now, now.Add(time.Hour))
	require.NoError(t, err)

	got, err := s.Parse(tok)
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestTokenSigner_Rejects(t *testing.T) {
	_, err := NewTokenSigner("")
	require.Error(t, err)

	s, err := NewTokenSigner("secret")
	require.NoError(t, err)
	now := time.Now()

	expired, err := s.Sign(uuid.NewString(), "u1", now.Add(-2*time.Hour), now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = s.Parse(expired)
	require.Error(t, err)

	badID, err := s.Sign("not-a-uuid", "u1", now, now.Add(time.Hour))
	require.NoError(t, err)
	_, err = s.Parse(badID)
	require.Error(t, err)

	// токен без exp не принимается
	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		SessionID:        uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{Issuer: tokenIssuer},
	})
	raw, err := noExp.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = s.Parse(raw)
	require.Error(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, sessionClaims{
		SessionID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	raw, err = none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.Parse(raw)
	require.Error(t, err)
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(4)
	hash, err := h.Hash("pw")
	require.NoError(t, err)
	require.NoError(t, h.Compare(hash, "pw"))
	require.Error(t, h.Compare(hash, "other"))
	require.Error(t, h.Compare("not-a-hash", "pw"))

	require.Equal(t, 10, NewBcryptHasher(0).cost)
}
