package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const tokenIssuer = "trackview"

type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// TokenSigner issues the HS256 token stored in the session cookie. The token
// only carries the session id; the session itself lives in Redis.
type TokenSigner struct {
	secret []byte
}

func NewTokenSigner(secret string) (*TokenSigner, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &TokenSigner{secret: []byte(secret)}, nil
}

func (s *TokenSigner) Sign(sessionID, userID string, issuedAt, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign session token")
	}
	return signed, nil
}

// Parse validates the signature and expiry and returns the session id.
func (s *TokenSigner) Parse(raw string) (string, error) {
	parsed, err := jwt.ParseWithClaims(raw, &sessionClaims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", errors.Wrap(err, "parse session token")
	}
	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid {
		return "", errors.New("invalid session token claims")
	}
	if _, err := uuid.Parse(claims.SessionID); err != nil {
		return "", errors.Wrap(err, "parse session id")
	}
	return claims.SessionID, nil
}
