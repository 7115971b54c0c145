package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/config"
)

// CookieName carries the session token. HTTP-only so scripts never read it.
const CookieName = "jwt"

// TokenManager issues and verifies HS256 session tokens with the user id
// as subject.
type TokenManager struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewTokenManager(cfg config.JWTCfg, expiry time.Duration) (*TokenManager, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret required")
	}
	return &TokenManager{
		secret: []byte(cfg.Secret),
		expiry: expiry,
		now:    time.Now,
	}, nil
}

func (m *TokenManager) Issue(userID string) (string, time.Time, error) {
	expires := m.now().Add(m.expiry)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(m.now()),
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	signed, err := tok.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Verify returns the subject user id on success.
func (m *TokenManager) Verify(token string) (string, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	tok, err := parser.Parse(token, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return "", errors.New("invalid token")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", errors.New("subject missing")
	}
	return sub, nil
}
