package jwt

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Service signs and verifies session tokens. A session token is what the
// browser keeps in its session cookie: whether the holder logged in as admin
// and the anti-forgery token bound to the session.
type Service struct {
	secret []byte
	ttl    time.Duration
}

type Claims struct {
	Admin bool   `json:"adm,omitempty"`
	CSRF  string `json:"csrf"`
	jwtlib.RegisteredClaims
}

func New(secret string, ttl time.Duration) *Service {
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// TTL is how long issued tokens stay valid.
func (s *Service) TTL() time.Duration { return s.ttl }

func (s *Service) GenerateToken(admin bool, csrf string) (string, error) {
	if csrf == "" {
		return "", errors.New("csrf token is required")
	}
	now := time.Now()
	claims := Claims{
		Admin: admin,
		CSRF:  csrf,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (any, error) {
		return s.secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.CSRF == "" {
		return nil, errors.New("invalid claims")
	}

	return claims, nil
}

// NewCSRFToken returns 32 random bytes, hex encoded.
func NewCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
