package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
)

var (
	// ErrInvalidToken covers bad signatures, malformed tokens and tokens without a subject.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned once the exp claim has elapsed.
	ErrExpiredToken = errors.New("token expired")
)

// Claims represents the JWT claims. IssuedAtMilli carries the issue time with
// millisecond precision so a password change in the same second still
// invalidates earlier tokens.
type Claims struct {
	ID            string `json:"id"`
	IssuedAtMilli int64  `json:"iatm"`
	jwt.StandardClaims
}

// IssuedAtMillis returns the most precise issue time available on the token.
func (c *Claims) IssuedAtMillis() int64 {
	if c.IssuedAtMilli > 0 {
		return c.IssuedAtMilli
	}
	return c.IssuedAt * 1000
}

// TokenService signs and verifies session tokens with a process-wide secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL is the lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue generates a signed token for the given user id.
func (s *TokenService) Issue(subjectID string) (string, error) {
	now := s.now()
	claims := &Claims{
		ID:            subjectID,
		IssuedAtMilli: now.UnixMilli(),
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(s.ttl).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify parses tokenStr and returns its claims. Only ErrInvalidToken or
// ErrExpiredToken are returned so callers never see signature details.
func (s *TokenService) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors == jwt.ValidationErrorExpired {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
