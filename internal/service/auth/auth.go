package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/watchroom/server/internal/domain"
)

var ErrInvalidToken = errors.New("invalid token")

type claims struct {
	UserId      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	IsGuest     bool   `json:"is_guest"`
	jwt.RegisteredClaims
}

// Provider resolves the credential tokens minted by the external login
// service. Tokens are HMAC-signed JWTs sharing the server secret.
type Provider struct {
	secret []byte
}

func NewProvider(secret string) *Provider {
	return &Provider{secret: []byte(secret)}
}

func (p *Provider) ResolveToken(tokenString string) (domain.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid {
		return domain.Identity{}, ErrInvalidToken
	}

	c, ok := token.Claims.(*claims)
	if !ok || c.UserId == "" {
		return domain.Identity{}, ErrInvalidToken
	}

	return domain.Identity{
		UserId:      c.UserId,
		DisplayName: c.DisplayName,
		IsGuest:     c.IsGuest,
	}, nil
}

// IssueToken mints a token for an identity. The login collaborator owns token
// issuance in production; this mirrors its format for tests and local runs.
func (p *Provider) IssueToken(identity domain.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserId:      identity.UserId,
		DisplayName: identity.DisplayName,
		IsGuest:     identity.IsGuest,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	return token.SignedString(p.secret)
}
