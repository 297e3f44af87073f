package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT payload issued by the identity provider.
type Claims struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// GenerateToken signs a token for the given actor. Used by tests and the
// local development issuer; production tokens come from the identity
// provider with the same claim shape.
func GenerateToken(secret []byte, actor Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: actor.UserID,
		Roles:  actor.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("identity: sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a signed token and returns the actor it asserts.
func ParseToken(secret []byte, tokenStr string) (Actor, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return Actor{}, fmt.Errorf("identity: parse token: %w", err)
	}
	if !token.Valid {
		return Actor{}, fmt.Errorf("identity: token invalid")
	}
	if claims.UserID == "" {
		return Actor{}, fmt.Errorf("identity: token missing user_id")
	}
	return Actor{UserID: claims.UserID, Roles: claims.Roles}, nil
}
