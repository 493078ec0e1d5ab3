// Package auth verifies the bearer tokens issued by the identity provider.
//
// Tokens are HS256-signed JWTs: the subject claim carries the user id and
// the optional email claim carries the login email. The backend never mints
// tokens in production; GenerateToken exists for tests and local tooling.
package auth

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT payload carried by access tokens. The user id lives in
// the registered subject claim.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwtlib.RegisteredClaims
}

// UserID returns the token subject.
func (c *Claims) UserID() string { return c.Subject }

// GenerateToken signs a token for userID/email valid for ttl. When audience
// is non-empty it is embedded so ParseToken's audience check passes.
func GenerateToken(userID, email string, secret []byte, audience string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
	if audience != "" {
		claims.Audience = jwtlib.ClaimStrings{audience}
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseToken validates tokenString against secret and returns its claims.
// Only HS256 is accepted. When audience is non-empty the token must list it;
// identity providers stamp a fixed audience on access tokens and anything
// else (refresh tokens, other apps) must not pass verification.
func ParseToken(tokenString string, secret []byte, audience string) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenString, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		if t.Method.Alg() != jwtlib.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	if audience != "" {
		found := false
		for _, a := range claims.Audience {
			if a == audience {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unexpected audience")
		}
	}
	return claims, nil
}
