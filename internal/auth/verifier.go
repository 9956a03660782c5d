// Package auth resolves a connecting socket to a stable user identity from a
// signed identity token. Token issuance lives elsewhere; the gateway only
// verifies the HMAC signature and reads the subject claim.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("auth: invalid token")
	ErrInvalidClaims = errors.New("auth: invalid token claims")
)

// Verifier validates identity tokens signed with a shared HMAC secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for the given shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// UserID validates the token and returns its subject claim.
func (v *Verifier) UserID(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidClaims
	}

	sub, ok := claims["sub"]
	if !ok {
		return "", fmt.Errorf("%w: missing sub", ErrInvalidClaims)
	}
	userID, ok := sub.(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("%w: sub is not a string", ErrInvalidClaims)
	}
	return userID, nil
}
