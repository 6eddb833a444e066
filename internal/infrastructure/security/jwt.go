// Package security provides JWT token utilities
package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ServiceIssuer is the issuer claim on tokens the editor signs for itself.
const ServiceIssuer = "kendr-editor"

var ErrInvalidToken = errors.New("invalid token")

// ValidateJWT validates an HS256 token and returns its claims
func ValidateJWT(tokenString, jwtSecret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// GenerateServiceToken signs a bearer token the editor service presents to
// the site document backend.
func GenerateServiceToken(subject, jwtSecret string, ttl time.Duration) (string, error) {
	if jwtSecret == "" {
		return "", errors.New("jwt secret is empty")
	}
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": subject,
		"iss": ServiceIssuer,
		"jti": GenerateULID(),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	result, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign service token: %w", err)
	}
	return result, nil
}

// SubjectFromClaims returns the sub claim, or "" when absent.
func SubjectFromClaims(claims jwt.MapClaims) string {
	sub, _ := claims["sub"].(string)
	return sub
}
