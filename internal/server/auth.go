package server

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const cronTokenIssuer = "portwatch"

var errEmptyToken = errors.New("empty token")

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// validateCronToken accepts the raw shared secret, or an HS256 JWT signed with it.
func validateCronToken(token string, secret []byte) error {
	if token == "" {
		return errEmptyToken
	}
	if subtle.ConstantTimeCompare([]byte(token), secret) == 1 {
		return nil
	}
	_, _, err := validateJWT(token, secret)
	return err
}

// validateJWT parses and validates a JWT token string using the given secret.
func validateJWT(tokenString string, secret []byte) (*jwt.Token, jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, nil, err
	}
	return token, claims, nil
}

// NewCronToken signs a short-lived HS256 token for the cron endpoint.
func NewCronToken(secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("cron secret is not configured")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": "cron",
		"iss": cronTokenIssuer,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
