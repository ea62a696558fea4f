package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const TokenExp = time.Hour * 3

var ErrInvalidToken = errors.New("invalid or expired token")

// SecretKey signs the session tokens. main sets it from config.
var SecretKey = []byte("change-me")

type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

func GenerateToken(email string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenExp)),
		},
		Email: email,
	})

	tokenString, err := token.SignedString(SecretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return tokenString, nil
}

// GetEmail verifies tokenString and returns the email it carries.
func GetEmail(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return SecretKey, nil
	})
	if err != nil || !token.Valid || claims.Email == "" {
		return "", ErrInvalidToken
	}
	return claims.Email, nil
}
