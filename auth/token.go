package auth

import (
	"chat-widget/domain/chat"
	"chat-widget/errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "chat-widget"

// GenerateToken creates an access token whose subject is the user id,
// signed with HS256 (HMAC with SHA256).
func GenerateToken(userID chat.UserID, secret []byte, authTokenDuration time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   string(userID),
		ExpiresAt: jwt.NewNumericDate(now.Add(authTokenDuration)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    issuer,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// IdentityFromToken validates the signature and expiration of an access token
// and returns the identity of its subject.
func IdentityFromToken(tokenString string, secret []byte) (chat.Identity, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return chat.Identity{}, fmt.Errorf("%w: %w", errors.ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return chat.Identity{}, errors.ErrInvalidToken
	}
	return chat.Identity{UserID: chat.UserID(claims.Subject)}, nil
}
