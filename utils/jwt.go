package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const sessionIssuer = "CafePOS"

// SessionClaims binds a bearer token to one presence session. The presence
// registry decides whether the session is still live, so no expiry is set.
type SessionClaims struct {
	StaffID   uint   `json:"staff_id"`
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	Name      string `json:"name"`
	jwt.RegisteredClaims
}

func GenerateSessionToken(secret []byte, staffID uint, sessionID, role, name string) (string, error) {
	claims := &SessionClaims{
		StaffID:   staffID,
		SessionID: sessionID,
		Role:      role,
		Name:      name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       sessionID,
			IssuedAt: jwt.NewNumericDate(time.Now()),
			Issuer:   sessionIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func ParseSessionToken(secret []byte, tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(sessionIssuer))

	if err != nil || !token.Valid {
		return nil, errors.New("invalid session token")
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || claims.StaffID == 0 || claims.SessionID == "" {
		return nil, errors.New("invalid session claims")
	}

	return claims, nil
}
