package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims represents the claims carried by a service token. There is no
// user identity here: the pipeline's admin and review endpoints authenticate
// the automation calling them, identified only by Subject — not a user
// session (that remains an out-of-scope collaborator).
type Claims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// ServiceTokenManager issues and validates the single bearer-token type
// used to guard the pipeline's admin kick endpoints and review endpoints.
type ServiceTokenManager struct {
	secret string
	expiry time.Duration
}

// NewServiceTokenManager creates a new service-token manager.
func NewServiceTokenManager(secret string, expiry time.Duration) *ServiceTokenManager {
	return &ServiceTokenManager{secret: secret, expiry: expiry}
}

// GenerateToken issues a token identifying the caller as subject.
func (m *ServiceTokenManager) GenerateToken(subject string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.secret))
}

// ValidateToken validates a token and returns its claims.
func (m *ServiceTokenManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// HashToken creates a SHA256 hash of a token, used when a token must be
// stored (e.g. for revocation lookups) without keeping the plaintext around.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
