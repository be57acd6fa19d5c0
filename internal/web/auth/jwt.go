// Package auth verifies bearer tokens and exposes the caller identity they
// carry.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned for tokens that fail verification
	ErrInvalidToken = errors.New("invalid token")

	// ErrMissingSubject is returned for valid tokens that name no user
	ErrMissingSubject = errors.New("token has no subject")
)

// Identity is the caller a verified token describes
type Identity struct {
	UserID string
	Roles  []string
	Claims map[string]any
}

// AuthService issues and verifies HS256 tokens
type AuthService struct {
	secretKey []byte
	tokenTTL  time.Duration
	issuer    string
}

// NewAuthService creates an AuthService signing with secretKey. Issued
// tokens expire after tokenTTL.
func NewAuthService(secretKey string, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		secretKey: []byte(secretKey),
		tokenTTL:  tokenTTL,
		issuer:    "gqlmeta",
	}
}

// GenerateToken issues a token for userID. Extra claims are copied into the
// token and are available to ACL filters; they cannot override the
// registered claims.
func (s *AuthService) GenerateToken(userID string, roles []string, extra map[string]any) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{}
	for k, v := range extra {
		claims[k] = v
	}
	claims["sub"] = userID
	claims["roles"] = roles
	claims["iss"] = s.issuer
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(s.tokenTTL).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// ValidateToken verifies the signature and expiry of a token and returns
// its claims
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return s.secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Identify validates a token and extracts the caller from it. The user id is
// read from "sub", falling back to "user_id".
func (s *AuthService) Identify(tokenString string) (Identity, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return Identity{}, err
	}

	userID, _ := claims["sub"].(string)
	if userID == "" {
		userID, _ = claims["user_id"].(string)
	}
	if userID == "" {
		return Identity{}, ErrMissingSubject
	}

	var roles []string
	switch r := claims["roles"].(type) {
	case []interface{}:
		for _, role := range r {
			if s, ok := role.(string); ok && s != "" {
				roles = append(roles, s)
			}
		}
	case string:
		if r != "" {
			roles = []string{r}
		}
	}

	return Identity{UserID: userID, Roles: roles, Claims: map[string]any(claims)}, nil
}
