package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"discussion-service/internal/apperrors"
)

// Identity is the result of verifying a bearer credential.
type Identity struct {
	UserID   int
	Username string
	Email    string
	Role     string
}

// Verifier validates a bearer credential and yields the caller's identity.
// External collaborator boundary: the messaging core trusts whatever a
// Verifier returns.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Claims is the JWT payload issued by the identity service.
type Claims struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies HS256 tokens with a shared secret.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier constructs a JWTVerifier.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify parses and validates the token.
func (v *JWTVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, apperrors.Wrap(apperrors.CodeUnauthenticated, "invalid token", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == 0 {
		return Identity{}, apperrors.ErrInvalidToken
	}

	role := claims.Role
	if role == "" {
		role = "user"
	}
	return Identity{
		UserID:   claims.UserID,
		Username: claims.Username,
		Email:    claims.Email,
		Role:     role,
	}, nil
}

// Sign issues a token for the identity. Used by tests and local tooling; the
// production issuer lives in the identity service.
func (v *JWTVerifier) Sign(identity Identity, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID:   identity.UserID,
		Username: identity.Username,
		Email:    identity.Email,
		Role:     identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
