// Package auth issues and verifies the HS256 tokens that carry a caller's
// identity.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken signals a token that fails parsing or verification.
	ErrInvalidToken = errors.New("invalid_token")
	// ErrMissingIdentity signals a request without a caller identity.
	ErrMissingIdentity = errors.New("missing_identity")
)

// MinSecretLength is the shortest HMAC secret accepted.
const MinSecretLength = 16

// Service signs and verifies identity tokens. The token subject is the
// account identity the ledger sees as caller.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService creates a Service. A zero ttl issues tokens without expiry.
func NewService(secret string, ttl time.Duration) (*Service, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: secret must be at least %d bytes", MinSecretLength)
	}
	return &Service{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// IssueToken returns a signed token for subject.
func (s *Service) IssueToken(subject string) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("auth: subject is required")
	}
	now := s.now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
	}
	if s.ttl > 0 {
		claims["exp"] = now.Add(s.ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates tokenString and returns its subject.
func (s *Service) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return sub, nil
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, ctxKey{}, identity)
}

// IdentityFrom returns the caller identity in ctx, or "" for anonymous
// callers.
func IdentityFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
