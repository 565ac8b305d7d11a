package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// Token errors. Each maps to a distinct client-facing code.
var (
	ErrMissingCredential = errors.New("missing bearer token")
	ErrInvalidToken      = errors.New("invalid token")
	ErrExpiredToken      = errors.New("token expired")
	ErrRevokedToken      = errors.New("token revoked")
	// ErrRevocationUnavailable means the revocation store could not be consulted.
	// Verification fails closed.
	ErrRevocationUnavailable = errors.New("revocation store unavailable")
	// ErrWeakSecret is returned when the signing secret is empty.
	ErrWeakSecret = errors.New("signing secret must not be empty")
)

// Identity is the caller resolved from a token.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// RevocationStore records tokens invalidated before their natural expiry.
// Implementations must be safe for concurrent use.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type tokenClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenService issues, verifies and revokes HS256 identity tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	store  RevocationStore
	now    func() time.Time
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithClock overrides the time source.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		s.now = now
	}
}

// NewTokenService creates a TokenService signing with secret.
// Tokens expire ttl after issuance.
func NewTokenService(secret string, ttl time.Duration, store RevocationStore, opts ...TokenOption) (*TokenService, error) {
	if secret == "" {
		return nil, ErrWeakSecret
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	if store == nil {
		return nil, errors.New("revocation store is required")
	}

	s := &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		store:  store,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the configured token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for id. It returns the token and its expiry.
func (s *TokenService) Issue(id Identity) (string, time.Time, error) {
	if id.UserID == "" {
		return "", time.Time{}, errors.New("identity user id is required")
	}

	issuedAt := s.now()
	claims := tokenClaims{
		UserID: id.UserID,
		Email:  id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return signed, claims.ExpiresAt.Time, nil
}

// Verify resolves the identity carried by token.
// Revocation is checked before the signature.
func (s *TokenService) Verify(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrMissingCredential
	}

	revoked, err := s.store.IsRevoked(ctx, QuickHash(token))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrRevocationUnavailable, err)
	}
	if revoked {
		return Identity{}, ErrRevokedToken
	}

	claims, err := s.parse(token, true)
	if err != nil {
		return Identity{}, err
	}

	return Identity{UserID: claims.UserID, Email: claims.Email}, nil
}

// Revoke invalidates token until its own expiry.
// A token that has already expired needs no entry.
func (s *TokenService) Revoke(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrMissingCredential
	}

	claims, err := s.parse(token, false)
	if err != nil {
		return err
	}

	expiresAt := claims.ExpiresAt.Time
	if !expiresAt.After(s.now()) {
		return nil
	}

	if err := s.store.Revoke(ctx, QuickHash(token), expiresAt); err != nil {
		return fmt.Errorf("%w: %w", ErrRevocationUnavailable, err)
	}
	return nil
}

func (s *TokenService) parse(token string, validateExpiry bool) (*tokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if validateExpiry {
		opts = append(opts, jwt.WithExpirationRequired())
	} else {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.UserID == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
