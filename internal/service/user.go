package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/photovault/photovault/internal/auth"
	"github.com/photovault/photovault/internal/model"
	"github.com/photovault/photovault/internal/repository"
)

// Account errors.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

const minPasswordLength = 8

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// Tokens issues and revokes identity tokens.
type Tokens interface {
	Issue(id auth.Identity) (string, time.Time, error)
	Revoke(ctx context.Context, token string) error
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

// UserService handles signup, login and logout.
type UserService struct {
	users  UserStore
	tokens Tokens
	// dummyHash equalizes login timing for unknown emails.
	dummyHash string
}

// NewUserService creates a UserService.
func NewUserService(users UserStore, tokens Tokens) (*UserService, error) {
	dummy, err := auth.HashPassword("photovault-timing-equalizer")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &UserService{users: users, tokens: tokens, dummyHash: dummy}, nil
}

// SignupInput defines input for creating an account.
type SignupInput struct {
	Email    string
	Password string
	Name     string
}

// Signup creates an account. Duplicate emails fail with repository.ErrEmailExists.
func (s *UserService) Signup(ctx context.Context, input SignupInput) (*model.User, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if len(input.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		ID:           ulid.Make().String(),
		Email:        email,
		Name:         strings.TrimSpace(input.Name),
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and issues a token. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			_, _ = auth.VerifyPassword(password, s.dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(auth.Identity{UserID: user.ID, Email: user.Email})
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Logout revokes token for the rest of its lifetime.
func (s *UserService) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}

// Me returns the stored account of identity, or a record built from the
// token claims when the account no longer exists.
func (s *UserService) Me(ctx context.Context, identity auth.Identity) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return &model.User{ID: identity.UserID, Email: identity.Email}, nil
		}
		return nil, err
	}
	return user, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
