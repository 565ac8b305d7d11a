package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/photovault/photovault/internal/auth"
	"github.com/photovault/photovault/internal/model"
	"github.com/photovault/photovault/internal/repository"
)

type output struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		jwtSecret   = flag.String("jwt-secret", os.Getenv("JWT_SECRET"), "Token signing secret; empty skips token issuance")
		email       = flag.String("email", "demo@photovault.local", "User email")
		password    = flag.String("password", "", "User password (min 8 characters)")
		name        = flag.String("name", "Demo", "Display name")
		ttl         = flag.Duration("ttl", time.Hour, "Token lifetime")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}
	if len(*password) < 8 {
		fmt.Fprintln(os.Stderr, "-password must be at least 8 characters")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	user, err := ensureUser(ctx, repo, strings.ToLower(strings.TrimSpace(*email)), *password, *name)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	out := output{UserID: user.ID, Email: user.Email}

	if *jwtSecret != "" {
		tokens, err := auth.NewTokenService(*jwtSecret, *ttl, auth.NewMemoryRevocationStore())
		if err != nil {
			fmt.Fprintln(os.Stderr, "token service:", err)
			os.Exit(1)
		}
		out.Token, out.ExpiresAt, err = tokens.Issue(auth.Identity{UserID: user.ID, Email: user.Email})
		if err != nil {
			fmt.Fprintln(os.Stderr, "issue token:", err)
			os.Exit(1)
		}
	}

	switch strings.ToLower(*format) {
	case "plain":
		if out.Token != "" {
			fmt.Println(out.Token)
		} else {
			fmt.Println(out.UserID)
		}
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

// ensureUser returns the account for email, creating it when missing.
// An existing account must match password.
func ensureUser(ctx context.Context, repo *repository.Repository, email, password, name string) (*model.User, error) {
	existing, err := repo.GetUserByEmail(ctx, email)
	if err == nil {
		ok, verr := auth.VerifyPassword(password, existing.PasswordHash)
		if verr != nil {
			return nil, fmt.Errorf("verify password: %w", verr)
		}
		if !ok {
			return nil, fmt.Errorf("user %s exists with a different password", email)
		}
		return existing, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("look up user: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		ID:           ulid.Make().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}
