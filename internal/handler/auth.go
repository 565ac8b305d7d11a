package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/photovault/photovault/internal/auth"
	"github.com/photovault/photovault/internal/handler/dto"
	"github.com/photovault/photovault/internal/model"
	"github.com/photovault/photovault/internal/service"
)

// AccountService is the account surface used by AuthHandler.
type AccountService interface {
	Signup(ctx context.Context, input service.SignupInput) (*model.User, error)
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	Logout(ctx context.Context, token string) error
	Me(ctx context.Context, identity auth.Identity) (*model.User, error)
}

// AuthHandler handles account endpoints.
type AuthHandler struct {
	accounts AccountService
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(accounts AccountService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, logger: logger}
}

// Signup creates an account.
// POST /auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req dto.SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.accounts.Signup(r.Context(), service.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("user_created", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, dto.SignupResponse{User: dto.ToUserResponse(user)})
}

// Login verifies credentials and issues a token.
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("user_logged_in", "user_id", result.User.ID)
	writeJSON(w, http.StatusOK, dto.LoginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      dto.ToUserResponse(result.User),
	})
}

// Logout revokes the token that authenticated the request.
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	if err := h.accounts.Logout(r.Context(), auth.TokenFromContext(r.Context())); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("user_logged_out", "user_id", identity.UserID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me returns the caller's identity.
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	user, err := h.accounts.Me(r.Context(), identity)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.MeResponse{User: dto.MeUser{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	}})
}
