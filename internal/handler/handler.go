// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/photovault/photovault/internal/auth"
	"github.com/photovault/photovault/internal/handler/dto"
	"github.com/photovault/photovault/internal/middleware"
	"github.com/photovault/photovault/internal/model"
	"github.com/photovault/photovault/internal/repository"
	"github.com/photovault/photovault/internal/service"
	"github.com/photovault/photovault/internal/storage"
)

// Error codes returned by the handlers.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeInvalidJSON        = "INVALID_JSON"
	CodeEmptyQuery         = "EMPTY_QUERY"
	CodeUpstreamDown       = "UPSTREAM_UNAVAILABLE"
	CodeUpstreamTimeout    = "UPSTREAM_TIMEOUT"
	CodeNotOwner           = "NOT_OWNER"
	CodeImageNotFound      = "IMAGE_NOT_FOUND"
	CodeFileNotFound       = "FILE_NOT_FOUND"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeEmailExists        = "EMAIL_EXISTS"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeUploadFailed       = "UPLOAD_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeAuthUnavailable    = "AUTH_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

// maxJSONBody bounds JSON request bodies read by decodeJSON.
const maxJSONBody = 1 << 20

// NotFound handles 404 responses.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, CodeNotFound, "resource not found")
}

// MethodNotAllowed handles 405 responses.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: dto.ErrorDetail{Code: code, Message: message},
	})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidJSON, "invalid JSON body")
		return false
	}
	return true
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, model.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, CodeEmptyQuery, "query must not be empty")
	case model.IsUpstreamTimeout(err):
		writeError(w, http.StatusGatewayTimeout, CodeUpstreamTimeout, "search backend timed out")
	case isUpstream(err):
		writeError(w, http.StatusServiceUnavailable, CodeUpstreamDown, "search backend unavailable")
	case errors.Is(err, model.ErrNotOwner):
		writeError(w, http.StatusForbidden, CodeNotOwner, "not authorized to access this image")
	case errors.Is(err, repository.ErrImageNotFound):
		writeError(w, http.StatusNotFound, CodeImageNotFound, "image not found")
	case errors.Is(err, service.ErrFileMissing):
		writeError(w, http.StatusNotFound, CodeFileNotFound, "image file not found on server")
	case errors.Is(err, repository.ErrUserNotFound):
		writeError(w, http.StatusNotFound, CodeUserNotFound, "user not found")
	case errors.Is(err, repository.ErrEmailExists):
		writeError(w, http.StatusConflict, CodeEmailExists, "email already registered")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, CodeInvalidCredentials, "invalid email or password")
	case errors.Is(err, auth.ErrRevocationUnavailable):
		writeError(w, http.StatusServiceUnavailable, CodeAuthUnavailable, "authentication temporarily unavailable")
	case errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrEmptyCaption),
		errors.Is(err, service.ErrNoFiles),
		errors.Is(err, service.ErrTooManyFiles),
		errors.Is(err, storage.ErrUnsupportedType),
		errors.Is(err, storage.ErrTooLarge),
		errors.Is(err, middleware.ErrQueryTooLong),
		errors.Is(err, middleware.ErrQueryInvalidUTF8),
		errors.Is(err, middleware.ErrCaptionTooLong),
		errors.Is(err, middleware.ErrImageIDInvalid):
		writeError(w, http.StatusBadRequest, CodeValidation, err.Error())
	default:
		logger.ErrorContext(r.Context(), "internal_error",
			"error", err,
			"path", r.URL.Path,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
	}
}

func isUpstream(err error) bool {
	var upstream *model.UpstreamError
	return errors.As(err, &upstream)
}
