// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/photovault/photovault/internal/model"
	"github.com/photovault/photovault/internal/service"
)

// ErrorResponse is the envelope of every error body.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a stable code and a human readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SignupRequest represents the request body for creating an account.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// LoginRequest represents the request body for logging in.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse represents an account in API responses.
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// SignupResponse is returned by POST /auth/signup.
type SignupResponse struct {
	User UserResponse `json:"user"`
}

// LoginResponse is returned by POST /auth/login.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

// MeResponse is returned by GET /auth/me.
type MeResponse struct {
	User MeUser `json:"user"`
}

// MeUser echoes the caller's identity.
type MeUser struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
}

// ImageResponse represents an image in API responses.
type ImageResponse struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	ContentType        string    `json:"contentType"`
	Size               int64     `json:"size"`
	Caption            string    `json:"caption,omitempty"`
	AIProcessed        bool      `json:"aiProcessed"`
	AIProcessingTimeMs *int64    `json:"aiProcessingTimeMs,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

// ImageListResponse is returned by GET /images.
type ImageListResponse struct {
	Images []ImageResponse `json:"images"`
}

// UploadError describes one rejected file.
type UploadError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// UploadResponse is returned by POST /images when at least one file was stored.
type UploadResponse struct {
	Message string          `json:"message"`
	Images  []ImageResponse `json:"images"`
	Errors  []UploadError   `json:"errors,omitempty"`
}

// UploadFailedResponse is returned by POST /images when every file was rejected.
type UploadFailedResponse struct {
	Error  ErrorDetail   `json:"error"`
	Errors []UploadError `json:"errors"`
}

// SearchResult is one ranked image.
type SearchResult struct {
	ID        string     `json:"id"`
	Score     float32    `json:"score"`
	Name      string     `json:"name"`
	Caption   string     `json:"caption"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// SearchResponse is returned by GET /images/search.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// AnalysisRequest is the captioner's callback body.
type AnalysisRequest struct {
	Caption          string `json:"caption"`
	ProcessingTimeMs int64  `json:"processingTimeMs"`
}

// PendingImage is one entry of the captioner work queue.
type PendingImage struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PendingResponse is returned by GET /internal/images/pending.
type PendingResponse struct {
	Images []PendingImage `json:"images"`
}

// AnalysisResponse is returned by PUT /internal/images/{id}/analysis.
// Queued is false when the caption was stored but could not be handed to
// the indexer; the image then stays in the pending queue.
type AnalysisResponse struct {
	Image  ImageResponse `json:"image"`
	Queued bool          `json:"queued"`
}

// ToUserResponse converts a User model to UserResponse DTO.
func ToUserResponse(u *model.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, Name: u.Name}
}

// ToImageResponse converts an Image model to ImageResponse DTO.
func ToImageResponse(img *model.Image) ImageResponse {
	return ImageResponse{
		ID:                 img.ID,
		Name:               img.Filename,
		ContentType:        img.ContentType,
		Size:               img.Size,
		Caption:            img.CaptionText(),
		AIProcessed:        img.AIProcessed,
		AIProcessingTimeMs: img.AIProcessingTime,
		CreatedAt:          img.CreatedAt,
	}
}

// ToImageResponses converts a list of images.
func ToImageResponses(images []*model.Image) []ImageResponse {
	out := make([]ImageResponse, 0, len(images))
	for _, img := range images {
		out = append(out, ToImageResponse(img))
	}
	return out
}

// ToUploadErrors converts per-file failures.
func ToUploadErrors(failures []service.UploadFailure) []UploadError {
	if len(failures) == 0 {
		return nil
	}
	out := make([]UploadError, 0, len(failures))
	for _, f := range failures {
		out = append(out, UploadError{File: f.File, Error: f.Error})
	}
	return out
}

// ToSearchResponse converts ranked results. A zero creation time is omitted.
func ToSearchResponse(results []service.SearchResult) SearchResponse {
	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		item := SearchResult{ID: r.ID, Score: r.Score, Name: r.Name, Caption: r.Caption}
		if !r.CreatedAt.IsZero() {
			created := r.CreatedAt
			item.CreatedAt = &created
		}
		out = append(out, item)
	}
	return SearchResponse{Results: out}
}

// ToPendingResponse converts the captioner work queue.
func ToPendingResponse(images []*model.Image) PendingResponse {
	out := make([]PendingImage, 0, len(images))
	for _, img := range images {
		out = append(out, PendingImage{
			ID:          img.ID,
			Name:        img.Filename,
			ContentType: img.ContentType,
			CreatedAt:   img.CreatedAt,
		})
	}
	return PendingResponse{Images: out}
}
