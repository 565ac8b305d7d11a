package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/photovault/photovault/internal/auth"
	"github.com/photovault/photovault/internal/handler/dto"
	"github.com/photovault/photovault/internal/middleware"
	"github.com/photovault/photovault/internal/model"
	"github.com/photovault/photovault/internal/service"
)

// UploadField is the multipart field that carries image files.
const UploadField = "images"

// multipartMemory is the part of an upload kept in memory before spilling to disk.
const multipartMemory = 32 << 20

// ImageManager is the image surface used by ImageHandler.
type ImageManager interface {
	Upload(ctx context.Context, ownerID string, files []service.UploadFile) (*service.UploadResult, error)
	List(ctx context.Context, ownerID string) ([]*model.Image, error)
	Get(ctx context.Context, ownerID, id string) (*model.Image, error)
	Open(ctx context.Context, ownerID, id string) (*model.Image, io.ReadSeekCloser, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// ImageHandler handles the caller's image collection.
type ImageHandler struct {
	images  ImageManager
	maxBody int64
	logger  *slog.Logger
}

// NewImageHandler creates a new ImageHandler. maxBody bounds a whole
// upload request; zero or less disables the bound.
func NewImageHandler(images ImageManager, maxBody int64, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{images: images, maxBody: maxBody, logger: logger}
}

// Upload stores the files of a multipart upload.
// POST /images
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, middleware.CodeTooLarge, "upload exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, CodeValidation, "expected multipart form with field "+UploadField)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File[UploadField]
	files := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, service.UploadFile{
			Filename: fh.Filename,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}

	result, err := h.images.Upload(r.Context(), identity.UserID, files)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	if len(result.Images) == 0 {
		writeJSON(w, http.StatusBadRequest, dto.UploadFailedResponse{
			Error:  dto.ErrorDetail{Code: CodeUploadFailed, Message: "no files could be stored"},
			Errors: dto.ToUploadErrors(result.Errors),
		})
		return
	}

	h.logger.Info("images_uploaded",
		"user_id", identity.UserID,
		"stored", len(result.Images),
		"rejected", len(result.Errors),
	)
	writeJSON(w, http.StatusCreated, dto.UploadResponse{
		Message: "images uploaded",
		Images:  dto.ToImageResponses(result.Images),
		Errors:  dto.ToUploadErrors(result.Errors),
	})
}

// List returns the caller's images, newest first.
// GET /images
func (h *ImageHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	images, err := h.images.List(r.Context(), identity.UserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ImageListResponse{Images: dto.ToImageResponses(images)})
}

// Get returns one image's metadata.
// GET /images/{id}
func (h *ImageHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	id, ok := imageID(w, r, h.logger)
	if !ok {
		return
	}

	img, err := h.images.Get(r.Context(), identity.UserID, id)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToImageResponse(img))
}

// File streams the stored bytes of an image.
// GET /images/{id}/file
func (h *ImageHandler) File(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	id, ok := imageID(w, r, h.logger)
	if !ok {
		return
	}

	img, f, err := h.images.Open(r.Context(), identity.UserID, id)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", img.ContentType)
	http.ServeContent(w, r, img.Filename, img.CreatedAt, f)
}

// Delete removes an image, its vector and its file.
// DELETE /images/{id}
func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	id, ok := imageID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.images.Delete(r.Context(), identity.UserID, id); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("image_deleted", "user_id", identity.UserID, "image_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func imageID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (string, bool) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateImageID(id); err != nil {
		handleServiceError(w, r, logger, err)
		return "", false
	}
	return id, true
}
