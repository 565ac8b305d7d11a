package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/photovault/photovault/internal/handler/dto"
	"github.com/photovault/photovault/internal/middleware"
	"github.com/photovault/photovault/internal/model"
)

// CaptionManager is the captioner surface used by InternalHandler.
type CaptionManager interface {
	ListPending(ctx context.Context, limit int) ([]*model.Image, error)
	SubmitAnalysis(ctx context.Context, id, caption string, processingTimeMs int64) (*model.Image, error)
}

// InternalHandler serves the captioner protocol.
type InternalHandler struct {
	captions CaptionManager
	logger   *slog.Logger
}

// NewInternalHandler creates a new InternalHandler.
func NewInternalHandler(captions CaptionManager, logger *slog.Logger) *InternalHandler {
	return &InternalHandler{captions: captions, logger: logger}
}

// Pending lists images that still need a caption.
// GET /internal/images/pending?limit=N
func (h *InternalHandler) Pending(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, CodeValidation, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	images, err := h.captions.ListPending(r.Context(), limit)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToPendingResponse(images))
}

// Analysis stores a caption and queues the image for indexing.
// PUT /internal/images/{id}/analysis
func (h *InternalHandler) Analysis(w http.ResponseWriter, r *http.Request) {
	id, ok := imageID(w, r, h.logger)
	if !ok {
		return
	}

	var req dto.AnalysisRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := middleware.ValidateCaption(req.Caption); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	img, err := h.captions.SubmitAnalysis(r.Context(), id, req.Caption, req.ProcessingTimeMs)
	if err != nil && img == nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if err != nil {
		h.logger.WarnContext(r.Context(), "caption stored but not queued",
			"image_id", id,
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
	} else {
		h.logger.Info("caption_received", "image_id", id, "processing_ms", req.ProcessingTimeMs)
	}

	writeJSON(w, http.StatusOK, dto.AnalysisResponse{
		Image:  dto.ToImageResponse(img),
		Queued: err == nil,
	})
}
