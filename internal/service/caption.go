package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/photovault/photovault/internal/ingest"
	"github.com/photovault/photovault/internal/model"
)

// ErrEmptyCaption is returned when the captioner submits a blank caption.
var ErrEmptyCaption = errors.New("caption is required")

const (
	// DefaultPendingLimit is the page size of the captioner work queue.
	DefaultPendingLimit = 50
	maxPendingLimit     = 500
)

// CaptionStore reads and updates caption state.
type CaptionStore interface {
	GetImageByID(ctx context.Context, id string) (*model.Image, error)
	ListPendingImages(ctx context.Context, limit int) ([]*model.Image, error)
	SetCaption(ctx context.Context, id, caption string, processingTimeMs int64) error
}

// CaptionService is the server side of the captioner protocol.
type CaptionService struct {
	images CaptionStore
	sink   ingest.Sink
}

// NewCaptionService creates a CaptionService.
func NewCaptionService(images CaptionStore, sink ingest.Sink) *CaptionService {
	return &CaptionService{images: images, sink: sink}
}

// ListPending returns images still waiting for a caption, oldest first.
func (s *CaptionService) ListPending(ctx context.Context, limit int) ([]*model.Image, error) {
	if limit <= 0 {
		limit = DefaultPendingLimit
	}
	if limit > maxPendingLimit {
		limit = maxPendingLimit
	}
	return s.images.ListPendingImages(ctx, limit)
}

// SubmitAnalysis stores the caption of id and queues it for indexing.
// The caption is saved even when queueing fails; the returned error says so.
func (s *CaptionService) SubmitAnalysis(ctx context.Context, id, caption string, processingTimeMs int64) (*model.Image, error) {
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return nil, ErrEmptyCaption
	}
	if processingTimeMs < 0 {
		processingTimeMs = 0
	}

	img, err := s.images.GetImageByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.images.SetCaption(ctx, id, caption, processingTimeMs); err != nil {
		return nil, fmt.Errorf("store caption: %w", err)
	}
	img.Caption = &caption
	img.AIProcessingTime = &processingTimeMs

	job := ingest.Job{
		ImageID:  img.ID,
		OwnerID:  img.OwnerID,
		Filename: img.Filename,
		Caption:  caption,
	}
	if err := s.sink.Submit(ctx, job); err != nil {
		return img, fmt.Errorf("queue indexing: %w", err)
	}
	return img, nil
}
