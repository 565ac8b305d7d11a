package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/photovault/photovault/internal/model"
)

// Common errors for image repository operations.
var (
	ErrImageNotFound = model.ErrImageNotFound
)

const imageColumns = `id, owner_id, filename, path, content_type, size_bytes, caption,
	ai_processed, ai_processing_time_ms, indexed_at, created_at`

// CreateImage inserts a new image record.
func (r *Repository) CreateImage(ctx context.Context, img *model.Image) error {
	query := `
		INSERT INTO images (id, owner_id, filename, path, content_type, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		img.ID,
		img.OwnerID,
		img.Filename,
		img.Path,
		img.ContentType,
		img.Size,
		img.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}

	return nil
}

// GetImageByID retrieves an image regardless of owner. Callers check ownership.
func (r *Repository) GetImageByID(ctx context.Context, id string) (*model.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE id = $1`

	img, err := scanImage(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return img, nil
}

// ListImagesByOwner returns the owner's images, newest first.
func (r *Repository) ListImagesByOwner(ctx context.Context, ownerID string) ([]*model.Image, error) {
	query := `
		SELECT ` + imageColumns + `
		FROM images
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	return collectImages(rows)
}

// ImagesByIDs returns the owner's images among ids, keyed by ID. IDs that
// do not exist or belong to someone else are absent from the map.
func (r *Repository) ImagesByIDs(ctx context.Context, ownerID string, ids []string) (map[string]*model.Image, error) {
	if len(ids) == 0 {
		return map[string]*model.Image{}, nil
	}

	query := `
		SELECT ` + imageColumns + `
		FROM images
		WHERE owner_id = $1 AND id = ANY($2)
	`

	rows, err := r.pool.Query(ctx, query, ownerID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get images by ids: %w", err)
	}

	images, err := collectImages(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*model.Image, len(images))
	for _, img := range images {
		byID[img.ID] = img
	}
	return byID, nil
}

// ListPendingImages returns images still waiting for a caption, oldest first.
func (r *Repository) ListPendingImages(ctx context.Context, limit int) ([]*model.Image, error) {
	query := `
		SELECT ` + imageColumns + `
		FROM images
		WHERE ai_processed = FALSE
		ORDER BY created_at ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending images: %w", err)
	}
	return collectImages(rows)
}

// SetCaption stores the captioner's output. The image stays unprocessed
// until MarkIndexed.
func (r *Repository) SetCaption(ctx context.Context, id, caption string, processingTimeMs int64) error {
	query := `
		UPDATE images
		SET caption = $2, ai_processing_time_ms = $3
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, caption, processingTimeMs)
	if err != nil {
		return fmt.Errorf("failed to set caption: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrImageNotFound
	}
	return nil
}

// MarkIndexed flags the image as processed once its vector is stored.
func (r *Repository) MarkIndexed(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE images
		SET ai_processed = TRUE, indexed_at = $2
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark image indexed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrImageNotFound
	}
	return nil
}

// DeleteImage removes the image row.
func (r *Repository) DeleteImage(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrImageNotFound
	}
	return nil
}

func collectImages(rows pgx.Rows) ([]*model.Image, error) {
	defer rows.Close()

	images := []*model.Image{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, img)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating images: %w", err)
	}
	return images, nil
}

func scanImage(row pgx.Row) (*model.Image, error) {
	var img model.Image
	err := row.Scan(
		&img.ID,
		&img.OwnerID,
		&img.Filename,
		&img.Path,
		&img.ContentType,
		&img.Size,
		&img.Caption,
		&img.AIProcessed,
		&img.AIProcessingTime,
		&img.IndexedAt,
		&img.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &img, nil
}
