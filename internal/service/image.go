package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/photovault/photovault/internal/model"
	"github.com/photovault/photovault/internal/storage"
)

// Image errors.
var (
	ErrNoFiles      = errors.New("no files uploaded")
	ErrTooManyFiles = errors.New("too many files in one upload")
	ErrFileMissing  = errors.New("image file not found on server")
)

// DefaultMaxUploadFiles is the per-request file limit when none is configured.
const DefaultMaxUploadFiles = 10

// ImageStore persists image records.
type ImageStore interface {
	CreateImage(ctx context.Context, img *model.Image) error
	GetImageByID(ctx context.Context, id string) (*model.Image, error)
	ListImagesByOwner(ctx context.Context, ownerID string) ([]*model.Image, error)
	DeleteImage(ctx context.Context, id string) error
}

// FileStore keeps the uploaded bytes.
type FileStore interface {
	Save(ctx context.Context, id, originalName string, r io.Reader) (string, int64, error)
	Open(path string) (io.ReadSeekCloser, error)
	Remove(path string) error
}

// VectorRemover drops an image's vector record.
type VectorRemover interface {
	Delete(ctx context.Context, id string) error
}

// UploadFile is one file of a multipart upload.
type UploadFile struct {
	Filename string
	Open     func() (io.ReadCloser, error)
}

// UploadFailure describes a file that could not be stored.
type UploadFailure struct {
	File  string
	Error string
}

// UploadResult reports stored images and per-file failures.
type UploadResult struct {
	Images []*model.Image
	Errors []UploadFailure
}

// ImageService manages the caller's uploaded images.
type ImageService struct {
	images   ImageStore
	files    FileStore
	vectors  VectorRemover
	maxFiles int
	logger   *slog.Logger
}

// NewImageService creates an ImageService.
func NewImageService(images ImageStore, files FileStore, vectors VectorRemover, maxFiles int, logger *slog.Logger) *ImageService {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxUploadFiles
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageService{
		images:   images,
		files:    files,
		vectors:  vectors,
		maxFiles: maxFiles,
		logger:   logger,
	}
}

// Upload stores every file it can. A failure on one file does not stop
// the others; the caller decides the status from the result.
func (s *ImageService) Upload(ctx context.Context, ownerID string, files []UploadFile) (*UploadResult, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	if len(files) > s.maxFiles {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyFiles, len(files), s.maxFiles)
	}

	result := &UploadResult{Images: []*model.Image{}}
	for _, f := range files {
		img, err := s.store(ctx, ownerID, f)
		if err != nil {
			s.logger.WarnContext(ctx, "upload: file rejected",
				"user_id", ownerID,
				"file", f.Filename,
				"error", err,
			)
			result.Errors = append(result.Errors, UploadFailure{File: f.Filename, Error: err.Error()})
			continue
		}
		result.Images = append(result.Images, img)
	}

	return result, nil
}

func (s *ImageService) store(ctx context.Context, ownerID string, f UploadFile) (*model.Image, error) {
	contentType, ok := storage.ContentTypeFor(f.Filename)
	if !ok {
		return nil, storage.ErrUnsupportedType
	}

	src, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	id := ulid.Make().String()
	path, size, err := s.files.Save(ctx, id, f.Filename, src)
	if err != nil {
		return nil, err
	}

	img := &model.Image{
		ID:          id,
		OwnerID:     ownerID,
		Filename:    f.Filename,
		Path:        path,
		ContentType: contentType,
		Size:        size,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.images.CreateImage(ctx, img); err != nil {
		if rmErr := s.files.Remove(path); rmErr != nil {
			s.logger.WarnContext(ctx, "upload: failed to clean up file", "path", path, "error", rmErr)
		}
		return nil, err
	}

	return img, nil
}

// List returns the owner's images, newest first.
func (s *ImageService) List(ctx context.Context, ownerID string) ([]*model.Image, error) {
	return s.images.ListImagesByOwner(ctx, ownerID)
}

// Get returns an image the caller owns.
func (s *ImageService) Get(ctx context.Context, ownerID, id string) (*model.Image, error) {
	img, err := s.images.GetImageByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !img.IsOwnedBy(ownerID) {
		return nil, model.ErrNotOwner
	}
	return img, nil
}

// Open returns the image and its file for streaming. The caller closes the file.
func (s *ImageService) Open(ctx context.Context, ownerID, id string) (*model.Image, io.ReadSeekCloser, error) {
	img, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, nil, err
	}

	f, err := s.files.Open(img.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrFileMissing
		}
		return nil, nil, fmt.Errorf("open image file: %w", err)
	}
	return img, f, nil
}

// Delete removes the vector, the record and the file, in that order.
// A leftover file is logged, not returned.
func (s *ImageService) Delete(ctx context.Context, ownerID, id string) error {
	img, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if s.vectors != nil {
		if err := s.vectors.Delete(ctx, img.ID); err != nil {
			return err
		}
	}

	if err := s.images.DeleteImage(ctx, img.ID); err != nil {
		return err
	}

	if err := s.files.Remove(img.Path); err != nil {
		s.logger.WarnContext(ctx, "delete: failed to remove file",
			"image_id", img.ID,
			"path", img.Path,
			"error", err,
		)
	}
	return nil
}
