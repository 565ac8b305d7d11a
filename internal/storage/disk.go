// Package storage keeps uploaded image files on local disk.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedType is returned for files that are not jpg, jpeg, png, gif or webp.
	ErrUnsupportedType = errors.New("only image files are allowed")
	// ErrTooLarge is returned when a file exceeds the configured size limit.
	ErrTooLarge = errors.New("file exceeds size limit")
	// ErrOutsideRoot is returned for paths that escape the storage directory.
	ErrOutsideRoot = errors.New("path is outside storage directory")
)

var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// ContentTypeFor returns the MIME type for an allowed filename, or false.
func ContentTypeFor(filename string) (string, bool) {
	ct, ok := allowedExtensions[strings.ToLower(filepath.Ext(filename))]
	return ct, ok
}

// Disk stores files under a single root directory.
type Disk struct {
	root    string
	maxSize int64
}

// NewDisk creates root if needed. maxSize <= 0 disables the size limit.
func NewDisk(root string, maxSize int64) (*Disk, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Disk{root: abs, maxSize: maxSize}, nil
}

// Root returns the absolute storage directory.
func (d *Disk) Root() string {
	return d.root
}

// Save writes r to <root>/<id><ext of originalName> and returns the path and
// byte count. A partially written file is removed on error.
func (d *Disk) Save(ctx context.Context, id, originalName string, r io.Reader) (string, int64, error) {
	if _, ok := ContentTypeFor(originalName); !ok {
		return "", 0, fmt.Errorf("%w: %s", ErrUnsupportedType, originalName)
	}
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	path := filepath.Join(d.root, id+strings.ToLower(filepath.Ext(originalName)))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", 0, fmt.Errorf("create file: %w", err)
	}

	src := r
	if d.maxSize > 0 {
		// One extra byte detects oversize input.
		src = io.LimitReader(r, d.maxSize+1)
	}

	n, err := io.Copy(f, src)
	closeErr := f.Close()

	switch {
	case err != nil:
		err = fmt.Errorf("write file: %w", err)
	case closeErr != nil:
		err = fmt.Errorf("close file: %w", closeErr)
	case d.maxSize > 0 && n > d.maxSize:
		err = fmt.Errorf("%w: %d bytes", ErrTooLarge, d.maxSize)
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, err
	}

	return path, n, nil
}

// Open returns the stored file for reading.
func (d *Disk) Open(path string) (io.ReadSeekCloser, error) {
	if err := d.contains(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Remove deletes a stored file. A missing file is not an error.
func (d *Disk) Remove(path string) error {
	if err := d.contains(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

func (d *Disk) contains(path string) error {
	rel, err := filepath.Rel(d.root, filepath.Clean(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ErrOutsideRoot
	}
	return nil
}
