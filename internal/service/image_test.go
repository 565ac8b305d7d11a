package service

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/photovault/photovault/internal/model"
	"github.com/photovault/photovault/internal/storage"
	"github.com/photovault/photovault/internal/testutil/memstore"
)

type recordingRemover struct {
	deleted []string
	err     error
}

func (r *recordingRemover) Delete(_ context.Context, id string) error {
	if r.err != nil {
		return r.err
	}
	r.deleted = append(r.deleted, id)
	return nil
}

type failingImageStore struct {
	*memstore.Store
}

func (failingImageStore) CreateImage(context.Context, *model.Image) error {
	return errors.New("insert failed")
}

func upload(name, body string) UploadFile {
	return UploadFile{
		Filename: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

func newImageService(t *testing.T, maxFiles int) (*ImageService, *memstore.Store, *storage.Disk, *recordingRemover) {
	t.Helper()

	disk, err := storage.NewDisk(t.TempDir(), 1024)
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}
	store := memstore.New()
	remover := &recordingRemover{}
	return NewImageService(store, disk, remover, maxFiles, nil), store, disk, remover
}

func TestImageService_UploadPartialFailure(t *testing.T) {
	t.Parallel()

	svc, store, _, _ := newImageService(t, 5)
	ctx := context.Background()

	result, err := svc.Upload(ctx, "u1", []UploadFile{
		upload("cat.png", "png"),
		upload("notes.txt", "text"),
		upload("dog.JPG", "jpg"),
		upload("huge.gif", strings.Repeat("x", 2048)),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(result.Images) != 2 || len(result.Errors) != 2 {
		t.Fatalf("images=%d errors=%d, want 2/2", len(result.Images), len(result.Errors))
	}
	if result.Errors[0].File != "notes.txt" || result.Errors[1].File != "huge.gif" {
		t.Errorf("errors = %+v", result.Errors)
	}

	listed, _ := store.ListImagesByOwner(ctx, "u1")
	if len(listed) != 2 {
		t.Errorf("stored %d images, want 2", len(listed))
	}
	for _, img := range result.Images {
		if img.OwnerID != "u1" || img.ContentType == "" || img.Size == 0 {
			t.Errorf("image = %+v", img)
		}
	}
}

func TestImageService_UploadLimits(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newImageService(t, 2)
	ctx := context.Background()

	if _, err := svc.Upload(ctx, "u1", nil); !errors.Is(err, ErrNoFiles) {
		t.Errorf("no files error = %v, want ErrNoFiles", err)
	}
	files := []UploadFile{upload("a.png", "a"), upload("b.png", "b"), upload("c.png", "c")}
	if _, err := svc.Upload(ctx, "u1", files); !errors.Is(err, ErrTooManyFiles) {
		t.Errorf("too many error = %v, want ErrTooManyFiles", err)
	}
}

func TestImageService_UploadCleansUpOnInsertFailure(t *testing.T) {
	t.Parallel()

	disk, err := storage.NewDisk(t.TempDir(), 1024)
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}
	svc := NewImageService(failingImageStore{memstore.New()}, disk, nil, 0, nil)

	result, err := svc.Upload(context.Background(), "u1", []UploadFile{upload("cat.png", "png")})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(result.Images) != 0 || len(result.Errors) != 1 {
		t.Fatalf("result = %+v", result)
	}
	entries, _ := os.ReadDir(disk.Root())
	if len(entries) != 0 {
		t.Errorf("%d orphan files left", len(entries))
	}
}

func TestImageService_OwnershipAndDelete(t *testing.T) {
	t.Parallel()

	svc, store, _, remover := newImageService(t, 5)
	ctx := context.Background()

	result, err := svc.Upload(ctx, "owner", []UploadFile{upload("cat.png", "meow")})
	if err != nil || len(result.Images) != 1 {
		t.Fatalf("Upload: %+v, %v", result, err)
	}
	id := result.Images[0].ID

	if _, err := svc.Get(ctx, "intruder", id); !errors.Is(err, model.ErrNotOwner) {
		t.Errorf("Get by intruder = %v, want ErrNotOwner", err)
	}
	if _, err := svc.Get(ctx, "owner", "missing"); !errors.Is(err, model.ErrImageNotFound) {
		t.Errorf("Get missing = %v, want ErrImageNotFound", err)
	}

	_, f, err := svc.Open(ctx, "owner", id)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(f)
	f.Close()
	if string(data) != "meow" {
		t.Errorf("content = %q", data)
	}

	if err := svc.Delete(ctx, "intruder", id); !errors.Is(err, model.ErrNotOwner) {
		t.Errorf("Delete by intruder = %v, want ErrNotOwner", err)
	}
	if err := svc.Delete(ctx, "owner", id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(remover.deleted) != 1 || remover.deleted[0] != id {
		t.Errorf("vector deletes = %v", remover.deleted)
	}
	if _, err := store.GetImageByID(ctx, id); !errors.Is(err, model.ErrImageNotFound) {
		t.Errorf("row still present: %v", err)
	}
}

func TestImageService_OpenMissingFile(t *testing.T) {
	t.Parallel()

	svc, store, disk, _ := newImageService(t, 5)
	ctx := context.Background()

	result, _ := svc.Upload(ctx, "owner", []UploadFile{upload("cat.png", "meow")})
	img := result.Images[0]
	if err := disk.Remove(img.Path); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if _, _, err := svc.Open(ctx, "owner", img.ID); !errors.Is(err, ErrFileMissing) {
		t.Errorf("Open = %v, want ErrFileMissing", err)
	}
	if _, err := store.GetImageByID(ctx, img.ID); err != nil {
		t.Errorf("record should survive: %v", err)
	}
}

func TestImageService_DeleteKeepsRowWhenVectorDeleteFails(t *testing.T) {
	t.Parallel()

	svc, store, _, remover := newImageService(t, 5)
	ctx := context.Background()
	result, _ := svc.Upload(ctx, "owner", []UploadFile{upload("cat.png", "meow")})
	id := result.Images[0].ID

	remover.err = errors.New("index down")
	if err := svc.Delete(ctx, "owner", id); err == nil {
		t.Fatal("expected error")
	}
	if _, err := store.GetImageByID(ctx, id); err != nil {
		t.Errorf("row deleted despite vector failure: %v", err)
	}
}
