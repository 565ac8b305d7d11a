package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDisk_SaveOpenRemove(t *testing.T) {
	t.Parallel()

	d, err := NewDisk(t.TempDir(), 1024)
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}

	path, n, err := d.Save(context.Background(), "01HZX", "Cat.PNG", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if n != int64(len("png-bytes")) {
		t.Errorf("n = %d", n)
	}
	if filepath.Base(path) != "01HZX.png" {
		t.Errorf("path = %s, want 01HZX.png", path)
	}

	f, err := d.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(f)
	f.Close()
	if string(data) != "png-bytes" {
		t.Errorf("content = %q", data)
	}

	if err := d.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := d.Remove(path); err != nil {
		t.Errorf("second Remove should be a no-op: %v", err)
	}
}

func TestDisk_Rejections(t *testing.T) {
	t.Parallel()

	d, err := NewDisk(t.TempDir(), 4)
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}

	tests := []struct {
		name    string
		file    string
		body    string
		wantErr error
	}{
		{"not an image", "notes.txt", "hi", ErrUnsupportedType},
		{"no extension", "README", "hi", ErrUnsupportedType},
		{"too large", "big.jpg", "12345", ErrTooLarge},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := string(rune('a' + i))
			_, _, err := d.Save(context.Background(), id, tt.file, strings.NewReader(tt.body))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	entries, _ := os.ReadDir(d.Root())
	if len(entries) != 0 {
		t.Errorf("rejected uploads left %d files behind", len(entries))
	}
}

func TestDisk_PathsOutsideRoot(t *testing.T) {
	t.Parallel()

	d, err := NewDisk(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}

	outside := filepath.Join(d.Root(), "..", "escape.png")
	if _, err := d.Open(outside); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("Open error = %v, want ErrOutsideRoot", err)
	}
	if err := d.Remove(outside); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("Remove error = %v, want ErrOutsideRoot", err)
	}
}

func TestContentTypeFor(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"a.jpg":  "image/jpeg",
		"a.JPEG": "image/jpeg",
		"a.png":  "image/png",
		"a.gif":  "image/gif",
		"a.webp": "image/webp",
		"a.bmp":  "",
	}
	for name, want := range tests {
		got, ok := ContentTypeFor(name)
		if got != want || ok != (want != "") {
			t.Errorf("ContentTypeFor(%q) = %q, %v; want %q", name, got, ok, want)
		}
	}
}
