package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newLocal(t *testing.T) (*LocalStorage, string) {
	t.Helper()
	base := t.TempDir()
	l, err := NewLocalStorage(filepath.Join(base, "store"))
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}
	return l, base
}

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLocalStorage_UploadDownload(t *testing.T) {
	l, base := newLocal(t)
	ctx := context.Background()

	src := writeTemp(t, base, "report.txt", "1.1.1.1 4\n")
	if err := l.Upload(ctx, src, "runs/abc/suspicious_ips/part-00000"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	dst := filepath.Join(base, "downloaded.txt")
	if err := l.Download(ctx, "runs/abc/suspicious_ips/part-00000", dst); err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("failed to read download: %v", err)
	}
	if string(data) != "1.1.1.1 4\n" {
		t.Errorf("content = %q", data)
	}
}

func TestLocalStorage_DownloadMissing(t *testing.T) {
	l, base := newLocal(t)
	err := l.Download(context.Background(), "nope", filepath.Join(base, "out"))
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestLocalStorage_ExistsAndDelete(t *testing.T) {
	l, base := newLocal(t)
	ctx := context.Background()

	src := writeTemp(t, base, "a.txt", "x")
	if err := l.Upload(ctx, src, "a"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	exists, err := l.Exists(ctx, "a")
	if err != nil || !exists {
		t.Errorf("Exists = %v, %v, want true", exists, err)
	}

	if err := l.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	exists, err = l.Exists(ctx, "a")
	if err != nil || exists {
		t.Errorf("Exists after delete = %v, %v, want false", exists, err)
	}

	// Deleting a missing object is idempotent
	if err := l.Delete(ctx, "a"); err != nil {
		t.Errorf("second Delete failed: %v", err)
	}
}

func TestLocalStorage_ListObjects(t *testing.T) {
	l, base := newLocal(t)
	ctx := context.Background()

	src := writeTemp(t, base, "a.txt", "x")
	for _, obj := range []string{"runs/r1/a", "runs/r1/b", "runs/r2/a"} {
		if err := l.Upload(ctx, src, obj); err != nil {
			t.Fatalf("Upload %s failed: %v", obj, err)
		}
	}

	objects, err := l.ListObjects(ctx, "runs/r1")
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	if len(objects) != 2 {
		t.Errorf("objects = %v, want 2 under runs/r1", objects)
	}

	objects, err = l.ListObjects(ctx, "missing/prefix")
	if err != nil {
		t.Fatalf("ListObjects on missing prefix failed: %v", err)
	}
	if len(objects) != 0 {
		t.Errorf("objects = %v, want empty", objects)
	}
}

func TestSplitS3URI(t *testing.T) {
	bucket, key, err := SplitS3URI("s3://logs/access/2024.log")
	if err != nil {
		t.Fatalf("SplitS3URI failed: %v", err)
	}
	if bucket != "logs" || key != "access/2024.log" {
		t.Errorf("got %q %q", bucket, key)
	}

	for _, bad := range []string{"http://x/y", "s3://", "s3://bucketonly"} {
		if _, _, err := SplitS3URI(bad); err == nil {
			t.Errorf("SplitS3URI(%q) should fail", bad)
		}
	}
}
