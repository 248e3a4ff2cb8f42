package writer

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/accesstrail/accesstrail/internal/config"
	apperrors "github.com/accesstrail/accesstrail/internal/errors"
	"github.com/accesstrail/accesstrail/internal/report"
	"github.com/klauspost/compress/zstd"
)

func TestWrite_SpaceJoinedLines(t *testing.T) {
	dir := t.TempDir()
	w := New(config.OutputConfig{Dir: dir, Compression: config.CompressionNone})

	rep := &report.Report{
		Name: "suspicious_ips",
		Rows: [][]string{{"1.1.1.1", "4"}, {"2.2.2.2", "9"}},
	}

	path, err := w.Write(rep)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if path != filepath.Join(dir, "suspicious_ips", "part-00000") {
		t.Errorf("path = %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read artifact: %v", err)
	}
	want := "1.1.1.1 4\n2.2.2.2 9\n"
	if string(data) != want {
		t.Errorf("content = %q, want %q", data, want)
	}
}

func TestWrite_EmptyReport(t *testing.T) {
	dir := t.TempDir()
	w := New(config.OutputConfig{Dir: dir, Compression: config.CompressionNone})

	path, err := w.Write(&report.Report{Name: "suspicious_ips"})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read artifact: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("empty report should produce an empty artifact, got %q", data)
	}
}

func TestWrite_IsolatedDestinations(t *testing.T) {
	dir := t.TempDir()
	w := New(config.OutputConfig{Dir: dir, Compression: config.CompressionNone})

	p1, err := w.Write(&report.Report{Name: "total_requests", Rows: [][]string{{"Total Requests:", "1"}}})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	p2, err := w.Write(&report.Report{Name: "top_pages", Rows: [][]string{{"/a", "1"}}})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if filepath.Dir(p1) == filepath.Dir(p2) {
		t.Errorf("reports share a destination directory: %s", filepath.Dir(p1))
	}
}

func TestWrite_NoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	w := New(config.OutputConfig{Dir: dir, Compression: config.CompressionNone})

	if _, err := w.Write(&report.Report{Name: "traffic_trends", Rows: [][]string{{"2024-01-01T00:00", "3"}}}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "traffic_trends"))
	if err != nil {
		t.Fatalf("failed to list destination: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "part-00000" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("destination contents = %v, want only part-00000", names)
	}
}

func TestWrite_FailureSurfacesOutputError(t *testing.T) {
	// A file where the destination directory should be forces MkdirAll to fail.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "total_requests")
	if err := os.WriteFile(blocker, []byte("in the way"), 0644); err != nil {
		t.Fatalf("failed to create blocker: %v", err)
	}

	w := New(config.OutputConfig{Dir: dir, Compression: config.CompressionNone})
	_, err := w.Write(&report.Report{Name: "total_requests", Rows: [][]string{{"Total Requests:", "0"}}})
	if err == nil {
		t.Fatal("expected write failure")
	}
	if !errors.Is(err, apperrors.New(apperrors.ErrCategoryOutput, apperrors.CodeWriteFailed, "")) {
		t.Errorf("expected OUTPUT:WRITE_FAILED, got %v", err)
	}
}

func TestWrite_ZstdCompression(t *testing.T) {
	dir := t.TempDir()
	w := New(config.OutputConfig{Dir: dir, Compression: config.CompressionZstd})

	rep := &report.Report{
		Name: "status_distribution",
		Rows: [][]string{{"200", "10"}, {"404", "2"}},
	}
	path, err := w.Write(rep)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !strings.HasSuffix(path, ".zst") {
		t.Errorf("path = %q, want .zst suffix", path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open artifact: %v", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}
	defer dec.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, dec); err != nil {
		t.Fatalf("failed to decompress: %v", err)
	}
	want := "200 10\n404 2\n"
	if buf.String() != want {
		t.Errorf("decompressed = %q, want %q", buf.String(), want)
	}
}
