// Package writer serializes reports to isolated per-report destinations.
// Each report gets its own directory and writing is all-or-nothing: the
// artifact appears under its final name only after a complete write.
package writer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/accesstrail/accesstrail/internal/config"
	apperrors "github.com/accesstrail/accesstrail/internal/errors"
	"github.com/accesstrail/accesstrail/internal/report"
	"github.com/klauspost/compress/zstd"
)

// artifactName is the file name of a report artifact inside its directory.
const artifactName = "part-00000"

// Writer writes report artifacts under a root output directory.
type Writer struct {
	rootDir     string
	compression config.Compression
}

// New creates a writer rooted at cfg.Dir.
func New(cfg config.OutputConfig) *Writer {
	return &Writer{rootDir: cfg.Dir, compression: cfg.Compression}
}

// Path returns the artifact path a report will be written to.
func (w *Writer) Path(name string) string {
	file := artifactName
	if w.compression == config.CompressionZstd {
		file += ".zst"
	}
	return filepath.Join(w.rootDir, name, file)
}

// Write serializes the report, one row per line with fields joined by
// single spaces, into the report's own directory. The content is written
// to a temp file, synced, then renamed into place; any failure removes the
// temp file and surfaces an OUTPUT error, so a partially written artifact
// is never mistaken for a complete one.
func (w *Writer) Write(rep *report.Report) (string, error) {
	destDir := filepath.Join(w.rootDir, rep.Name)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", apperrors.NewOutputError(fmt.Sprintf("failed to create destination for report %s", rep.Name), err)
	}

	tmp, err := os.CreateTemp(destDir, ".part-*")
	if err != nil {
		return "", apperrors.NewOutputError(fmt.Sprintf("failed to create temp file for report %s", rep.Name), err)
	}
	tmpPath := tmp.Name()

	if err := w.writeRows(tmp, rep); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", apperrors.NewOutputError(fmt.Sprintf("failed to write report %s", rep.Name), err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", apperrors.NewOutputError(fmt.Sprintf("failed to sync report %s", rep.Name), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", apperrors.NewOutputError(fmt.Sprintf("failed to close report %s", rep.Name), err)
	}

	finalPath := w.Path(rep.Name)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", apperrors.NewOutputError(fmt.Sprintf("failed to finalize report %s", rep.Name), err)
	}

	return finalPath, nil
}

// writeRows writes the serialized rows, optionally through a zstd encoder.
func (w *Writer) writeRows(dst io.Writer, rep *report.Report) error {
	if w.compression == config.CompressionZstd {
		enc, err := zstd.NewWriter(dst)
		if err != nil {
			return err
		}
		if err := writePlain(enc, rep); err != nil {
			enc.Close()
			return err
		}
		return enc.Close()
	}
	return writePlain(dst, rep)
}

func writePlain(dst io.Writer, rep *report.Report) error {
	var sb strings.Builder
	for _, row := range rep.Rows {
		sb.Reset()
		sb.WriteString(strings.Join(row, " "))
		sb.WriteByte('\n')
		if _, err := io.WriteString(dst, sb.String()); err != nil {
			return err
		}
	}
	return nil
}
