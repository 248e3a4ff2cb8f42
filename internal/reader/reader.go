// Package reader streams delimited access-log lines into typed records.
// Malformed lines are counted and reported, never silently dropped, and
// never abort the read.
package reader

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/accesstrail/accesstrail/internal/config"
	apperrors "github.com/accesstrail/accesstrail/internal/errors"
	"github.com/accesstrail/accesstrail/pkg/types"
	"github.com/klauspost/compress/zstd"
)

// maxLineSize bounds a single log line.
const maxLineSize = 1 << 20 // 1MB

// Stats summarizes one pass over an input stream.
type Stats struct {
	// Lines is the number of non-empty lines seen
	Lines int64

	// Records is the number of well-formed records emitted
	Records int64

	// Malformed is the number of lines rejected at parse time
	Malformed int64
}

// MalformedFunc is invoked once per rejected line.
type MalformedFunc func(lineNo int64, line string, err error)

// Reader parses an input stream into LogRecords in a single forward pass.
// It is not restartable; create a new Reader per input.
type Reader struct {
	format      config.InputFormat
	delimiter   string
	minuteLen   int
	onMalformed MalformedFunc
}

// New creates a reader for the given input configuration. minuteLen is the
// minimum timestamp length a record must carry (see reports config).
func New(input config.InputConfig, minuteLen int) *Reader {
	return &Reader{
		format:    input.Format,
		delimiter: input.Delimiter,
		minuteLen: minuteLen,
	}
}

// OnMalformed registers a callback invoked for every rejected line.
func (r *Reader) OnMalformed(fn MalformedFunc) {
	r.onMalformed = fn
}

// Read consumes src line by line, emitting each well-formed record.
// Empty lines are skipped. Malformed lines increment Stats.Malformed and
// processing continues with the next line. Read stops early only when the
// context is cancelled or emit returns an error.
func (r *Reader) Read(ctx context.Context, src io.Reader, emit func(types.LogRecord) error) (Stats, error) {
	var stats Stats

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var lineNo int64
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		stats.Lines++

		rec, err := r.parseLine(line)
		if err != nil {
			stats.Malformed++
			if r.onMalformed != nil {
				r.onMalformed(lineNo, line, err)
			}
			continue
		}

		if err := emit(rec); err != nil {
			return stats, err
		}
		stats.Records++
	}

	if err := scanner.Err(); err != nil {
		return stats, apperrors.NewIngestError(apperrors.CodeReadFailed, "failed to read input stream", err)
	}

	return stats, nil
}

// parseLine dispatches on the configured input format.
func (r *Reader) parseLine(line string) (types.LogRecord, error) {
	switch r.format {
	case config.FormatJSON:
		return parseJSONLine(line, r.minuteLen)
	default:
		return types.ParseRecord(line, r.delimiter, r.minuteLen)
	}
}

// Open resolves a local input path into a line stream. Files with a .zst
// extension are decompressed transparently.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewIngestError(apperrors.CodeReadFailed, fmt.Sprintf("failed to open input %s", path), err)
	}

	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, apperrors.NewIngestError(apperrors.CodeReadFailed, fmt.Sprintf("failed to open zstd input %s", path), err)
		}
		return &zstdReadCloser{dec: dec, file: f}, nil
	}

	return f, nil
}

// zstdReadCloser closes both the decoder and the underlying file.
type zstdReadCloser struct {
	dec  *zstd.Decoder
	file *os.File
}

func (z *zstdReadCloser) Read(p []byte) (int, error) {
	return z.dec.Read(p)
}

func (z *zstdReadCloser) Close() error {
	z.dec.Close()
	return z.file.Close()
}
