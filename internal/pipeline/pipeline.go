// Package pipeline wires ingestion, the partition store, the report
// engine, the report writer, and the run manifest into one batch run.
//
// A run has two phases with a hard barrier between them: a single writer
// populates the store during ingestion, then the sealed snapshot serves
// many concurrent report readers. Line-level ingest errors never abort the
// run, and each report's failure is isolated to that report.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"path"
	"path/filepath"

	"github.com/accesstrail/accesstrail/internal/config"
	apperrors "github.com/accesstrail/accesstrail/internal/errors"
	"github.com/accesstrail/accesstrail/internal/manifest"
	"github.com/accesstrail/accesstrail/internal/reader"
	"github.com/accesstrail/accesstrail/internal/report"
	"github.com/accesstrail/accesstrail/internal/storage"
	"github.com/accesstrail/accesstrail/internal/store"
	"github.com/accesstrail/accesstrail/internal/writer"
	"github.com/accesstrail/accesstrail/pkg/types"
)

// maxLoggedMalformed caps how many rejected lines are logged individually.
const maxLoggedMalformed = 10

// ReportOutcome is one report's result within a run summary.
type ReportOutcome struct {
	Name     string
	Rows     int64
	Artifact string
	Err      error
}

// Summary is the user-visible outcome of a run.
type Summary struct {
	RunID    string
	Lines    int64
	Records  int64
	Rejected int64
	Reports  []ReportOutcome
}

// Failed reports whether any report failed.
func (s *Summary) Failed() bool {
	for _, r := range s.Reports {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// Pipeline runs the full ingest-and-report batch.
type Pipeline struct {
	cfg     *config.Config
	catalog *manifest.Catalog
	objects storage.ObjectStorage
}

// New validates the configuration and initializes shared resources.
func New(ctx context.Context, cfg *config.Config) (*Pipeline, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	catalog, err := manifest.NewCatalog(cfg.ManifestPath())
	if err != nil {
		return nil, err
	}

	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		catalog.Close()
		return nil, err
	}

	return &Pipeline{cfg: cfg, catalog: catalog, objects: objects}, nil
}

// Catalog exposes the run manifest for inspection commands.
func (p *Pipeline) Catalog() *manifest.Catalog {
	return p.catalog
}

// Close releases the pipeline's resources.
func (p *Pipeline) Close() error {
	return p.catalog.Close()
}

// Run executes one complete pipeline pass. The returned error covers
// unrecoverable conditions only (unreadable input, manifest unavailable);
// per-report failures are carried in the summary.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	runID, err := p.catalog.BeginRun(ctx, p.cfg.Input.Path, string(p.cfg.Input.Format))
	if err != nil {
		return nil, err
	}
	log.Printf("run %s: ingesting %s", runID, p.cfg.Input.Path)

	snap, stats, err := p.ingest(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("run %s: %d records in %d partitions, %d rejected",
		runID, snap.Len(), len(snap.Partitions()), stats.Malformed)

	for _, ps := range snap.Stats() {
		if err := p.catalog.RegisterPartition(ctx, runID, ps); err != nil {
			return nil, err
		}
	}

	summary := &Summary{
		RunID:    runID,
		Lines:    stats.Lines,
		Records:  stats.Records,
		Rejected: stats.Malformed,
	}

	engine := report.NewEngine(snap, p.cfg.Reports)
	w := writer.New(p.cfg.Output)

	for _, res := range engine.RunAll(ctx) {
		outcome := ReportOutcome{Name: res.Name, Err: res.Err}
		var rows [][]string

		if res.Err == nil {
			rows = res.Report.Rows
			outcome.Rows = int64(len(rows))
			outcome.Artifact, outcome.Err = w.Write(res.Report)
		}
		if outcome.Err != nil {
			log.Printf("run %s: report %s failed: %v", runID, res.Name, outcome.Err)
		}

		if err := p.catalog.RecordReport(ctx, runID, res.Name, rows, outcome.Artifact, outcome.Err); err != nil {
			return nil, err
		}
		summary.Reports = append(summary.Reports, outcome)
	}

	if p.cfg.Storage.Archive {
		p.archive(ctx, summary)
	}

	if err := p.catalog.FinishRun(ctx, runID, summary.Lines, summary.Records, summary.Rejected); err != nil {
		return nil, err
	}

	return summary, nil
}

// ingest runs the single-writer phase and returns the sealed snapshot.
func (p *Pipeline) ingest(ctx context.Context) (*store.Snapshot, reader.Stats, error) {
	inputPath, err := p.resolveInput(ctx)
	if err != nil {
		return nil, reader.Stats{}, err
	}

	src, err := reader.Open(inputPath)
	if err != nil {
		return nil, reader.Stats{}, err
	}
	defer src.Close()

	r := reader.New(p.cfg.Input, p.cfg.Reports.MinuteTruncationLength)
	var logged int64
	r.OnMalformed(func(lineNo int64, line string, err error) {
		logged++
		if logged <= maxLoggedMalformed {
			log.Printf("rejected line %d: %v", lineNo, err)
		} else if logged == maxLoggedMalformed+1 {
			log.Printf("suppressing further rejected-line logs")
		}
	})

	s := store.New()
	stats, err := r.Read(ctx, src, func(rec types.LogRecord) error {
		s.Insert(rec)
		return nil
	})
	if err != nil {
		return nil, stats, err
	}

	return s.Seal(), stats, nil
}

// resolveInput fetches remote inputs into the data directory.
func (p *Pipeline) resolveInput(ctx context.Context) (string, error) {
	if !storage.IsS3URI(p.cfg.Input.Path) {
		return p.cfg.Input.Path, nil
	}

	bucket, key, err := storage.SplitS3URI(p.cfg.Input.Path)
	if err != nil {
		return "", apperrors.NewIngestError(apperrors.CodeReadFailed, "invalid input URI", err)
	}
	if p.cfg.Storage.Type != "s3" || bucket != p.cfg.Storage.S3.Bucket {
		return "", apperrors.NewIngestError(apperrors.CodeReadFailed,
			fmt.Sprintf("input bucket %s is not the configured storage bucket", bucket), nil)
	}

	localPath := filepath.Join(p.cfg.DataDir, "inputs", path.Base(key))
	if err := p.objects.Download(ctx, key, localPath); err != nil {
		return "", apperrors.NewStorageError(apperrors.CodeDownloadFailed,
			fmt.Sprintf("failed to fetch input %s", p.cfg.Input.Path), err)
	}
	return localPath, nil
}

// archive copies successful report artifacts to object storage. Archive
// failures are logged per report and never fail the run.
func (p *Pipeline) archive(ctx context.Context, summary *Summary) {
	for i := range summary.Reports {
		outcome := &summary.Reports[i]
		if outcome.Err != nil || outcome.Artifact == "" {
			continue
		}

		objectPath := path.Join("runs", summary.RunID, outcome.Name, filepath.Base(outcome.Artifact))
		if err := p.objects.Upload(ctx, outcome.Artifact, objectPath); err != nil {
			log.Printf("run %s: failed to archive %s: %v", summary.RunID, outcome.Name, err)
		}
	}
}
