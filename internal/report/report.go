// Package report implements the fixed analytical reports computed over a
// sealed store snapshot. Every report is a pure function of the snapshot
// and the report configuration; reports are independent and run
// concurrently against the same snapshot.
package report

import (
	"context"
	"fmt"
	"sync"

	"github.com/accesstrail/accesstrail/internal/config"
	apperrors "github.com/accesstrail/accesstrail/internal/errors"
	"github.com/accesstrail/accesstrail/internal/store"
)

// Report names. The detail report's name is derived from the configured
// detail status, see Engine.Names.
const (
	NameTotalRequests      = "total_requests"
	NameStatusDistribution = "status_distribution"
	NameTopPages           = "top_pages"
	NameTrafficSources     = "traffic_sources"
	NameSuspiciousIPs      = "suspicious_ips"
	NameTrafficTrends      = "traffic_trends"
)

// Report is the ordered output of one aggregation. Rows are already
// stringified; the writer joins each row's fields with single spaces.
type Report struct {
	Name string
	Rows [][]string
}

// Result pairs a report name with its outcome. A failed report carries a
// nil Report and a non-nil Err; failures are isolated per report.
type Result struct {
	Name   string
	Report *Report
	Err    error
}

// Engine computes the fixed reports over one snapshot.
type Engine struct {
	snap *store.Snapshot
	cfg  config.ReportsConfig
}

// NewEngine creates a report engine bound to a sealed snapshot.
func NewEngine(snap *store.Snapshot, cfg config.ReportsConfig) *Engine {
	return &Engine{snap: snap, cfg: cfg}
}

// detailName returns the name of the status-detail report.
func (e *Engine) detailName() string {
	return fmt.Sprintf("status_%d_detail", e.cfg.DetailStatus)
}

// Names returns the names of all reports in their fixed order.
func (e *Engine) Names() []string {
	return []string{
		NameTotalRequests,
		NameStatusDistribution,
		NameTopPages,
		NameTrafficSources,
		NameSuspiciousIPs,
		NameTrafficTrends,
		e.detailName(),
	}
}

// Run computes a single report by name.
func (e *Engine) Run(ctx context.Context, name string) (*Report, error) {
	var fn func(context.Context) (*Report, error)
	switch name {
	case NameTotalRequests:
		fn = e.TotalRequests
	case NameStatusDistribution:
		fn = e.StatusDistribution
	case NameTopPages:
		fn = e.TopPages
	case NameTrafficSources:
		fn = e.TrafficSources
	case NameSuspiciousIPs:
		fn = e.SuspiciousIPs
	case NameTrafficTrends:
		fn = e.TrafficTrends
	case e.detailName():
		fn = e.StatusDetail
	default:
		return nil, apperrors.New(apperrors.ErrCategoryReport, apperrors.CodeUnknownReport, fmt.Sprintf("unknown report %q", name))
	}

	rep, err := fn(ctx)
	if err != nil {
		return nil, apperrors.NewReportError(fmt.Sprintf("report %s failed", name), err)
	}
	return rep, nil
}

// RunAll computes every report concurrently, bounded by the configured
// concurrency. Results come back in the fixed report order; a failed
// report never blocks or fails the others.
func (e *Engine) RunAll(ctx context.Context) []Result {
	names := e.Names()
	results := make([]Result, len(names))

	concurrency := e.cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			rep, err := e.Run(ctx, name)
			results[i] = Result{Name: name, Report: rep, Err: err}
		}(i, name)
	}
	wg.Wait()

	return results
}
