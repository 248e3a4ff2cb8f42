package report

import (
	"context"
	"strconv"

	"github.com/accesstrail/accesstrail/pkg/types"
)

// TotalRequests counts all records across all partitions. Emits a single
// labeled row; 0 when the store is empty.
func (e *Engine) TotalRequests(ctx context.Context) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Report{
		Name: NameTotalRequests,
		Rows: [][]string{{"Total Requests:", strconv.FormatInt(e.snap.Len(), 10)}},
	}, nil
}

// StatusDistribution counts records per status code, ascending by status.
// Partition row counts are the distribution; no record scan is needed.
func (e *Engine) StatusDistribution(ctx context.Context) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rep := &Report{Name: NameStatusDistribution}
	for _, key := range e.snap.Partitions() {
		count := int64(len(e.snap.Records(key)))
		rep.Rows = append(rep.Rows, []string{key.String(), strconv.FormatInt(count, 10)})
	}
	return rep, nil
}

// TopPages counts records per URL and keeps the most visited pages,
// descending by count. Equal counts order lexicographically ascending by
// URL. Fewer distinct URLs than the limit yields all of them.
func (e *Engine) TopPages(ctx context.Context) (*Report, error) {
	groups, err := countBy(ctx, e.snap, nil, nil, func(r types.LogRecord) string { return r.URL })
	if err != nil {
		return nil, err
	}

	rows := orderedByCountDesc(groups)
	if len(rows) > e.cfg.TopPagesLimit {
		rows = rows[:e.cfg.TopPagesLimit]
	}
	return toReport(NameTopPages, rows), nil
}

// TrafficSources counts records per user agent, descending by count, no
// limit.
func (e *Engine) TrafficSources(ctx context.Context) (*Report, error) {
	groups, err := countBy(ctx, e.snap, nil, nil, func(r types.LogRecord) string { return r.UserAgent })
	if err != nil {
		return nil, err
	}
	return toReport(NameTrafficSources, orderedByCountDesc(groups)), nil
}

// SuspiciousIPs counts failed requests per IP over the failure-status
// partitions only, keeping IPs whose count strictly exceeds the threshold.
// Zero qualifying IPs is a valid, empty report.
func (e *Engine) SuspiciousIPs(ctx context.Context) (*Report, error) {
	keys := make([]types.PartitionKey, 0, len(e.cfg.FailureStatuses))
	for _, s := range e.cfg.FailureStatuses {
		keys = append(keys, types.PartitionKey(s))
	}

	groups, err := countBy(ctx, e.snap, keys, nil, func(r types.LogRecord) string { return r.IP })
	if err != nil {
		return nil, err
	}

	threshold := int64(e.cfg.SuspiciousThreshold)
	for ip, count := range groups {
		if count <= threshold {
			delete(groups, ip)
		}
	}
	return toReport(NameSuspiciousIPs, orderedByCountDesc(groups)), nil
}

// TrafficTrends counts records per minute bucket (the timestamp truncated
// to the configured prefix length), ascending by bucket. The timestamp
// format is assumed lexicographically sortable; records with timestamps too
// short to bucket were already rejected at ingestion.
func (e *Engine) TrafficTrends(ctx context.Context) (*Report, error) {
	minuteLen := e.cfg.MinuteTruncationLength
	groups, err := countBy(ctx, e.snap, nil, nil, func(r types.LogRecord) string {
		return r.MinuteBucket(minuteLen)
	})
	if err != nil {
		return nil, err
	}
	return toReport(NameTrafficTrends, orderedByKeyAsc(groups)), nil
}

// StatusDetail emits every record in the configured detail partition as a
// full field tuple, in insertion order. Only that partition is scanned.
func (e *Engine) StatusDetail(ctx context.Context) (*Report, error) {
	rep := &Report{Name: e.detailName()}
	keys := []types.PartitionKey{types.PartitionKey(e.cfg.DetailStatus)}
	err := e.snap.Scan(ctx, keys, nil, func(rec types.LogRecord) error {
		rep.Rows = append(rep.Rows, rec.Fields())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// toReport converts ordered group counts into report rows.
func toReport(name string, rows []groupCount) *Report {
	rep := &Report{Name: name}
	for _, row := range rows {
		rep.Rows = append(rep.Rows, []string{row.Key, strconv.FormatInt(row.Count, 10)})
	}
	return rep
}
