// Package store provides the in-memory partition store for log records.
// Records are grouped by HTTP status, partitions are created lazily, and
// the store follows a single-writer-then-many-readers discipline: all
// inserts happen before Seal, all scans happen on the sealed snapshot.
package store

import (
	"context"
	"sort"

	"github.com/accesstrail/accesstrail/pkg/types"
)

// Store accumulates log records grouped by partition key during ingestion.
// It is not safe for concurrent writers; the ingestion phase has exactly one.
type Store struct {
	partitions map[types.PartitionKey][]types.LogRecord
	total      int64
	sealed     bool
}

// New creates an empty partition store.
func New() *Store {
	return &Store{
		partitions: make(map[types.PartitionKey][]types.LogRecord),
	}
}

// Insert appends the record to the partition keyed by its status, creating
// the partition on first insertion. O(1) amortized.
// Insert panics if the store has been sealed; the write phase must finish
// before any reader starts.
func (s *Store) Insert(rec types.LogRecord) {
	if s.sealed {
		panic("store: insert after Seal")
	}
	key := rec.Key()
	s.partitions[key] = append(s.partitions[key], rec)
	s.total++
}

// Len returns the total number of records across all partitions.
func (s *Store) Len() int64 {
	return s.total
}

// Seal freezes the store and returns the immutable snapshot all reports
// read from. Further inserts panic.
func (s *Store) Seal() *Snapshot {
	s.sealed = true
	return &Snapshot{partitions: s.partitions, total: s.total}
}

// Snapshot is an immutable view of a fully populated store. Snapshots are
// safe for concurrent readers.
type Snapshot struct {
	partitions map[types.PartitionKey][]types.LogRecord
	total      int64
}

// Partitions returns the known partition keys in ascending order.
func (s *Snapshot) Partitions() []types.PartitionKey {
	keys := make([]types.PartitionKey, 0, len(s.partitions))
	for k := range s.partitions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Len returns the total number of records across all partitions.
func (s *Snapshot) Len() int64 {
	return s.total
}

// Records returns the records of one partition in insertion order.
// The caller must not mutate the returned slice.
func (s *Snapshot) Records(key types.PartitionKey) []types.LogRecord {
	return s.partitions[key]
}

// Predicate filters records during a scan. A nil Predicate matches all.
type Predicate func(types.LogRecord) bool

// Scan streams records from the given partitions through fn, in ascending
// partition-key order and insertion order within each partition. An empty
// keys slice scans every partition; a non-empty slice prunes the scan to
// just those partitions, which is what makes status-filtered reports cheap.
// Scan stops early when the context is cancelled or fn returns an error.
func (s *Snapshot) Scan(ctx context.Context, keys []types.PartitionKey, pred Predicate, fn func(types.LogRecord) error) error {
	if len(keys) == 0 {
		keys = s.Partitions()
	} else {
		keys = append([]types.PartitionKey(nil), keys...)
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	}

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, rec := range s.partitions[key] {
			if pred != nil && !pred(rec) {
				continue
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// PartitionStats holds per-partition statistics recorded in the run manifest.
type PartitionStats struct {
	Key          types.PartitionKey
	RowCount     int64
	MinTimestamp string
	MaxTimestamp string
}

// Stats returns per-partition row counts and timestamp ranges, one entry
// per partition in ascending key order.
func (s *Snapshot) Stats() []PartitionStats {
	keys := s.Partitions()
	stats := make([]PartitionStats, 0, len(keys))
	for _, key := range keys {
		recs := s.partitions[key]
		ps := PartitionStats{Key: key, RowCount: int64(len(recs))}
		for _, rec := range recs {
			if ps.MinTimestamp == "" || rec.Timestamp < ps.MinTimestamp {
				ps.MinTimestamp = rec.Timestamp
			}
			if rec.Timestamp > ps.MaxTimestamp {
				ps.MaxTimestamp = rec.Timestamp
			}
		}
		stats = append(stats, ps)
	}
	return stats
}
