package report

import (
	"context"
	"sort"

	"github.com/accesstrail/accesstrail/internal/store"
	"github.com/accesstrail/accesstrail/pkg/types"
)

// groupCount holds one group's dimension value and its record count.
type groupCount struct {
	Key   string
	Count int64
}

// countBy scans the given partitions and counts records per dimension
// value. An empty keys slice scans every partition.
func countBy(
	ctx context.Context,
	snap *store.Snapshot,
	keys []types.PartitionKey,
	pred store.Predicate,
	dim func(types.LogRecord) string,
) (map[string]int64, error) {
	groups := make(map[string]int64)
	err := snap.Scan(ctx, keys, pred, func(rec types.LogRecord) error {
		groups[dim(rec)]++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// orderedByCountDesc flattens a count map into rows sorted by count
// descending; equal counts order lexicographically ascending by key so the
// output is deterministic across runs.
func orderedByCountDesc(groups map[string]int64) []groupCount {
	rows := flatten(groups)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Key < rows[j].Key
	})
	return rows
}

// orderedByKeyAsc flattens a count map into rows sorted lexicographically
// ascending by key.
func orderedByKeyAsc(groups map[string]int64) []groupCount {
	rows := flatten(groups)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	return rows
}

func flatten(groups map[string]int64) []groupCount {
	rows := make([]groupCount, 0, len(groups))
	for k, c := range groups {
		rows = append(rows, groupCount{Key: k, Count: c})
	}
	return rows
}
