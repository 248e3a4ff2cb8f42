package types

import "strconv"

// PartitionKey identifies a partition in the record store. Records are
// routed by their HTTP status code and nothing else.
type PartitionKey int

// Key returns the partition key for the record.
func (r LogRecord) Key() PartitionKey {
	return PartitionKey(r.Status)
}

// String returns the textual form of the key as it appears in reports
// and in the run manifest.
func (k PartitionKey) String() string {
	return strconv.Itoa(int(k))
}
