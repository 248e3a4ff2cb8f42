// Package types provides core data types for the accesstrail pipeline.
package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// FieldCount is the number of fields in a well-formed log line.
const FieldCount = 5

// LogRecord represents a single parsed access-log line.
// Records are immutable once parsed.
type LogRecord struct {
	// IP is the client IP address
	IP string `json:"ip"`

	// Timestamp is the request timestamp in its textual form.
	// The format is assumed lexicographically sortable (ISO-like).
	Timestamp string `json:"timestamp"`

	// URL is the requested path
	URL string `json:"url"`

	// Status is the HTTP response status code
	Status int `json:"status"`

	// UserAgent is the client user-agent string
	UserAgent string `json:"user_agent"`
}

// ErrMalformedRecord is returned when a log line cannot be parsed.
var ErrMalformedRecord = errors.New("malformed record")

// ParseRecord parses one delimited log line into a LogRecord.
// The line must split into exactly FieldCount fields, the status field must
// be an integer, and the timestamp must carry at least minuteLen characters
// so that minute truncation is well defined. Any violation wraps
// ErrMalformedRecord.
func ParseRecord(line, delimiter string, minuteLen int) (LogRecord, error) {
	fields := strings.Split(line, delimiter)
	if len(fields) != FieldCount {
		return LogRecord{}, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedRecord, FieldCount, len(fields))
	}

	status, err := strconv.Atoi(strings.TrimSpace(fields[3]))
	if err != nil {
		return LogRecord{}, fmt.Errorf("%w: non-numeric status %q", ErrMalformedRecord, fields[3])
	}

	if len(fields[1]) < minuteLen {
		return LogRecord{}, fmt.Errorf("%w: timestamp %q shorter than %d characters", ErrMalformedRecord, fields[1], minuteLen)
	}

	return LogRecord{
		IP:        fields[0],
		Timestamp: fields[1],
		URL:       fields[2],
		Status:    status,
		UserAgent: fields[4],
	}, nil
}

// MinuteBucket returns the timestamp truncated to minute granularity,
// i.e. its first minuteLen characters.
func (r LogRecord) MinuteBucket(minuteLen int) string {
	if len(r.Timestamp) < minuteLen {
		return r.Timestamp
	}
	return r.Timestamp[:minuteLen]
}

// Fields returns the record as its five textual fields in input order.
func (r LogRecord) Fields() []string {
	return []string{r.IP, r.Timestamp, r.URL, strconv.Itoa(r.Status), r.UserAgent}
}
