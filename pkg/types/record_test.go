package types

import (
	"errors"
	"testing"
)

func TestParseRecord(t *testing.T) {
	rec, err := ParseRecord("1.1.1.1,2024-01-01T00:00,/a,200,UA1", ",", 16)
	if err != nil {
		t.Fatalf("ParseRecord failed: %v", err)
	}
	if rec.IP != "1.1.1.1" || rec.Timestamp != "2024-01-01T00:00" || rec.URL != "/a" ||
		rec.Status != 200 || rec.UserAgent != "UA1" {
		t.Errorf("record = %+v", rec)
	}
}

func TestParseRecord_Malformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"too few fields", "1.1.1.1,2024-01-01T00:00,/a,200"},
		{"too many fields", "1.1.1.1,2024-01-01T00:00,/a,200,UA1,extra"},
		{"non-numeric status", "1.1.1.1,2024-01-01T00:00,/a,OK,UA1"},
		{"short timestamp", "1.1.1.1,2024-01,/a,200,UA1"},
		{"empty line", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRecord(tt.line, ",", 16)
			if !errors.Is(err, ErrMalformedRecord) {
				t.Errorf("expected ErrMalformedRecord, got %v", err)
			}
		})
	}
}

func TestParseRecord_StatusWhitespace(t *testing.T) {
	rec, err := ParseRecord("1.1.1.1,2024-01-01T00:00,/a, 404 ,UA1", ",", 16)
	if err != nil {
		t.Fatalf("ParseRecord failed: %v", err)
	}
	if rec.Status != 404 {
		t.Errorf("status = %d, want 404", rec.Status)
	}
}

func TestMinuteBucket(t *testing.T) {
	rec := LogRecord{Timestamp: "2024-01-01T00:05:42"}
	if got := rec.MinuteBucket(16); got != "2024-01-01T00:05" {
		t.Errorf("bucket = %q", got)
	}
}

func TestKey(t *testing.T) {
	rec := LogRecord{Status: 404}
	if rec.Key() != 404 || rec.Key().String() != "404" {
		t.Errorf("key = %v", rec.Key())
	}
}

func TestFields(t *testing.T) {
	rec := LogRecord{IP: "1.1.1.1", Timestamp: "2024-01-01T00:00", URL: "/a", Status: 200, UserAgent: "UA1"}
	fields := rec.Fields()
	want := []string{"1.1.1.1", "2024-01-01T00:00", "/a", "200", "UA1"}
	if len(fields) != len(want) {
		t.Fatalf("fields = %v", fields)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Errorf("fields = %v, want %v", fields, want)
		}
	}
}
