package reader

import (
	"fmt"

	"github.com/accesstrail/accesstrail/pkg/types"
	"github.com/valyala/fastjson"
)

var jsonParsers fastjson.ParserPool

// parseJSONLine parses one JSON object per line into a LogRecord.
// The object must carry string ip/timestamp/url/user_agent fields and an
// integer status field; anything else is a malformed record.
func parseJSONLine(line string, minuteLen int) (types.LogRecord, error) {
	p := jsonParsers.Get()
	defer jsonParsers.Put(p)

	v, err := p.Parse(line)
	if err != nil {
		return types.LogRecord{}, fmt.Errorf("%w: invalid JSON: %v", types.ErrMalformedRecord, err)
	}
	if v.Type() != fastjson.TypeObject {
		return types.LogRecord{}, fmt.Errorf("%w: expected JSON object, got %s", types.ErrMalformedRecord, v.Type())
	}

	ip, err := stringField(v, "ip")
	if err != nil {
		return types.LogRecord{}, err
	}
	ts, err := stringField(v, "timestamp")
	if err != nil {
		return types.LogRecord{}, err
	}
	url, err := stringField(v, "url")
	if err != nil {
		return types.LogRecord{}, err
	}
	agent, err := stringField(v, "user_agent")
	if err != nil {
		return types.LogRecord{}, err
	}

	statusVal := v.Get("status")
	if statusVal == nil || statusVal.Type() != fastjson.TypeNumber {
		return types.LogRecord{}, fmt.Errorf("%w: missing or non-numeric status", types.ErrMalformedRecord)
	}
	status, err := statusVal.Int()
	if err != nil {
		return types.LogRecord{}, fmt.Errorf("%w: non-integer status: %v", types.ErrMalformedRecord, err)
	}

	if len(ts) < minuteLen {
		return types.LogRecord{}, fmt.Errorf("%w: timestamp %q shorter than %d characters", types.ErrMalformedRecord, ts, minuteLen)
	}

	return types.LogRecord{
		IP:        ip,
		Timestamp: ts,
		URL:       url,
		Status:    status,
		UserAgent: agent,
	}, nil
}

// stringField extracts a required string field from a JSON object.
func stringField(v *fastjson.Value, name string) (string, error) {
	f := v.Get(name)
	if f == nil || f.Type() != fastjson.TypeString {
		return "", fmt.Errorf("%w: missing or non-string field %q", types.ErrMalformedRecord, name)
	}
	b, err := f.StringBytes()
	if err != nil {
		return "", fmt.Errorf("%w: field %q: %v", types.ErrMalformedRecord, name, err)
	}
	return string(b), nil
}
