package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// naiveLayout is how the backend writes its datetimes: UTC, no zone offset.
const naiveLayout = "2006-01-02T15:04:05.999999999"

// Timestamp is a backend datetime. It decodes RFC 3339 as well as the naive
// layout, which is read as UTC. It encodes as RFC 3339.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// UnmarshalJSON accepts an RFC 3339 string, a naive UTC string, an empty
// string or null.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*ts = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("domain.Timestamp: %w", err)
	}
	if s == "" {
		*ts = Timestamp{}
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		ts.Time = t
		return nil
	}
	t, err := time.ParseInLocation(naiveLayout, s, time.UTC)
	if err != nil {
		return fmt.Errorf("domain.Timestamp: %w", err)
	}
	ts.Time = t
	return nil
}
