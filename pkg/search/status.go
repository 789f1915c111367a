package search

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EpochLayout is the timestamp format used by query documents and result
// records.
const EpochLayout = "2006-01-02T15:04:05"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	EpochLayout,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Timestamp decodes the server's timestamp strings, which come with or
// without fractional seconds and zone. Values without a zone are UTC.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// ParseTimestamp parses any timestamp format the API emits.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp: unrecognized format %q", s)
}

// LogEntry is one server-side log message for a request.
type LogEntry struct {
	Timestamp Timestamp `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"summary"`
}

// RequestInfo is the search_request section of a status document.
type RequestInfo struct {
	RequestID   string          `json:"request_id,omitempty"`
	RequestType string          `json:"request_type,omitempty"`
	Requested   Timestamp       `json:"requested"`
	Query       json.RawMessage `json:"query,omitempty"`
}

// ResultInfo is the search_result section of a status document.
type ResultInfo struct {
	DataURI            *string   `json:"data_uri"`
	ErrorCondition     bool      `json:"error_condition"`
	CompletedTimestamp Timestamp `json:"completed_timestamp"`
	QueryDuration      *int64    `json:"query_duration"`
	FileSize           *int64    `json:"file_size"`
	ResultCount        *int64    `json:"result_count"`
}

// StatusDocument is the server's snapshot of a job.
type StatusDocument struct {
	SearchRequest RequestInfo `json:"search_request"`
	SearchResult  ResultInfo  `json:"search_result"`
	Logs          []LogEntry  `json:"logs"`
}

// HasData reports whether the server published a data URI.
func (s *StatusDocument) HasData() bool {
	return s.SearchResult.DataURI != nil && *s.SearchResult.DataURI != ""
}

// Terminal reports whether the document ends a wait: data is available or
// the error condition is set.
func (s *StatusDocument) Terminal() bool {
	return s.HasData() || s.SearchResult.ErrorCondition
}

// LastLog returns the newest log message, or "" when there are none.
func (s *StatusDocument) LastLog() string {
	if len(s.Logs) == 0 {
		return ""
	}
	return s.Logs[len(s.Logs)-1].Message
}

// clone returns a deep copy so handle snapshots never alias poller buffers.
func (s *StatusDocument) clone() *StatusDocument {
	if s == nil {
		return nil
	}
	c := *s
	c.SearchRequest.Query = append(json.RawMessage(nil), s.SearchRequest.Query...)
	if s.SearchResult.DataURI != nil {
		v := *s.SearchResult.DataURI
		c.SearchResult.DataURI = &v
	}
	c.SearchResult.QueryDuration = clonePtr(s.SearchResult.QueryDuration)
	c.SearchResult.FileSize = clonePtr(s.SearchResult.FileSize)
	c.SearchResult.ResultCount = clonePtr(s.SearchResult.ResultCount)
	c.Logs = append([]LogEntry(nil), s.Logs...)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Summary holds the metrics reported by the last status fetch.
type Summary struct {
	ResultCount     int64
	FileSizeBytes   int64
	QueryDurationMs int64
	ErrorCondition  bool
}

func summarize(s *StatusDocument) Summary {
	if s == nil {
		return Summary{}
	}
	deref := func(p *int64) int64 {
		if p == nil {
			return 0
		}
		return *p
	}
	return Summary{
		ResultCount:     deref(s.SearchResult.ResultCount),
		FileSizeBytes:   deref(s.SearchResult.FileSize),
		QueryDurationMs: deref(s.SearchResult.QueryDuration),
		ErrorCondition:  s.SearchResult.ErrorCondition,
	}
}
