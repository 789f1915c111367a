package search

import (
	"encoding/json"
	"fmt"
	"strings"
)

// QueryBuilder produces the JSON query document submitted to the server.
type QueryBuilder interface {
	QueryDocument() (json.RawMessage, error)
}

// RawQuery is a ready-made query document, e.g. read from a file.
type RawQuery json.RawMessage

func (q RawQuery) QueryDocument() (json.RawMessage, error) {
	if !json.Valid(q) {
		return nil, &ValidationError{Message: "query document is not valid JSON"}
	}
	return json.RawMessage(q), nil
}

// Domain describes one search type: where it is submitted, where its
// requests live and how its result records are decoded. The engine is
// otherwise identical for every domain.
type Domain[T any] struct {
	// Name is the URL path segment, e.g. "conjunctions".
	Name string

	// DescribeName is the segment used by the describe endpoint, e.g.
	// "conjunction".
	DescribeName string

	// Fields lists the result fields that need materialization.
	Fields FieldTable

	// Decode turns a materialized record into the domain type.
	Decode func(Record) (T, error)

	// Validate checks a query document before submission. Optional.
	Validate func(json.RawMessage) error
}

// SearchPath is the submission endpoint relative to the API base URL.
func (d Domain[T]) SearchPath() string {
	return fmt.Sprintf("api/v1/%s/search", d.Name)
}

// RequestPath is the status endpoint of request id relative to the API base URL.
func (d Domain[T]) RequestPath(id string) string {
	return fmt.Sprintf("api/v1/%s/requests/%s", d.Name, id)
}

// DescribePath is the describe endpoint relative to the API base URL.
func (d Domain[T]) DescribePath() string {
	name := d.DescribeName
	if name == "" {
		name = d.Name
	}
	return fmt.Sprintf("api/v1/utils/describe/query/%s", name)
}

// RequestIDFromURL returns the last path segment of a request URL.
func RequestIDFromURL(u string) string {
	u = strings.TrimRight(u, "/")
	if i := strings.LastIndex(u, "/"); i >= 0 {
		return u[i+1:]
	}
	return u
}
