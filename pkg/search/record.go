package search

import (
	"time"
)

// Record is one materialized result item. Domain decoders read it through
// the typed accessors, which return zero values for missing or mistyped
// fields.
type Record map[string]any

func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

func (r Record) Float(key string) float64 {
	f, _ := r[key].(float64)
	return f
}

func (r Record) Int(key string) int64 {
	return int64(r.Float(key))
}

func (r Record) Bool(key string) bool {
	b, _ := r[key].(bool)
	return b
}

func (r Record) Time(key string) time.Time {
	t, _ := r[key].(time.Time)
	return t
}

func (r Record) Location(key string) *Location {
	l, _ := r[key].(*Location)
	return l
}

// Map returns a nested object field.
func (r Record) Map(key string) map[string]any {
	m, _ := r[key].(map[string]any)
	return m
}

// Record returns a nested object field as a Record.
func (r Record) Record(key string) Record {
	return Record(r.Map(key))
}

// Records returns an array-of-objects field. It accepts both materialized
// ([]Record) and raw ([]any) arrays.
func (r Record) Records(key string) []Record {
	switch v := r[key].(type) {
	case []Record:
		return v
	case []any:
		out := make([]Record, 0, len(v))
		for _, elem := range v {
			if m, ok := elem.(map[string]any); ok {
				out = append(out, Record(m))
			}
		}
		return out
	}
	return nil
}

func (r Record) Strings(key string) []string {
	list, _ := r[key].([]any)
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
