package search

import (
	"fmt"
	"maps"
	"time"
)

// FieldKind says how a result field is materialized.
type FieldKind int

const (
	// FieldEpoch is a timestamp string in EpochLayout.
	FieldEpoch FieldKind = iota + 1
	// FieldLocation is a {"lat": .., "lon": ..} object.
	FieldLocation
	// FieldObjects is an array of objects materialized with a nested table.
	FieldObjects
)

// FieldSpec describes one named field. Elem is only used by FieldObjects.
type FieldSpec struct {
	Kind FieldKind
	Elem FieldTable
}

// FieldTable maps wire field names to their materialization. The wire
// format marks timestamps and coordinates by name only, so every special
// field must be listed here.
type FieldTable map[string]FieldSpec

// BaseFields are the fields every result type shares.
var BaseFields = FieldTable{
	"epoch":        {Kind: FieldEpoch},
	"location_geo": {Kind: FieldLocation},
	"location_gsm": {Kind: FieldLocation},
	"nbtrace":      {Kind: FieldLocation},
	"sbtrace":      {Kind: FieldLocation},
}

// Extend returns a copy of t with extra fields added or overridden.
func (t FieldTable) Extend(extra FieldTable) FieldTable {
	out := make(FieldTable, len(t)+len(extra))
	maps.Copy(out, t)
	maps.Copy(out, extra)
	return out
}

// Location is a latitude/longitude pair in decimal degrees.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (l Location) String() string {
	return fmt.Sprintf("(%.4f, %.4f)", l.Lat, l.Lon)
}

// Materialize converts the fields named in table into typed values:
// time.Time for epochs, *Location for coordinate pairs (nil when both
// components are null). Fields not in the table pass through unchanged.
func Materialize(item map[string]any, table FieldTable) (Record, error) {
	rec := make(Record, len(item))
	for k, v := range item {
		spec, ok := table[k]
		if !ok || v == nil {
			rec[k] = v
			continue
		}
		typed, err := materializeField(v, spec)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		rec[k] = typed
	}
	return rec, nil
}

func materializeField(v any, spec FieldSpec) (any, error) {
	switch spec.Kind {
	case FieldEpoch:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected timestamp string, got %T", v)
		}
		ts, err := time.ParseInLocation(EpochLayout, s, time.UTC)
		if err != nil {
			return nil, err
		}
		return ts, nil
	case FieldLocation:
		return materializeLocation(v)
	case FieldObjects:
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("expected array, got %T", v)
		}
		out := make([]Record, 0, len(list))
		for i, elem := range list {
			m, ok := elem.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("element %d: expected object, got %T", i, elem)
			}
			r, err := Materialize(m, spec.Elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out = append(out, r)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown field kind %d", spec.Kind)
	}
}

func materializeLocation(v any) (*Location, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected {lat, lon} object, got %T", v)
	}
	lat, lon := m["lat"], m["lon"]
	if lat == nil && lon == nil {
		return nil, nil
	}
	if lat == nil || lon == nil {
		return nil, fmt.Errorf("latitude and longitude must both be numbers or both be null")
	}
	latF, ok1 := lat.(float64)
	lonF, ok2 := lon.(float64)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("latitude and longitude must be numbers")
	}
	return &Location{Lat: latF, Lon: lonF}, nil
}
