// Package conjunctions searches for times when ground instruments,
// spacecraft and custom locations were magnetically or geographically
// close to each other.
package conjunctions

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rubiojr/aurorax/pkg/search"
	"github.com/rubiojr/aurorax/pkg/search/filters"
)

// MaxCriteriaBlocks is the most criteria blocks one search may carry,
// counting ground, space, events and custom location blocks together.
const MaxCriteriaBlocks = 10

// Conjunction types.
const (
	TypeNBTrace    = "nbtrace"
	TypeSBTrace    = "sbtrace"
	TypeGeographic = "geographic"
)

// DefaultEpochSearchPrecision is in seconds. The server also accepts 30.
const DefaultEpochSearchPrecision = 60

var (
	conjunctionTypes = []string{TypeNBTrace, TypeSBTrace, TypeGeographic}
	hemispheres      = []string{"northern", "southern"}
)

// Criteria selects data sources for one ground, space or events block.
type Criteria struct {
	Programs        []string
	Platforms       []string
	InstrumentTypes []string

	// Hemisphere only applies to space blocks.
	Hemisphere []string

	MetadataFilters *filters.Filter
}

// CustomLocations is an ad-hoc block of fixed geographic positions.
type CustomLocations struct {
	Locations []search.Location
}

// Query is a conjunction search.
type Query struct {
	Start time.Time
	End   time.Time

	Ground          []Criteria
	Space           []Criteria
	Events          []Criteria
	CustomLocations []CustomLocations

	// ConjunctionTypes defaults to nbtrace.
	ConjunctionTypes []string

	// Distance is the maximum distance in kilometres applied to every pair
	// of blocks. Zero leaves pairs unset unless Distances names them.
	Distance float64

	// Distances overrides individual pairs, keyed "ground1-space1". The
	// order of the two block names does not matter.
	Distances map[string]float64

	// EpochSearchPrecision defaults to DefaultEpochSearchPrecision.
	EpochSearchPrecision int
}

// BlockCount is the number of criteria blocks in q.
func (q *Query) BlockCount() int {
	return len(q.Ground) + len(q.Space) + len(q.Events) + len(q.CustomLocations)
}

// BlockNames lists the block names in the order the server numbers them:
// ground1.., space1.., events1.., adhoc1...
func (q *Query) BlockNames() []string {
	names := make([]string, 0, q.BlockCount())
	add := func(prefix string, n int) {
		for i := 1; i <= n; i++ {
			names = append(names, fmt.Sprintf("%s%d", prefix, i))
		}
	}
	add("ground", len(q.Ground))
	add("space", len(q.Space))
	add("events", len(q.Events))
	add("adhoc", len(q.CustomLocations))
	return names
}

// DistanceCombos returns every unordered pair of blocks, keyed like
// "ground1-space1", mapped to the distance that applies to it. Pairs with
// no distance map to nil.
func (q *Query) DistanceCombos() map[string]*float64 {
	names := q.BlockNames()
	combos := make(map[string]*float64)
	for i := range names {
		for j := i + 1; j < len(names); j++ {
			key := names[i] + "-" + names[j]
			if q.Distance > 0 {
				d := q.Distance
				combos[key] = &d
			} else {
				combos[key] = nil
			}
		}
	}
	for key, d := range q.Distances {
		a, b, ok := splitPair(key)
		if !ok {
			continue
		}
		for _, candidate := range []string{a + "-" + b, b + "-" + a} {
			if _, exists := combos[candidate]; exists {
				v := d
				combos[candidate] = &v
			}
		}
	}
	return combos
}

func splitPair(key string) (string, string, bool) {
	a, b, ok := strings.Cut(key, "-")
	if !ok {
		return "", "", false
	}
	return strings.TrimSpace(a), strings.TrimSpace(b), true
}

// Validate checks q without contacting the server.
func (q *Query) Validate() error {
	if q.Start.IsZero() || q.End.IsZero() {
		return &search.ValidationError{Field: "start", Message: "start and end are required"}
	}
	if q.End.Before(q.Start) {
		return &search.ValidationError{Field: "end", Message: "end is before start"}
	}
	if err := checkBlockCount(q.BlockCount()); err != nil {
		return err
	}
	for _, ct := range q.ConjunctionTypes {
		if !slices.Contains(conjunctionTypes, ct) {
			return &search.ValidationError{
				Field:   "conjunction_types",
				Message: fmt.Sprintf("unknown conjunction type %q", ct),
			}
		}
	}
	if p := q.EpochSearchPrecision; p != 0 && p != 30 && p != 60 {
		return &search.ValidationError{Field: "epoch_search_precision", Message: "must be 30 or 60"}
	}
	for i, s := range q.Space {
		for _, h := range s.Hemisphere {
			if !slices.Contains(hemispheres, h) {
				return &search.ValidationError{
					Field:   fmt.Sprintf("space%d.hemisphere", i+1),
					Message: fmt.Sprintf("unknown hemisphere %q", h),
				}
			}
		}
	}
	blocks := [][]Criteria{q.Ground, q.Space, q.Events}
	for _, group := range blocks {
		for _, c := range group {
			if err := c.MetadataFilters.Validate(); err != nil {
				return &search.ValidationError{Field: "ephemeris_metadata_filters", Message: err.Error()}
			}
		}
	}
	for key := range q.Distances {
		if _, _, ok := splitPair(key); !ok {
			return &search.ValidationError{
				Field:   "max_distances",
				Message: fmt.Sprintf("malformed pair %q, expected e.g. ground1-space1", key),
			}
		}
	}
	return nil
}

func checkBlockCount(n int) error {
	if n > MaxCriteriaBlocks {
		return &search.ValidationError{
			Field:   "criteria blocks",
			Message: fmt.Sprintf("%d blocks exceed the limit of %d, please reduce the count", n, MaxCriteriaBlocks),
		}
	}
	return nil
}

type criteriaDoc struct {
	Programs        []string        `json:"programs"`
	Platforms       []string        `json:"platforms"`
	InstrumentTypes []string        `json:"instrument_types"`
	Hemisphere      []string        `json:"hemisphere,omitempty"`
	MetadataFilters *filters.Filter `json:"ephemeris_metadata_filters"`
}

type adhocDoc struct {
	Locations []search.Location `json:"locations"`
}

type queryDoc struct {
	Start                string              `json:"start"`
	End                  string              `json:"end"`
	Ground               []criteriaDoc       `json:"ground"`
	Space                []criteriaDoc       `json:"space"`
	Events               []criteriaDoc       `json:"events"`
	Adhoc                []adhocDoc          `json:"adhoc"`
	ConjunctionTypes     []string            `json:"conjunction_types"`
	MaxDistances         map[string]*float64 `json:"max_distances"`
	EpochSearchPrecision int                 `json:"epoch_search_precision"`
}

func toCriteriaDocs(in []Criteria, space, events bool) []criteriaDoc {
	out := make([]criteriaDoc, 0, len(in))
	for _, c := range in {
		doc := criteriaDoc{
			Programs:        orEmpty(c.Programs),
			Platforms:       orEmpty(c.Platforms),
			InstrumentTypes: orEmpty(c.InstrumentTypes),
			MetadataFilters: c.MetadataFilters,
		}
		if space {
			doc.Hemisphere = orEmpty(c.Hemisphere)
		}
		if events {
			doc.Programs = []string{"events"}
		}
		out = append(out, doc)
	}
	return out
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// QueryDocument implements search.QueryBuilder.
func (q *Query) QueryDocument() (json.RawMessage, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	types := q.ConjunctionTypes
	if len(types) == 0 {
		types = []string{TypeNBTrace}
	}
	precision := q.EpochSearchPrecision
	if precision == 0 {
		precision = DefaultEpochSearchPrecision
	}
	adhoc := make([]adhocDoc, 0, len(q.CustomLocations))
	for _, c := range q.CustomLocations {
		adhoc = append(adhoc, adhocDoc{Locations: append([]search.Location{}, c.Locations...)})
	}

	return json.Marshal(queryDoc{
		Start:                q.Start.UTC().Format(search.EpochLayout),
		End:                  q.End.UTC().Format(search.EpochLayout),
		Ground:               toCriteriaDocs(q.Ground, false, false),
		Space:                toCriteriaDocs(q.Space, true, false),
		Events:               toCriteriaDocs(q.Events, false, true),
		Adhoc:                adhoc,
		ConjunctionTypes:     types,
		MaxDistances:         q.DistanceCombos(),
		EpochSearchPrecision: precision,
	})
}

// ValidateDocument checks the criteria block limit of any conjunction
// query document, including raw ones read from files.
func ValidateDocument(doc json.RawMessage) error {
	var blocks struct {
		Ground []json.RawMessage `json:"ground"`
		Space  []json.RawMessage `json:"space"`
		Events []json.RawMessage `json:"events"`
		Adhoc  []json.RawMessage `json:"adhoc"`
	}
	if err := json.Unmarshal(doc, &blocks); err != nil {
		return &search.ValidationError{Message: fmt.Sprintf("malformed conjunction query: %v", err)}
	}
	return checkBlockCount(len(blocks.Ground) + len(blocks.Space) + len(blocks.Events) + len(blocks.Adhoc))
}
