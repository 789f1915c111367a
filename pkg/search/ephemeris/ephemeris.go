// Package ephemeris searches spacecraft and ground instrument position
// records.
package ephemeris

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rubiojr/aurorax/pkg/search"
	"github.com/rubiojr/aurorax/pkg/search/filters"
)

// Query is an ephemeris search. At least one of the data source criteria
// must be set besides the time window.
type Query struct {
	Start           time.Time
	End             time.Time
	Programs        []string
	Platforms       []string
	InstrumentTypes []string
	MetadataFilters *filters.Filter
}

func (q *Query) Validate() error {
	if q.Start.IsZero() || q.End.IsZero() {
		return &search.ValidationError{Field: "start", Message: "start and end are required"}
	}
	if q.End.Before(q.Start) {
		return &search.ValidationError{Field: "end", Message: "end is before start"}
	}
	if len(q.Programs) == 0 && len(q.Platforms) == 0 && len(q.InstrumentTypes) == 0 && q.MetadataFilters.Empty() {
		return &search.ValidationError{
			Field:   "data_sources",
			Message: "at least one filter criteria besides start and end must be specified",
		}
	}
	if err := q.MetadataFilters.Validate(); err != nil {
		return &search.ValidationError{Field: "ephemeris_metadata_filters", Message: err.Error()}
	}
	return nil
}

type dataSourcesDoc struct {
	Programs        []string        `json:"programs"`
	Platforms       []string        `json:"platforms"`
	InstrumentTypes []string        `json:"instrument_types"`
	MetadataFilters *filters.Filter `json:"ephemeris_metadata_filters"`
}

// QueryDocument implements search.QueryBuilder.
func (q *Query) QueryDocument() (json.RawMessage, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	mf := q.MetadataFilters
	if mf == nil {
		mf = &filters.Filter{}
	}
	return json.Marshal(struct {
		DataSources dataSourcesDoc `json:"data_sources"`
		Start       string         `json:"start"`
		End         string         `json:"end"`
	}{
		DataSources: dataSourcesDoc{
			Programs:        nonNil(q.Programs),
			Platforms:       nonNil(q.Platforms),
			InstrumentTypes: nonNil(q.InstrumentTypes),
			MetadataFilters: mf,
		},
		Start: q.Start.UTC().Format(search.EpochLayout),
		End:   q.End.UTC().Format(search.EpochLayout),
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Ephemeris is one position record. Locations are nil when the server has
// no value for them.
type Ephemeris struct {
	DataSource  search.DataSource
	Epoch       time.Time
	LocationGeo *search.Location
	LocationGSM *search.Location
	NBTrace     *search.Location
	SBTrace     *search.Location
	Metadata    map[string]any
}

func (e Ephemeris) String() string {
	return fmt.Sprintf("Ephemeris(%s @ %s, geo=%v)", e.DataSource, e.Epoch.Format(search.EpochLayout), e.LocationGeo)
}

// Decode builds an Ephemeris from a materialized record.
func Decode(r search.Record) (Ephemeris, error) {
	return Ephemeris{
		DataSource:  search.DataSourceFromRecord(r.Record("data_source")),
		Epoch:       r.Time("epoch"),
		LocationGeo: r.Location("location_geo"),
		LocationGSM: r.Location("location_gsm"),
		NBTrace:     r.Location("nbtrace"),
		SBTrace:     r.Location("sbtrace"),
		Metadata:    r.Map("metadata"),
	}, nil
}

// Domain is the ephemeris search descriptor.
var Domain = search.Domain[Ephemeris]{
	Name:         "ephemeris",
	DescribeName: "ephemeris",
	Fields:       search.BaseFields,
	Decode:       Decode,
}
