// Package dataproducts searches derived products such as keograms and
// movies.
package dataproducts

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/rubiojr/aurorax/pkg/search"
	"github.com/rubiojr/aurorax/pkg/search/filters"
)

// Data product types.
const (
	TypeKeogram          = "keogram"
	TypeMontage          = "montage"
	TypeMovie            = "movie"
	TypeSummaryPlot      = "summary_plot"
	TypeDataAvailability = "data_availability"
)

var types = []string{TypeKeogram, TypeMontage, TypeMovie, TypeSummaryPlot, TypeDataAvailability}

// Query is a data product search.
type Query struct {
	Start           time.Time
	End             time.Time
	Programs        []string
	Platforms       []string
	InstrumentTypes []string

	// DataProductTypes restricts results to these types; empty means all.
	DataProductTypes []string

	MetadataFilters *filters.Filter
}

func (q *Query) Validate() error {
	if q.Start.IsZero() || q.End.IsZero() {
		return &search.ValidationError{Field: "start", Message: "start and end are required"}
	}
	if q.End.Before(q.Start) {
		return &search.ValidationError{Field: "end", Message: "end is before start"}
	}
	for _, t := range q.DataProductTypes {
		if !slices.Contains(types, t) {
			return &search.ValidationError{
				Field:   "data_product_type_filters",
				Message: fmt.Sprintf("unknown data product type %q", t),
			}
		}
	}
	if err := q.MetadataFilters.Validate(); err != nil {
		return &search.ValidationError{Field: "data_product_metadata_filters", Message: err.Error()}
	}
	return nil
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
	type dataSources struct {
		Programs        []string        `json:"programs"`
		Platforms       []string        `json:"platforms"`
		InstrumentTypes []string        `json:"instrument_types"`
		MetadataFilters *filters.Filter `json:"data_product_metadata_filters"`
	}
	return json.Marshal(struct {
		DataSources dataSources `json:"data_sources"`
		Start       string      `json:"start"`
		End         string      `json:"end"`
		TypeFilters []string    `json:"data_product_type_filters"`
	}{
		DataSources: dataSources{
			Programs:        nonNil(q.Programs),
			Platforms:       nonNil(q.Platforms),
			InstrumentTypes: nonNil(q.InstrumentTypes),
			MetadataFilters: mf,
		},
		Start:       q.Start.UTC().Format(search.EpochLayout),
		End:         q.End.UTC().Format(search.EpochLayout),
		TypeFilters: nonNil(q.DataProductTypes),
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// DataProduct is one result record.
type DataProduct struct {
	DataSource      search.DataSource
	DataProductType string
	Start           time.Time
	End             time.Time
	URL             string
	Metadata        map[string]any
}

func (d DataProduct) String() string {
	return fmt.Sprintf("DataProduct(%s %s, %s)", d.DataSource, d.DataProductType, d.URL)
}

// Fields extends the base table with the product time window.
var Fields = search.BaseFields.Extend(search.FieldTable{
	"start": {Kind: search.FieldEpoch},
	"end":   {Kind: search.FieldEpoch},
})

// Decode builds a DataProduct from a materialized record.
func Decode(r search.Record) (DataProduct, error) {
	return DataProduct{
		DataSource:      search.DataSourceFromRecord(r.Record("data_source")),
		DataProductType: r.String("data_product_type"),
		Start:           r.Time("start"),
		End:             r.Time("end"),
		URL:             r.String("url"),
		Metadata:        r.Map("metadata"),
	}, nil
}

// Domain is the data product search descriptor.
var Domain = search.Domain[DataProduct]{
	Name:         "data_products",
	DescribeName: "data_products",
	Fields:       Fields,
	Decode:       Decode,
}
