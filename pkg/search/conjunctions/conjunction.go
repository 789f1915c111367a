package conjunctions

import (
	"time"

	"github.com/rubiojr/aurorax/pkg/search"
)

// Event is a sub-conjunction between two of the data sources.
type Event struct {
	ConjunctionType string
	Start           time.Time
	End             time.Time
	MinDistance     float64
	MaxDistance     float64
	Raw             search.Record
}

// Conjunction is one result record.
type Conjunction struct {
	ConjunctionType string
	Start           time.Time
	End             time.Time
	DataSources     []search.DataSource
	MinDistance     float64
	MaxDistance     float64
	Events          []Event
	ClosestEpoch    time.Time
	FarthestEpoch   time.Time
}

// Fields extends the base materialization table with the conjunction
// timestamps, including those of the nested events.
var Fields = search.BaseFields.Extend(search.FieldTable{
	"start":          {Kind: search.FieldEpoch},
	"end":            {Kind: search.FieldEpoch},
	"closest_epoch":  {Kind: search.FieldEpoch},
	"farthest_epoch": {Kind: search.FieldEpoch},
	"events": {Kind: search.FieldObjects, Elem: search.FieldTable{
		"start": {Kind: search.FieldEpoch},
		"end":   {Kind: search.FieldEpoch},
	}},
})

// Decode builds a Conjunction from a materialized record.
func Decode(r search.Record) (Conjunction, error) {
	c := Conjunction{
		ConjunctionType: r.String("conjunction_type"),
		Start:           r.Time("start"),
		End:             r.Time("end"),
		MinDistance:     r.Float("min_distance"),
		MaxDistance:     r.Float("max_distance"),
		ClosestEpoch:    r.Time("closest_epoch"),
		FarthestEpoch:   r.Time("farthest_epoch"),
	}
	for _, ds := range r.Records("data_sources") {
		c.DataSources = append(c.DataSources, search.DataSourceFromRecord(ds))
	}
	for _, ev := range r.Records("events") {
		c.Events = append(c.Events, Event{
			ConjunctionType: ev.String("conjunction_type"),
			Start:           ev.Time("start"),
			End:             ev.Time("end"),
			MinDistance:     ev.Float("min_distance"),
			MaxDistance:     ev.Float("max_distance"),
			Raw:             ev,
		})
	}
	return c, nil
}

// Duration is the length of the conjunction.
func (c Conjunction) Duration() time.Duration {
	return c.End.Sub(c.Start)
}

// Domain is the conjunction search descriptor.
var Domain = search.Domain[Conjunction]{
	Name:         "conjunctions",
	DescribeName: "conjunction",
	Fields:       Fields,
	Decode:       Decode,
	Validate:     ValidateDocument,
}
