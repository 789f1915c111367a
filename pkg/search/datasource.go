package search

// DataSource is the basic description of an instrument or spacecraft
// attached to result records.
type DataSource struct {
	Identifier     int64  `json:"identifier"`
	Program        string `json:"program"`
	Platform       string `json:"platform"`
	InstrumentType string `json:"instrument_type"`
	SourceType     string `json:"source_type"`
	DisplayName    string `json:"display_name"`
}

func (d DataSource) String() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return d.Program + "/" + d.Platform + "/" + d.InstrumentType
}

// DataSourceFromRecord reads a data source object out of a result record.
func DataSourceFromRecord(r Record) DataSource {
	if r == nil {
		return DataSource{}
	}
	return DataSource{
		Identifier:     r.Int("identifier"),
		Program:        r.String("program"),
		Platform:       r.String("platform"),
		InstrumentType: r.String("instrument_type"),
		SourceType:     r.String("source_type"),
		DisplayName:    r.String("display_name"),
	}
}
