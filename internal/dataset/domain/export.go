package domain

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/gosimple/slug"
)

// ExportColumns is the fixed CSV column order of an export.
var ExportColumns = []string{
	"species_name",
	"scientific_name",
	"habitat",
	"depth_range",
	"temperature_range",
	"distribution",
	"conservation_status",
	"diet",
	"size",
	"weight",
	"characteristics",
	"threats",
	"latitude",
	"longitude",
	"observation_date",
}

// Export is a snapshot of every record of one dataset.
type Export struct {
	Dataset Dataset
	Records []Record
	Format  Format
}

func (e *Export) Filename() string {
	name := slug.Make(e.Dataset.Name)
	if name == "" {
		name = "dataset"
	}
	return fmt.Sprintf("%s-export.%s", name, e.Format)
}

func (e *Export) ContentType() string {
	if e.Format == FormatJSON {
		return "application/json"
	}
	return "text/csv; charset=utf-8"
}

func (e *Export) WriteTo(w io.Writer) error {
	if e.Format == FormatJSON {
		return e.writeJSON(w)
	}
	return e.writeCSV(w)
}

func (e *Export) writeJSON(w io.Writer) error {
	records := e.Records
	if records == nil {
		records = []Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Dataset Dataset  `json:"dataset"`
		Records []Record `json:"records"`
	}{Dataset: e.Dataset, Records: records})
}

func (e *Export) writeCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportColumns); err != nil {
		return err
	}
	for _, record := range e.Records {
		if err := cw.Write(record.CSVRow()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVRow returns the record values in ExportColumns order, with null as empty.
func (r Record) CSVRow() []string {
	return []string{
		deref(r.SpeciesName),
		deref(r.ScientificName),
		deref(r.Habitat),
		deref(r.DepthRange),
		deref(r.TemperatureRange),
		deref(r.Distribution),
		deref(r.ConservationStatus),
		deref(r.Diet),
		deref(r.Size),
		deref(r.Weight),
		deref(r.Characteristics),
		deref(r.Threats),
		formatCoordinate(r.Latitude),
		formatCoordinate(r.Longitude),
		deref(r.ObservationDate),
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func formatCoordinate(value *float64) string {
	if value == nil {
		return ""
	}
	return strconv.FormatFloat(*value, 'f', -1, 64)
}
