// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/pdiddy/aurorax-go/internal/api"
	"github.com/pdiddy/aurorax-go/internal/records"
	"github.com/pdiddy/aurorax-go/pkg/types"
)

// DateLayout is the day format of availability queries and results.
const DateLayout = "2006-01-02"

// SchemaField describes one metadata key a data source reports.
type SchemaField struct {
	FieldName             string `json:"field_name"`
	Description           string `json:"description"`
	DataType              string `json:"data_type"`
	AllowedValues         []any  `json:"allowed_values"`
	AdditionalDescription string `json:"additional_description"`
}

type fullRecord struct {
	EphemerisSchema   []SchemaField `json:"ephemeris_metadata_schema"`
	DataProductSchema []SchemaField `json:"data_product_metadata_schema"`
}

func getFullRecord(ctx context.Context, client *api.Client, identifier int) (fullRecord, error) {
	var rec fullRecord
	params := url.Values{"format": {"full_record"}}
	if err := client.Get(ctx, fmt.Sprintf(api.PathDataSource, identifier), params, &rec); err != nil {
		return fullRecord{}, fmt.Errorf("getting metadata schema of data source %d: %w", identifier, err)
	}
	return rec, nil
}

// EphemerisSchema returns the ephemeris metadata schema of a data source.
// Metadata filters in ephemeris and conjunction searches use these keys.
func EphemerisSchema(ctx context.Context, client *api.Client, identifier int) ([]SchemaField, error) {
	rec, err := getFullRecord(ctx, client, identifier)
	return rec.EphemerisSchema, err
}

// DataProductSchema returns the data product metadata schema of a data
// source.
func DataProductSchema(ctx context.Context, client *api.Client, identifier int) ([]SchemaField, error) {
	rec, err := getFullRecord(ctx, client, identifier)
	return rec.DataProductSchema, err
}

// FormatSchemaTable writes schema fields as a table to w.
func FormatSchemaTable(fields []SchemaField, w io.Writer) {
	if len(fields) == 0 {
		fmt.Fprintln(w, "No metadata schema found.")
		return
	}
	fmt.Fprintf(w, "%-28s  %-10s  %s\n", "Field", "Type", "Description")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, f := range fields {
		fmt.Fprintf(w, "%-28s  %-10s  %s\n", f.FieldName, f.DataType, f.Description)
		if len(f.AllowedValues) > 0 {
			vals := make([]string, len(f.AllowedValues))
			for i, v := range f.AllowedValues {
				vals[i] = fmt.Sprint(v)
			}
			fmt.Fprintf(w, "%-28s  %-10s  allowed: %s\n", "", "", strings.Join(vals, ", "))
		}
	}
	fmt.Fprintf(w, "\n%d fields\n", len(fields))
}

// AvailabilityFilter selects the sources and the inclusive day range of
// an availability lookup.
type AvailabilityFilter struct {
	Filter
	Start time.Time
	End   time.Time
}

// Validate checks the day range and the source filter.
func (f AvailabilityFilter) Validate() error {
	if f.Start.IsZero() || f.End.IsZero() {
		return types.Invalid("start", "start and end dates are required")
	}
	if f.End.Before(f.Start) {
		return types.Invalid("start", "start %s is after end %s", f.Start.Format(DateLayout), f.End.Format(DateLayout))
	}
	return f.Filter.Validate()
}

// Availability is the number of records a data source holds per day.
type Availability struct {
	DataSource records.DataSource
	Counts     map[string]int
}

// Days returns the days with records, in order.
func (a Availability) Days() []string {
	days := make([]string, 0, len(a.Counts))
	for d, n := range a.Counts {
		if n > 0 {
			days = append(days, d)
		}
	}
	slices.Sort(days)
	return days
}

// Total returns the number of records over all days.
func (a Availability) Total() int {
	var n int
	for _, c := range a.Counts {
		n += c
	}
	return n
}

func (a Availability) MarshalJSON() ([]byte, error) {
	counts := a.Counts
	if counts == nil {
		counts = map[string]int{}
	}
	return json.Marshal(map[string]any{"data_source": a.DataSource, "counts": counts})
}

// EphemerisAvailability returns how many ephemeris records each matching
// source holds per day.
func EphemerisAvailability(ctx context.Context, client *api.Client, f AvailabilityFilter) ([]Availability, error) {
	return availability(ctx, client, "ephemeris", f)
}

// DataProductAvailability returns how many data products each matching
// source holds per day.
func DataProductAvailability(ctx context.Context, client *api.Client, f AvailabilityFilter) ([]Availability, error) {
	return availability(ctx, client, "data_products", f)
}

func availability(ctx context.Context, client *api.Client, kind string, f AvailabilityFilter) ([]Availability, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	params := f.params()
	params.Set("start", f.Start.UTC().Format(DateLayout))
	params.Set("end", f.End.UTC().Format(DateLayout))

	var raw []map[string]json.RawMessage
	if err := client.Get(ctx, fmt.Sprintf(api.PathAvailability, kind), params, &raw); err != nil {
		return nil, fmt.Errorf("getting %s availability: %w", kind, err)
	}

	out := make([]Availability, 0, len(raw))
	for i, doc := range raw {
		a := Availability{Counts: map[string]int{}}
		ds, err := records.ParseDataSource(doc["data_source"])
		if err != nil {
			var pe *types.ParseError
			if errors.As(err, &pe) {
				pe.Index, pe.Field = i, "data_source"
			}
			return nil, err
		}
		a.DataSource = ds
		if counts, ok := doc["available_"+kind]; ok && !isNull(counts) {
			if err := json.Unmarshal(counts, &a.Counts); err != nil {
				return nil, &types.ParseError{Index: i, Field: "available_" + kind, Err: err}
			}
		}
		out = append(out, a)
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// FormatAvailabilityTable writes one summary row per source to w.
func FormatAvailabilityTable(list []Availability, w io.Writer) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No data sources found.")
		return
	}
	fmt.Fprintf(w, "%-10s  %-30s  %-21s  %-6s  %s\n", "Identifier", "Data source", "Days", "Count", "Records")
	fmt.Fprintln(w, strings.Repeat("-", 88))
	for _, a := range list {
		span := "-"
		if days := a.Days(); len(days) > 0 {
			span = days[0] + ".." + days[len(days)-1]
		}
		fmt.Fprintf(w, "%-10d  %-30s  %-21s  %-6d  %d\n",
			a.DataSource.Identifier, sourceLabel(a.DataSource), span, len(a.Days()), a.Total())
	}
	fmt.Fprintf(w, "\n%d data sources\n", len(list))
}

func sourceLabel(ds records.DataSource) string {
	if ds.DisplayName != "" {
		return ds.DisplayName
	}
	return strings.TrimSpace(ds.Platform + " " + ds.InstrumentType)
}
