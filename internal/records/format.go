// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package records

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// FormatJSON writes records as indented JSON to w.
func FormatJSON[T any](recs []T, w io.Writer) error {
	if recs == nil {
		recs = []T{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}

// FormatEphemerisTable writes ephemeris records as a table to w.
func FormatEphemerisTable(recs []Ephemeris, w io.Writer) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}
	fmt.Fprintf(w, "%-19s  %-24s  %-16s  %-18s  %-18s\n", "Epoch", "Data source", "Program", "Geographic", "North B-trace")
	fmt.Fprintln(w, strings.Repeat("-", 103))
	for _, e := range recs {
		fmt.Fprintf(w, "%-19s  %-24s  %-16s  %-18s  %-18s\n",
			e.Epoch.UTC().Format(TimeLayout),
			truncate(sourceName(e.DataSource), 24),
			truncate(e.DataSource.Program, 16),
			formatLocation(e.LocationGeo),
			formatLocation(e.NBTrace))
	}
	fmt.Fprintf(w, "\n%d records\n", len(recs))
}

// FormatConjunctionTable writes conjunction records as a table to w.
func FormatConjunctionTable(recs []Conjunction, w io.Writer) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}
	fmt.Fprintf(w, "%-19s  %-19s  %-10s  %-9s  %-9s  %s\n", "Start", "End", "Type", "Min (km)", "Max (km)", "Data sources")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, c := range recs {
		names := make([]string, len(c.DataSources))
		for i, ds := range c.DataSources {
			names[i] = sourceName(ds)
		}
		fmt.Fprintf(w, "%-19s  %-19s  %-10s  %-9.2f  %-9.2f  %s\n",
			c.Start.UTC().Format(TimeLayout),
			c.End.UTC().Format(TimeLayout),
			c.ConjunctionType,
			c.MinDistance, c.MaxDistance,
			truncate(strings.Join(names, ", "), 40))
	}
	fmt.Fprintf(w, "\n%d conjunctions\n", len(recs))
}

// FormatDataProductTable writes data product records as a table to w.
func FormatDataProductTable(recs []DataProduct, w io.Writer) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}
	fmt.Fprintf(w, "%-19s  %-19s  %-24s  %-12s  %s\n", "Start", "End", "Data source", "Type", "URL")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, p := range recs {
		fmt.Fprintf(w, "%-19s  %-19s  %-24s  %-12s  %s\n",
			p.Start.UTC().Format(TimeLayout),
			p.End.UTC().Format(TimeLayout),
			truncate(sourceName(p.DataSource), 24),
			truncate(p.DataProductType, 12),
			p.URL)
	}
	fmt.Fprintf(w, "\n%d data products\n", len(recs))
}

func sourceName(ds DataSource) string {
	if ds.DisplayName != "" {
		return ds.DisplayName
	}
	return strings.TrimSpace(ds.Platform + " " + ds.InstrumentType)
}

func formatLocation(l *Location) string {
	if !l.Valid() {
		return "-"
	}
	return fmt.Sprintf("%.2f, %.2f", *l.Lat, *l.Lon)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
