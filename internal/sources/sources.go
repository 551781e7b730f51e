// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sources looks up AuroraX data sources: the programs, platforms
// and instruments that searches filter on and uploads target.
package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"slices"
	"sort"
	"strings"

	"github.com/pdiddy/aurorax-go/internal/api"
	"github.com/pdiddy/aurorax-go/internal/records"
	"github.com/pdiddy/aurorax-go/pkg/types"
)

// SourceTypes lists the source types the API accepts.
var SourceTypes = []string{"ground", "leo", "heo", "lunar", "event_list", "not_applicable"}

// OrderColumns lists the columns Order accepts.
var OrderColumns = []string{"identifier", "program", "platform", "instrument_type", "source_type", "display_name", "owner"}

// Filter narrows List to sources whose fields equal the given values.
// Empty fields match everything.
type Filter struct {
	Program        string
	Platform       string
	InstrumentType string
	SourceType     string
	Owner          string
}

// Validate checks the source type.
func (f Filter) Validate() error {
	if f.SourceType != "" && !slices.Contains(SourceTypes, f.SourceType) {
		return types.Invalid("source_type", "unknown source type %q (want one of %s)", f.SourceType, strings.Join(SourceTypes, ", "))
	}
	return nil
}

func (f Filter) params() url.Values {
	v := url.Values{}
	for key, val := range map[string]string{
		"program":         f.Program,
		"platform":        f.Platform,
		"instrument_type": f.InstrumentType,
		"source_type":     f.SourceType,
		"owner":           f.Owner,
	} {
		if val != "" {
			v.Set(key, val)
		}
	}
	return v
}

// SearchFilter matches sources whose fields are in any of the given
// lists.
type SearchFilter struct {
	Programs        []string `json:"programs"`
	Platforms       []string `json:"platforms"`
	InstrumentTypes []string `json:"instrument_types"`
}

// List returns the data sources matching f.
func List(ctx context.Context, client *api.Client, f Filter) ([]records.DataSource, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	var raw []json.RawMessage
	if err := client.Get(ctx, api.PathDataSources, f.params(), &raw); err != nil {
		return nil, fmt.Errorf("listing data sources: %w", err)
	}
	return decodeAll(raw)
}

// Search returns the data sources matching any of the listed values.
func Search(ctx context.Context, client *api.Client, f SearchFilter) ([]records.DataSource, error) {
	body := SearchFilter{
		Programs:        nonNil(f.Programs),
		Platforms:       nonNil(f.Platforms),
		InstrumentTypes: nonNil(f.InstrumentTypes),
	}
	var raw []json.RawMessage
	if err := client.Post(ctx, api.PathDataSourcesSearch, body, &raw); err != nil {
		return nil, fmt.Errorf("searching data sources: %w", err)
	}
	return decodeAll(raw)
}

// Get returns the data source with the given identifier.
func Get(ctx context.Context, client *api.Client, identifier int) (records.DataSource, error) {
	var raw json.RawMessage
	if err := client.Get(ctx, fmt.Sprintf(api.PathDataSource, identifier), nil, &raw); err != nil {
		return records.DataSource{}, fmt.Errorf("getting data source %d: %w", identifier, err)
	}
	return records.ParseDataSource(raw)
}

// Find returns the single source with the given program, platform and
// instrument type.
func Find(ctx context.Context, client *api.Client, program, platform, instrumentType string) (records.DataSource, error) {
	list, err := List(ctx, client, Filter{Program: program, Platform: platform, InstrumentType: instrumentType})
	if err != nil {
		return records.DataSource{}, err
	}
	switch len(list) {
	case 0:
		return records.DataSource{}, &types.RemoteError{
			StatusCode: 404,
			Method:     "GET",
			URL:        client.URL(api.PathDataSources),
			Message:    fmt.Sprintf("no data source %s/%s/%s", program, platform, instrumentType),
		}
	case 1:
		return list[0], nil
	}
	return records.DataSource{}, types.Invalid("data_source", "%d sources match %s/%s/%s", len(list), program, platform, instrumentType)
}

func decodeAll(raw []json.RawMessage) ([]records.DataSource, error) {
	out := make([]records.DataSource, 0, len(raw))
	for i, r := range raw {
		ds, err := records.ParseDataSource(r)
		if err != nil {
			var pe *types.ParseError
			if errors.As(err, &pe) {
				pe.Index = i
			}
			return nil, err
		}
		out = append(out, ds)
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Order sorts list in place by column. Ties keep their original order.
func Order(list []records.DataSource, column string, reversed bool) error {
	if column == "" {
		column = "identifier"
	}
	if !slices.Contains(OrderColumns, column) {
		return types.Invalid("order", "unknown column %q (want one of %s)", column, strings.Join(OrderColumns, ", "))
	}
	less := func(a, b records.DataSource) bool {
		switch column {
		case "program":
			return strings.ToLower(a.Program) < strings.ToLower(b.Program)
		case "platform":
			return strings.ToLower(a.Platform) < strings.ToLower(b.Platform)
		case "instrument_type":
			return strings.ToLower(a.InstrumentType) < strings.ToLower(b.InstrumentType)
		case "source_type":
			return a.SourceType < b.SourceType
		case "display_name":
			return strings.ToLower(a.DisplayName) < strings.ToLower(b.DisplayName)
		case "owner":
			return a.Owner < b.Owner
		default:
			return a.Identifier < b.Identifier
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		if reversed {
			return less(list[j], list[i])
		}
		return less(list[i], list[j])
	})
	return nil
}

// FormatTable writes data sources as a table to w. The owner column is
// shown only when withOwner is set.
func FormatTable(list []records.DataSource, withOwner bool, w io.Writer) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No data sources found.")
		return
	}
	header := fmt.Sprintf("%-10s  %-16s  %-20s  %-24s  %-12s  %-30s", "Identifier", "Program", "Platform", "Instrument type", "Source type", "Display name")
	if withOwner {
		header += "  Owner"
	}
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", len(header)))
	for _, ds := range list {
		line := fmt.Sprintf("%-10d  %-16s  %-20s  %-24s  %-12s  %-30s",
			ds.Identifier, ds.Program, ds.Platform, ds.InstrumentType, ds.SourceType, ds.DisplayName)
		if withOwner {
			line += "  " + ds.Owner
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "\n%d data sources\n", len(list))
}
