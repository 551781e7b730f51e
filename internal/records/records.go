// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package records holds the typed result records returned by AuroraX
// searches and the page parsers that build them from raw JSON.
//
// Records are immutable values. Fields the client does not model are kept
// in Extra and written back out by MarshalJSON, so a record survives a
// decode/encode cycle without losing data.
package records

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeLayout is the timestamp format used by the AuroraX API.
const TimeLayout = "2006-01-02T15:04:05"

// fracLayout is TimeLayout with optional fractional seconds.
const fracLayout = TimeLayout + ".999999999"

// Location is a geographic or magnetic position. Either coordinate may be
// null in API responses, for example GSM positions of ground stations.
type Location struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// Valid reports whether the location is present with both coordinates.
func (l *Location) Valid() bool { return l != nil && l.Lat != nil && l.Lon != nil }

// DataSource identifies the instrument that produced a record.
type DataSource struct {
	Identifier     int    `json:"identifier"`
	Program        string `json:"program"`
	Platform       string `json:"platform"`
	InstrumentType string `json:"instrument_type"`
	SourceType     string `json:"source_type"`
	DisplayName    string `json:"display_name"`
	Owner          string `json:"owner"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Ephemeris is one position of a data source at one epoch. A nil location
// was absent from the record. Numbers in Metadata decode as json.Number.
type Ephemeris struct {
	DataSource  DataSource
	Epoch       time.Time
	LocationGeo *Location
	LocationGSM *Location
	NBTrace     *Location
	SBTrace     *Location
	Metadata    map[string]any

	Extra map[string]json.RawMessage
}

// Conjunction is a time span during which two or more data sources were
// within the requested distance of each other.
type Conjunction struct {
	ConjunctionType string
	Start           time.Time
	End             time.Time
	MinDistance     float64
	MaxDistance     float64
	ClosestEpoch    time.Time
	FarthestEpoch   time.Time
	DataSources     []DataSource
	Events          []map[string]any

	Extra map[string]json.RawMessage
}

// DataProduct is a derived product, such as a keogram or movie, covering
// a time span for one data source.
type DataProduct struct {
	DataSource      DataSource
	Start           time.Time
	End             time.Time
	URL             string
	DataProductType string
	Metadata        map[string]any

	Extra map[string]json.RawMessage
}

func (d DataSource) MarshalJSON() ([]byte, error) {
	type plain DataSource
	base, err := json.Marshal(plain(d))
	if err != nil {
		return nil, err
	}
	return mergeExtra(base, d.Extra)
}

func (e Ephemeris) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"data_source": e.DataSource,
		"epoch":       formatTime(e.Epoch),
		"metadata":    nonNilMap(e.Metadata),
	}
	for _, l := range e.Locations() {
		if l.Loc != nil {
			m[l.Key] = l.Loc
		}
	}
	return marshalWithExtra(m, e.Extra)
}

// NamedLocation pairs a location with its record key.
type NamedLocation struct {
	Key string
	Loc *Location
}

// Locations returns the record's locations in record order.
func (e Ephemeris) Locations() []NamedLocation {
	return []NamedLocation{
		{"location_geo", e.LocationGeo},
		{"location_gsm", e.LocationGSM},
		{"nbtrace", e.NBTrace},
		{"sbtrace", e.SBTrace},
	}
}

func (c Conjunction) MarshalJSON() ([]byte, error) {
	sources := c.DataSources
	if sources == nil {
		sources = []DataSource{}
	}
	events := c.Events
	if events == nil {
		events = []map[string]any{}
	}
	m := map[string]any{
		"conjunction_type": c.ConjunctionType,
		"start":            formatTime(c.Start),
		"end":              formatTime(c.End),
		"min_distance":     c.MinDistance,
		"max_distance":     c.MaxDistance,
		"closest_epoch":    formatTime(c.ClosestEpoch),
		"farthest_epoch":   formatTime(c.FarthestEpoch),
		"data_sources":     sources,
		"events":           events,
	}
	return marshalWithExtra(m, c.Extra)
}

func (p DataProduct) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"data_source":       p.DataSource,
		"start":             formatTime(p.Start),
		"end":               formatTime(p.End),
		"url":               p.URL,
		"data_product_type": p.DataProductType,
		"metadata":          nonNilMap(p.Metadata),
	}
	return marshalWithExtra(m, p.Extra)
}

func marshalWithExtra(m map[string]any, extra map[string]json.RawMessage) ([]byte, error) {
	for k, v := range extra {
		if _, known := m[k]; !known {
			m[k] = v
		}
	}
	return json.Marshal(m)
}

// mergeExtra adds extra keys to an encoded JSON object.
func mergeExtra(base []byte, extra map[string]json.RawMessage) ([]byte, error) {
	if len(extra) == 0 {
		return base, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(base, &m); err != nil {
		return nil, fmt.Errorf("merging extra fields: %w", err)
	}
	for k, v := range extra {
		if _, known := m[k]; !known {
			m[k] = v
		}
	}
	return json.Marshal(m)
}

// formatTime renders t in the API layout, keeping any fractional seconds;
// the zero time becomes null.
func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(fracLayout)
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
