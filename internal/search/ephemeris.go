// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"encoding/json"
	"time"

	"github.com/pdiddy/aurorax-go/pkg/types"
)

// EphemerisCriteria selects ephemeris records for data sources matching
// the filters within [Start, End].
type EphemerisCriteria struct {
	Start           time.Time
	End             time.Time
	Programs        []string
	Platforms       []string
	InstrumentTypes []string
	MetadataFilter  MetadataFilter
}

func (c EphemerisCriteria) Kind() Kind { return KindEphemeris }

// Validate reports the first problem with c as a *types.ValidationError.
func (c EphemerisCriteria) Validate() error {
	if err := validateWindow(c.Start, c.End); err != nil {
		return err
	}
	if len(c.Programs) == 0 && len(c.Platforms) == 0 && len(c.InstrumentTypes) == 0 && c.MetadataFilter.Empty() {
		return types.Invalid("data_sources", "at least one of programs, platforms, instrument types or metadata filters is required")
	}
	return c.MetadataFilter.Validate("ephemeris_metadata_filters")
}

type ephemerisSources struct {
	Programs        []string       `json:"programs"`
	Platforms       []string       `json:"platforms"`
	InstrumentTypes []string       `json:"instrument_types"`
	MetadataFilters MetadataFilter `json:"ephemeris_metadata_filters"`
}

type ephemerisQuery struct {
	DataSources ephemerisSources `json:"data_sources"`
	Start       string           `json:"start"`
	End         string           `json:"end"`
}

// Query serializes c to the API query document.
func (c EphemerisCriteria) Query() (json.RawMessage, error) {
	return encode(ephemerisQuery{
		DataSources: ephemerisSources{
			Programs:        list(c.Programs),
			Platforms:       list(c.Platforms),
			InstrumentTypes: list(c.InstrumentTypes),
			MetadataFilters: c.MetadataFilter,
		},
		Start: formatTime(c.Start),
		End:   formatTime(c.End),
	})
}

// ParseEphemerisQuery rebuilds criteria from a query document, such as
// one read back from a request status.
func ParseEphemerisQuery(data json.RawMessage) (EphemerisCriteria, error) {
	var q ephemerisQuery
	if err := decodeQuery(data, &q); err != nil {
		return EphemerisCriteria{}, err
	}
	start, end, err := parseWindow(q.Start, q.End)
	if err != nil {
		return EphemerisCriteria{}, err
	}
	return EphemerisCriteria{
		Start:           start,
		End:             end,
		Programs:        nilIfEmpty(q.DataSources.Programs),
		Platforms:       nilIfEmpty(q.DataSources.Platforms),
		InstrumentTypes: nilIfEmpty(q.DataSources.InstrumentTypes),
		MetadataFilter:  q.DataSources.MetadataFilters,
	}, nil
}
