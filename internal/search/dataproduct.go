// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"encoding/json"
	"time"

	"github.com/pdiddy/aurorax-go/pkg/types"
)

// DataProductCriteria selects data products (keograms, movies, summary
// plots) overlapping [Start, End].
type DataProductCriteria struct {
	Start            time.Time
	End              time.Time
	Programs         []string
	Platforms        []string
	InstrumentTypes  []string
	DataProductTypes []string
	MetadataFilter   MetadataFilter
}

func (c DataProductCriteria) Kind() Kind { return KindDataProducts }

// Validate reports the first problem with c as a *types.ValidationError.
func (c DataProductCriteria) Validate() error {
	if err := validateWindow(c.Start, c.End); err != nil {
		return err
	}
	if len(c.Programs) == 0 && len(c.Platforms) == 0 && len(c.InstrumentTypes) == 0 && c.MetadataFilter.Empty() {
		return types.Invalid("data_sources", "at least one of programs, platforms, instrument types or metadata filters is required")
	}
	return c.MetadataFilter.Validate("data_product_metadata_filters")
}

type dataProductSources struct {
	Programs        []string       `json:"programs"`
	Platforms       []string       `json:"platforms"`
	InstrumentTypes []string       `json:"instrument_types"`
	MetadataFilters MetadataFilter `json:"data_product_metadata_filters"`
}

type dataProductQuery struct {
	DataSources dataProductSources `json:"data_sources"`
	Start       string             `json:"start"`
	End         string             `json:"end"`
	TypeFilters []string           `json:"data_product_type_filters"`
}

// Query serializes c to the API query document.
func (c DataProductCriteria) Query() (json.RawMessage, error) {
	return encode(dataProductQuery{
		DataSources: dataProductSources{
			Programs:        list(c.Programs),
			Platforms:       list(c.Platforms),
			InstrumentTypes: list(c.InstrumentTypes),
			MetadataFilters: c.MetadataFilter,
		},
		Start:       formatTime(c.Start),
		End:         formatTime(c.End),
		TypeFilters: list(c.DataProductTypes),
	})
}

// ParseDataProductQuery rebuilds criteria from a query document.
func ParseDataProductQuery(data json.RawMessage) (DataProductCriteria, error) {
	var q dataProductQuery
	if err := decodeQuery(data, &q); err != nil {
		return DataProductCriteria{}, err
	}
	start, end, err := parseWindow(q.Start, q.End)
	if err != nil {
		return DataProductCriteria{}, err
	}
	return DataProductCriteria{
		Start:            start,
		End:              end,
		Programs:         nilIfEmpty(q.DataSources.Programs),
		Platforms:        nilIfEmpty(q.DataSources.Platforms),
		InstrumentTypes:  nilIfEmpty(q.DataSources.InstrumentTypes),
		DataProductTypes: nilIfEmpty(q.TypeFilters),
		MetadataFilter:   q.DataSources.MetadataFilters,
	}, nil
}
