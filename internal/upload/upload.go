// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package upload builds batches of ephemeris records and uploads them to a
// data source. A batch is validated record by record as it is built and
// submitted in a single request.
package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pdiddy/aurorax-go/internal/api"
	"github.com/pdiddy/aurorax-go/internal/records"
	"github.com/pdiddy/aurorax-go/pkg/types"
)

// Batch collects ephemeris records for one data source.
type Batch struct {
	identifier int
	records    []records.Ephemeris
}

// NewBatch returns an empty batch for the data source with the given
// identifier.
func NewBatch(identifier int) *Batch {
	return &Batch{identifier: identifier}
}

// Identifier returns the target data source identifier.
func (b *Batch) Identifier() int { return b.identifier }

// Len returns the number of records in the batch.
func (b *Batch) Len() int { return len(b.records) }

// Records returns a copy of the batched records.
func (b *Batch) Records() []records.Ephemeris {
	out := make([]records.Ephemeris, len(b.records))
	copy(out, b.records)
	return out
}

// Clear empties the batch.
func (b *Batch) Clear() { b.records = nil }

// Add validates every record and appends them all. If any record is
// invalid nothing is appended. Absent locations are uploaded with null
// coordinates.
func (b *Batch) Add(recs ...records.Ephemeris) error {
	checked := make([]records.Ephemeris, 0, len(recs))
	for i, r := range recs {
		if err := b.validate(r); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		r.DataSource.Identifier = b.identifier
		for _, loc := range []**records.Location{&r.LocationGeo, &r.LocationGSM, &r.NBTrace, &r.SBTrace} {
			if *loc == nil {
				*loc = &records.Location{}
			}
		}
		checked = append(checked, r)
	}
	b.records = append(b.records, checked...)
	return nil
}

func (b *Batch) validate(r records.Ephemeris) error {
	ds := r.DataSource
	if ds.Identifier != 0 && ds.Identifier != b.identifier {
		return types.Invalid("data_source.identifier", "%d does not match batch data source %d", ds.Identifier, b.identifier)
	}
	if ds.Program == "" {
		return types.Invalid("data_source.program", "must be set")
	}
	if ds.Platform == "" {
		return types.Invalid("data_source.platform", "must be set")
	}
	if ds.InstrumentType == "" {
		return types.Invalid("data_source.instrument_type", "must be set")
	}
	if r.Epoch.IsZero() {
		return types.Invalid("epoch", "must be set")
	}
	for _, l := range r.Locations() {
		loc := l.Loc
		if loc == nil {
			continue
		}
		if loc.Lat != nil && (*loc.Lat < -90 || *loc.Lat > 90) {
			return types.Invalid(l.Key+".lat", "%g is outside [-90, 90]", *loc.Lat)
		}
		if loc.Lon != nil && (*loc.Lon < -180 || *loc.Lon > 180) {
			return types.Invalid(l.Key+".lon", "%g is outside [-180, 180]", *loc.Lon)
		}
	}
	return nil
}

// Submit uploads the batch. Uploads need an API key; without one Submit
// fails before any network call. The batch is cleared only when the
// upload succeeds.
func (b *Batch) Submit(ctx context.Context, client *api.Client) error {
	if !client.HasAPIKey() {
		return fmt.Errorf("uploading ephemeris requires an API key: %w", types.ErrAuthentication)
	}
	if len(b.records) == 0 {
		return types.Invalid("records", "batch is empty")
	}
	path := fmt.Sprintf(api.PathEphemerisUpload, b.identifier)
	if err := client.Post(ctx, path, b.records, nil); err != nil {
		return fmt.Errorf("uploading %d records to data source %d: %w", len(b.records), b.identifier, err)
	}
	b.Clear()
	return nil
}

// ReadRecords loads ephemeris records from a JSON file holding a list of
// records in the API shape.
func ReadRecords(path string) ([]records.Ephemeris, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}
	var page []json.RawMessage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, &types.ParseError{Index: -1, Err: fmt.Errorf("%s: %w", path, err)}
	}
	recs, _, err := records.ParseEphemerisPage(page, records.AbortOnMalformed)
	return recs, err
}
