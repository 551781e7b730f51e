// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package records

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/aurorax-go/pkg/types"
)

// Policy selects how page parsers treat malformed records.
type Policy int

const (
	// SkipMalformed drops bad records and reports them in Report.Skipped.
	SkipMalformed Policy = iota
	// AbortOnMalformed stops at the first bad record.
	AbortOnMalformed
)

// Report describes the records a parser dropped.
type Report struct {
	Skipped []*types.ParseError
}

// Total returns the number of skipped records.
func (r Report) Total() int { return len(r.Skipped) }

var errMissing = errors.New("required field missing")

// ParseEphemerisPage decodes a page of ephemeris records.
func ParseEphemerisPage(page []json.RawMessage, policy Policy) ([]Ephemeris, Report, error) {
	return parsePage(page, policy, parseEphemeris)
}

// ParseConjunctionPage decodes a page of conjunction records.
func ParseConjunctionPage(page []json.RawMessage, policy Policy) ([]Conjunction, Report, error) {
	return parsePage(page, policy, parseConjunction)
}

// ParseDataProductPage decodes a page of data product records.
func ParseDataProductPage(page []json.RawMessage, policy Policy) ([]DataProduct, Report, error) {
	return parsePage(page, policy, parseDataProduct)
}

func parsePage[T any](page []json.RawMessage, policy Policy, parse func(json.RawMessage) (T, error)) ([]T, Report, error) {
	out := make([]T, 0, len(page))
	var rep Report
	for i, raw := range page {
		rec, err := parse(raw)
		if err != nil {
			pe := &types.ParseError{Index: i, Err: err}
			var fe *fieldError
			if errors.As(err, &fe) {
				pe.Field = fe.field
				pe.Err = fe.err
			}
			if policy == AbortOnMalformed {
				return nil, rep, pe
			}
			rep.Skipped = append(rep.Skipped, pe)
			continue
		}
		out = append(out, rec)
	}
	return out, rep, nil
}

type fieldError struct {
	field string
	err   error
}

func (e *fieldError) Error() string { return fmt.Sprintf("%s: %v", e.field, e.err) }
func (e *fieldError) Unwrap() error { return e.err }

// object is a decoded JSON object whose fields are consumed as they are
// read; whatever is left becomes the record's Extra.
type object map[string]json.RawMessage

func decodeObject(raw json.RawMessage) (object, error) {
	var o object
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, err
	}
	if o == nil {
		return nil, errors.New("record is null")
	}
	return o, nil
}

// take decodes key into dst and removes it. A missing or null key is an
// error only when required. Numbers in untyped values stay json.Number.
func (o object) take(key string, required bool, dst any) error {
	raw, ok := o[key]
	delete(o, key)
	if !ok || isNull(raw) {
		if required {
			return &fieldError{field: key, err: errMissing}
		}
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return &fieldError{field: key, err: err}
	}
	return nil
}

func (o object) takeTime(key string, required bool) (time.Time, error) {
	var s string
	if err := o.take(key, required, &s); err != nil {
		return time.Time{}, err
	}
	if s == "" {
		if required {
			return time.Time{}, &fieldError{field: key, err: errMissing}
		}
		return time.Time{}, nil
	}
	t, err := ParseTime(s)
	if err != nil {
		return time.Time{}, &fieldError{field: key, err: err}
	}
	return t, nil
}

func (o object) takeSource(key string) (DataSource, error) {
	raw, ok := o[key]
	delete(o, key)
	if !ok || isNull(raw) {
		return DataSource{}, &fieldError{field: key, err: errMissing}
	}
	ds, err := parseDataSource(raw)
	if err != nil {
		return DataSource{}, &fieldError{field: key, err: err}
	}
	return ds, nil
}

func (o object) extra() map[string]json.RawMessage {
	if len(o) == 0 {
		return nil
	}
	return map[string]json.RawMessage(o)
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// ParseTime accepts the API timestamp layout and RFC 3339. Timestamps
// without a zone are UTC.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	}
	return t.UTC(), nil
}

// ParseDataSource decodes one data source document.
func ParseDataSource(raw json.RawMessage) (DataSource, error) {
	ds, err := parseDataSource(raw)
	if err != nil {
		return DataSource{}, &types.ParseError{Index: -1, Err: err}
	}
	return ds, nil
}

func parseDataSource(raw json.RawMessage) (DataSource, error) {
	o, err := decodeObject(raw)
	if err != nil {
		return DataSource{}, err
	}
	var ds DataSource
	for _, f := range []struct {
		key string
		dst any
	}{
		{"identifier", &ds.Identifier},
		{"program", &ds.Program},
		{"platform", &ds.Platform},
		{"instrument_type", &ds.InstrumentType},
		{"source_type", &ds.SourceType},
		{"display_name", &ds.DisplayName},
		{"owner", &ds.Owner},
	} {
		if err := o.take(f.key, false, f.dst); err != nil {
			return DataSource{}, err
		}
	}
	ds.Extra = o.extra()
	return ds, nil
}

func parseEphemeris(raw json.RawMessage) (Ephemeris, error) {
	o, err := decodeObject(raw)
	if err != nil {
		return Ephemeris{}, err
	}
	var e Ephemeris
	if e.DataSource, err = o.takeSource("data_source"); err != nil {
		return Ephemeris{}, err
	}
	if e.Epoch, err = o.takeTime("epoch", true); err != nil {
		return Ephemeris{}, err
	}
	for _, f := range []struct {
		key string
		dst **Location
	}{
		{"location_geo", &e.LocationGeo},
		{"location_gsm", &e.LocationGSM},
		{"nbtrace", &e.NBTrace},
		{"sbtrace", &e.SBTrace},
	} {
		if err := o.take(f.key, false, f.dst); err != nil {
			return Ephemeris{}, err
		}
	}
	if err := o.take("metadata", false, &e.Metadata); err != nil {
		return Ephemeris{}, err
	}
	e.Extra = o.extra()
	return e, nil
}

func parseConjunction(raw json.RawMessage) (Conjunction, error) {
	o, err := decodeObject(raw)
	if err != nil {
		return Conjunction{}, err
	}
	var c Conjunction
	if err := o.take("conjunction_type", true, &c.ConjunctionType); err != nil {
		return Conjunction{}, err
	}
	if c.Start, err = o.takeTime("start", true); err != nil {
		return Conjunction{}, err
	}
	if c.End, err = o.takeTime("end", true); err != nil {
		return Conjunction{}, err
	}

	var sources []json.RawMessage
	if err := o.take("data_sources", true, &sources); err != nil {
		return Conjunction{}, err
	}
	c.DataSources = make([]DataSource, 0, len(sources))
	for i, s := range sources {
		ds, err := parseDataSource(s)
		if err != nil {
			return Conjunction{}, &fieldError{field: fmt.Sprintf("data_sources[%d]", i), err: err}
		}
		c.DataSources = append(c.DataSources, ds)
	}

	if err := o.take("min_distance", false, &c.MinDistance); err != nil {
		return Conjunction{}, err
	}
	if err := o.take("max_distance", false, &c.MaxDistance); err != nil {
		return Conjunction{}, err
	}
	if c.ClosestEpoch, err = o.takeTime("closest_epoch", false); err != nil {
		return Conjunction{}, err
	}
	if c.FarthestEpoch, err = o.takeTime("farthest_epoch", false); err != nil {
		return Conjunction{}, err
	}
	if err := o.take("events", false, &c.Events); err != nil {
		return Conjunction{}, err
	}
	c.Extra = o.extra()
	return c, nil
}

func parseDataProduct(raw json.RawMessage) (DataProduct, error) {
	o, err := decodeObject(raw)
	if err != nil {
		return DataProduct{}, err
	}
	var p DataProduct
	if p.DataSource, err = o.takeSource("data_source"); err != nil {
		return DataProduct{}, err
	}
	if p.Start, err = o.takeTime("start", true); err != nil {
		return DataProduct{}, err
	}
	if p.End, err = o.takeTime("end", true); err != nil {
		return DataProduct{}, err
	}
	if err := o.take("url", true, &p.URL); err != nil {
		return DataProduct{}, err
	}
	if p.URL == "" {
		return DataProduct{}, &fieldError{field: "url", err: errMissing}
	}
	if err := o.take("data_product_type", false, &p.DataProductType); err != nil {
		return DataProduct{}, err
	}
	if err := o.take("metadata", false, &p.Metadata); err != nil {
		return DataProduct{}, err
	}
	p.Extra = o.extra()
	return p, nil
}
