// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/aurorax-go/pkg/types"
)

func day(d int) time.Time { return time.Date(2019, 1, d, 0, 0, 0, 0, time.UTC) }

func TestEphemerisSchema(t *testing.T) {
	srv, client := newServer(t)
	srv.Sources[1]["ephemeris_metadata_schema"] = []map[string]any{
		{"field_name": "nbtrace_region", "description": "Region of the north B-trace", "data_type": "string",
			"allowed_values": []string{"north polar cap", "north auroral oval"}},
		{"field_name": "radial_distance", "description": "Distance from Earth's centre", "data_type": "double"},
	}
	srv.Sources[1]["data_product_metadata_schema"] = []map[string]any{
		{"field_name": "keogram_type", "data_type": "string"},
	}
	ctx := context.Background()

	fields, err := EphemerisSchema(ctx, client, 1)
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "nbtrace_region", fields[0].FieldName)
	assert.Equal(t, []any{"north polar cap", "north auroral oval"}, fields[0].AllowedValues)
	assert.Equal(t, "double", fields[1].DataType)

	products, err := DataProductSchema(ctx, client, 1)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "keogram_type", products[0].FieldName)

	none, err := EphemerisSchema(ctx, client, 3)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = EphemerisSchema(ctx, client, 99)
	assert.True(t, types.IsNotFound(err))

	// Basic lookups do not carry the schema.
	ds, err := Get(ctx, client, 1)
	require.NoError(t, err)
	assert.NotContains(t, ds.Extra, "ephemeris_metadata_schema")
}

func TestFormatSchemaTable(t *testing.T) {
	var buf bytes.Buffer
	FormatSchemaTable(nil, &buf)
	assert.Equal(t, "No metadata schema found.\n", buf.String())

	buf.Reset()
	FormatSchemaTable([]SchemaField{
		{FieldName: "state", DataType: "string", Description: "Spacecraft state", AllowedValues: []any{"definitive", "predictive"}},
	}, &buf)
	assert.Contains(t, buf.String(), "Spacecraft state")
	assert.Contains(t, buf.String(), "allowed: definitive, predictive")
	assert.Contains(t, buf.String(), "1 fields")
}

func TestEphemerisAvailability(t *testing.T) {
	srv, client := newServer(t)
	srv.Availability = map[int]map[string]int{
		1: {"2018-12-31": 1440, "2019-01-01": 1440, "2019-01-02": 720, "2019-01-11": 1440},
		3: {"2019-01-05": 100},
	}
	ctx := context.Background()

	list, err := EphemerisAvailability(ctx, client, AvailabilityFilter{
		Filter: Filter{Program: "swarm"},
		Start:  day(1),
		End:    day(10),
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	a := list[0]
	assert.Equal(t, "swarma", a.DataSource.Platform)
	assert.Equal(t, []string{"2019-01-01", "2019-01-02"}, a.Days())
	assert.Equal(t, 2160, a.Total())

	products, err := DataProductAvailability(ctx, client, AvailabilityFilter{
		Filter: Filter{SourceType: "ground"},
		Start:  day(1),
		End:    day(10),
	})
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, 100, products[0].Total())
	assert.Empty(t, products[1].Days())

	out, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"2019-01-01":1440,"2019-01-02":720}`, string(mustField(t, out, "counts")))

	var buf bytes.Buffer
	FormatAvailabilityTable(list, &buf)
	assert.Contains(t, buf.String(), "2019-01-01..2019-01-02")
	assert.Contains(t, buf.String(), "2160")
}

func TestAvailability_Validation(t *testing.T) {
	srv, client := newServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		f    AvailabilityFilter
	}{
		{"no dates", AvailabilityFilter{}},
		{"end before start", AvailabilityFilter{Start: day(5), End: day(1)}},
		{"bad source type", AvailabilityFilter{Start: day(1), End: day(2), Filter: Filter{SourceType: "blimp"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EphemerisAvailability(ctx, client, tt.f)
			assert.ErrorIs(t, err, types.ErrValidation)
		})
	}
	assert.Equal(t, 0, srv.Calls(http.MethodGet, "/api/v1/availability/{kind}"))
}

func mustField(t *testing.T, doc []byte, key string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(doc, &m))
	return m[key]
}
