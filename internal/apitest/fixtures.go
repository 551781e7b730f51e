// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package apitest

import (
	"encoding/json"
	"time"
)

const timeLayout = "2006-01-02T15:04:05"

// DataSource returns a basic-info data source document.
func DataSource(identifier int, program, platform, instrumentType, sourceType string) map[string]any {
	return map[string]any{
		"identifier":      identifier,
		"program":         program,
		"platform":        platform,
		"instrument_type": instrumentType,
		"source_type":     sourceType,
		"display_name":    platform + " " + instrumentType,
		"owner":           "aurorax@example.org",
	}
}

// EphemerisQueryResults returns a result generator for ephemeris searches.
// For every platform in the query it emits one record per step between
// the query's start and end, inclusive.
func EphemerisQueryResults(step time.Duration) func(json.RawMessage) []json.RawMessage {
	return func(raw json.RawMessage) []json.RawMessage {
		var q struct {
			Start       string `json:"start"`
			End         string `json:"end"`
			DataSources struct {
				Programs  []string `json:"programs"`
				Platforms []string `json:"platforms"`
			} `json:"data_sources"`
		}
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil
		}
		start, err1 := time.Parse(timeLayout, q.Start)
		end, err2 := time.Parse(timeLayout, q.End)
		if err1 != nil || err2 != nil {
			return nil
		}
		program := "themis-asi"
		if len(q.DataSources.Programs) > 0 {
			program = q.DataSources.Programs[0]
		}

		var out []json.RawMessage
		for i, platform := range q.DataSources.Platforms {
			for t := start; !t.After(end); t = t.Add(step) {
				out = append(out, EphemerisRecord(i+1, program, platform, t))
			}
		}
		return out
	}
}

// EphemerisRecord returns one ephemeris record document.
func EphemerisRecord(identifier int, program, platform string, epoch time.Time) json.RawMessage {
	rec := map[string]any{
		"data_source":  DataSource(identifier, program, platform, "panchromatic ASI", "ground"),
		"epoch":        epoch.UTC().Format(timeLayout),
		"location_geo": map[string]any{"lat": 56.35, "lon": -94.71},
		"location_gsm": map[string]any{"lat": nil, "lon": nil},
		"nbtrace":      map[string]any{"lat": 56.35, "lon": -94.71},
		"sbtrace":      map[string]any{"lat": -69.2, "lon": -121.3},
		"metadata":     map[string]any{"calgary_apa_ml_v1": "classified as APA"},
	}
	data, _ := json.Marshal(rec)
	return data
}

// ConjunctionRecord returns one conjunction record document.
func ConjunctionRecord(start, end time.Time, minDist, maxDist float64) json.RawMessage {
	rec := map[string]any{
		"conjunction_type": "nbtrace",
		"start":            start.UTC().Format(timeLayout),
		"end":              end.UTC().Format(timeLayout),
		"min_distance":     minDist,
		"max_distance":     maxDist,
		"closest_epoch":    start.UTC().Format(timeLayout),
		"farthest_epoch":   end.UTC().Format(timeLayout),
		"data_sources": []any{
			DataSource(1, "themis-asi", "gillam", "panchromatic ASI", "ground"),
			DataSource(2, "swarm", "swarma", "footprint", "leo"),
		},
		"events": []any{},
	}
	data, _ := json.Marshal(rec)
	return data
}
