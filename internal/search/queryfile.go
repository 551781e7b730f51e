// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/aurorax-go/pkg/types"
)

// isYAML reports whether path names a YAML file.
func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// ReadQueryFile loads a query document from disk. Files ending in .yaml or
// .yml are parsed as YAML; anything else as JSON. The result is always
// the JSON wire form.
func ReadQueryFile(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	if !isYAML(path) {
		if !json.Valid(data) {
			return nil, types.Invalid("query_file", "%s is not valid JSON", path)
		}
		return json.RawMessage(data), nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, types.Invalid("query_file", "parsing %s: %v", path, err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, types.Invalid("query_file", "converting %s to JSON: %v", path, err)
	}
	return out, nil
}

// LoadCriteria reads a query file and parses it as criteria of kind.
func LoadCriteria(path string, kind Kind) (Criteria, error) {
	data, err := ReadQueryFile(path)
	if err != nil {
		return nil, err
	}
	return ParseQuery(kind, data)
}

// WriteQueryFile saves a query document to disk, as YAML when path ends
// in .yaml or .yml and as indented JSON otherwise.
func WriteQueryFile(path string, query json.RawMessage) error {
	data, err := FormatQuery(query, isYAML(path))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// FormatQuery renders a query document as indented JSON or as YAML.
func FormatQuery(query json.RawMessage, asYAML bool) ([]byte, error) {
	var doc any
	dec := json.NewDecoder(strings.NewReader(string(query)))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding query: %w", err)
	}
	if asYAML {
		data, err := yaml.Marshal(yamlNumbers(doc))
		if err != nil {
			return nil, fmt.Errorf("marshaling query as YAML: %w", err)
		}
		return data, nil
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling query: %w", err)
	}
	return append(data, '\n'), nil
}

// yamlNumbers replaces json.Number values with int64 or float64 so YAML
// emits them as numbers rather than strings.
func yamlNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = yamlNumbers(e)
		}
	case []any:
		for i, e := range t {
			t[i] = yamlNumbers(e)
		}
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
	}
	return v
}

// Template returns an example query of the given kind, suitable as a
// starting point for a query file.
func Template(kind Kind) (json.RawMessage, error) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 1, 1, 23, 59, 59, 0, time.UTC)

	var c Criteria
	switch kind {
	case KindEphemeris:
		c = EphemerisCriteria{
			Start:           start,
			End:             end,
			Programs:        []string{"swarm"},
			Platforms:       []string{"swarma"},
			InstrumentTypes: []string{"footprint"},
			MetadataFilter: MetadataFilter{
				LogicalOperator: OperatorAnd,
				Expressions: []Expression{
					{Key: "nbtrace_region", Operator: "in", Values: []any{"north auroral oval"}},
				},
			},
		}
	case KindConjunctions:
		c = ConjunctionCriteria{
			Start: start,
			End:   end,
			Ground: []Block{{
				Programs:        []string{"themis-asi"},
				Platforms:       []string{"gillam", "rabbit lake"},
				InstrumentTypes: []string{"panchromatic ASI"},
			}},
			Space: []Block{{
				Programs:        []string{"swarm"},
				InstrumentTypes: []string{"footprint"},
				Hemisphere:      []string{"northern"},
			}},
			ConjunctionTypes: []string{ConjunctionNBTrace},
			Distance:         500,
		}
	case KindDataProducts:
		c = DataProductCriteria{
			Start:            start,
			End:              end,
			Programs:         []string{"trex"},
			Platforms:        []string{"rabbit lake"},
			InstrumentTypes:  []string{"RGB ASI"},
			DataProductTypes: []string{"keogram"},
		}
	default:
		return nil, types.Invalid("kind", "unknown search kind %q", kind)
	}
	return c.Query()
}
