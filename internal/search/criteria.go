// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search builds, submits and tracks AuroraX searches.
//
// Criteria types (EphemerisCriteria, ConjunctionCriteria,
// DataProductCriteria) validate caller input and serialize it to the API
// query shape. Request tracks one submitted search through polling and
// result retrieval.
package search

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/pdiddy/aurorax-go/internal/api"
	"github.com/pdiddy/aurorax-go/pkg/types"
)

// TimeLayout is the timestamp format the API expects in queries.
const TimeLayout = "2006-01-02T15:04:05"

// Kind is a search type as it appears in API paths.
type Kind string

const (
	KindEphemeris    Kind = "ephemeris"
	KindConjunctions Kind = "conjunctions"
	KindDataProducts Kind = "data_products"
)

// ParseKind accepts a kind name in path or CLI form ("data-products").
func ParseKind(s string) (Kind, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "ephemeris":
		return KindEphemeris, nil
	case "conjunctions", "conjunction":
		return KindConjunctions, nil
	case "data_products", "data_product":
		return KindDataProducts, nil
	}
	return "", types.Invalid("kind", "unknown search kind %q", s)
}

func (k Kind) searchPath() string {
	switch k {
	case KindConjunctions:
		return api.PathConjunctionSearch
	case KindDataProducts:
		return api.PathDataProductSearch
	default:
		return api.PathEphemerisSearch
	}
}

func (k Kind) requestPath() string {
	switch k {
	case KindConjunctions:
		return api.PathConjunctionRequest
	case KindDataProducts:
		return api.PathDataProductRequest
	default:
		return api.PathEphemerisRequest
	}
}

// Criteria is a validated, serializable search.
type Criteria interface {
	Kind() Kind
	Validate() error
	Query() (json.RawMessage, error)
}

// Logical operators joining metadata expressions.
const (
	OperatorAnd = "AND"
	OperatorOr  = "OR"
)

var expressionOperators = []string{"=", "!=", ">", "<", ">=", "<=", "between", "in", "not in"}

// Expression is one metadata filter condition.
type Expression struct {
	Key      string `json:"key" yaml:"key"`
	Operator string `json:"operator" yaml:"operator"`
	Values   []any  `json:"values" yaml:"values"`
}

// MetadataFilter combines expressions with a logical operator. The zero
// value matches everything and serializes as {}.
type MetadataFilter struct {
	LogicalOperator string       `yaml:"logical_operator,omitempty"`
	Expressions     []Expression `yaml:"expressions,omitempty"`
}

// Empty reports whether the filter has no expressions.
func (f MetadataFilter) Empty() bool { return len(f.Expressions) == 0 }

// Validate checks the operator names and expression keys. field prefixes
// error messages.
func (f MetadataFilter) Validate(field string) error {
	if f.Empty() {
		return nil
	}
	if op := f.LogicalOperator; op != "" && op != OperatorAnd && op != OperatorOr {
		return types.Invalid(field+".logical_operator", "must be AND or OR, got %q", op)
	}
	for i, e := range f.Expressions {
		if strings.TrimSpace(e.Key) == "" {
			return types.Invalid(fmt.Sprintf("%s.expressions[%d].key", field, i), "must not be empty")
		}
		if !slices.Contains(expressionOperators, e.Operator) {
			return types.Invalid(fmt.Sprintf("%s.expressions[%d].operator", field, i),
				"unknown operator %q (want one of %s)", e.Operator, strings.Join(expressionOperators, ", "))
		}
	}
	return nil
}

type filterWire struct {
	LogicalOperator string       `json:"logical_operator"`
	Expressions     []Expression `json:"expressions"`
}

func (f MetadataFilter) MarshalJSON() ([]byte, error) {
	if f.Empty() {
		return []byte("{}"), nil
	}
	op := f.LogicalOperator
	if op == "" {
		op = OperatorAnd
	}
	exprs := make([]Expression, len(f.Expressions))
	for i, e := range f.Expressions {
		if e.Values == nil {
			e.Values = []any{}
		}
		exprs[i] = e
	}
	return json.Marshal(filterWire{LogicalOperator: op, Expressions: exprs})
}

func (f *MetadataFilter) UnmarshalJSON(data []byte) error {
	var w filterWire
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return err
	}
	f.LogicalOperator = w.LogicalOperator
	f.Expressions = w.Expressions
	if f.Empty() {
		f.LogicalOperator = ""
	}
	return nil
}

// validateWindow checks that both ends of the time window are set and
// ordered.
func validateWindow(start, end time.Time) error {
	if start.IsZero() {
		return types.Invalid("start", "must be set")
	}
	if end.IsZero() {
		return types.Invalid("end", "must be set")
	}
	if start.After(end) {
		return types.Invalid("start", "%s is after end %s", start.Format(TimeLayout), end.Format(TimeLayout))
	}
	return nil
}

func formatTime(t time.Time) string { return t.UTC().Format(TimeLayout) }

// ParseTime accepts the API layout, RFC 3339 and a bare date.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{TimeLayout, time.RFC3339, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func parseWindow(start, end string) (time.Time, time.Time, error) {
	s, err := ParseTime(start)
	if err != nil {
		return time.Time{}, time.Time{}, types.Invalid("start", "%v", err)
	}
	e, err := ParseTime(end)
	if err != nil {
		return time.Time{}, time.Time{}, types.Invalid("end", "%v", err)
	}
	return s, e, nil
}

// list returns s, or an empty slice when s is nil, so that lists always
// serialize as [].
func list(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// nilIfEmpty returns nil for empty slices so parsed criteria compare
// equal regardless of how the wire spelled an empty list.
func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

// encode marshals v without HTML escaping, so operators like "<" reach
// the API verbatim.
func encode(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// decodeQuery unmarshals a wire query, mapping failures to validation
// errors.
func decodeQuery(data json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return types.Invalid("query", "not a valid query document: %v", err)
	}
	return nil
}
