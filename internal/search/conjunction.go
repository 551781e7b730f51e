// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/pdiddy/aurorax-go/internal/api"
	"github.com/pdiddy/aurorax-go/pkg/types"
)

// Conjunction types.
const (
	ConjunctionNBTrace    = "nbtrace"
	ConjunctionSBTrace    = "sbtrace"
	ConjunctionGeographic = "geographic"
)

var conjunctionTypes = []string{ConjunctionNBTrace, ConjunctionSBTrace, ConjunctionGeographic}

// Bounds on the number of criteria blocks in one conjunction search.
const (
	MinCriteriaBlocks = 2
	MaxCriteriaBlocks = 10
)

// Block is one criteria block of a conjunction search: a set of data
// sources that must take part in the conjunction.
type Block struct {
	Programs        []string       `json:"programs"`
	Platforms       []string       `json:"platforms"`
	InstrumentTypes []string       `json:"instrument_types"`
	MetadataFilter  MetadataFilter `json:"ephemeris_metadata_filters"`

	// Hemisphere restricts space blocks to "northern" or "southern"
	// footprints. Ground and event blocks ignore it.
	Hemisphere []string `json:"hemisphere,omitempty"`
}

func (b Block) wire(space bool) Block {
	out := Block{
		Programs:        list(b.Programs),
		Platforms:       list(b.Platforms),
		InstrumentTypes: list(b.InstrumentTypes),
		MetadataFilter:  b.MetadataFilter,
	}
	if space {
		out.Hemisphere = b.Hemisphere
	}
	return out
}

func (b Block) normalized() Block {
	b.Programs = nilIfEmpty(b.Programs)
	b.Platforms = nilIfEmpty(b.Platforms)
	b.InstrumentTypes = nilIfEmpty(b.InstrumentTypes)
	b.Hemisphere = nilIfEmpty(b.Hemisphere)
	return b
}

// ConjunctionCriteria selects conjunctions between criteria blocks within
// [Start, End].
type ConjunctionCriteria struct {
	Start  time.Time
	End    time.Time
	Ground []Block
	Space  []Block
	Events []Block

	// ConjunctionTypes defaults to nbtrace.
	ConjunctionTypes []string

	// Distance is the maximum distance in kilometres applied to every
	// block pair without an override. Zero leaves those pairs unset.
	Distance float64

	// Distances overrides Distance for individual pairs, keyed "a-b" as
	// returned by DistanceCombos. Keys match in either order.
	Distances map[string]float64

	// EpochPrecision is 30 or 60 seconds; zero means 60.
	EpochPrecision int
}

func (c ConjunctionCriteria) Kind() Kind { return KindConjunctions }

// blockNames lists block names in ground, space, events order.
func (c ConjunctionCriteria) blockNames() []string {
	var names []string
	for _, g := range []struct {
		prefix string
		n      int
	}{{"ground", len(c.Ground)}, {"space", len(c.Space)}, {"events", len(c.Events)}} {
		for i := range g.n {
			names = append(names, fmt.Sprintf("%s%d", g.prefix, i+1))
		}
	}
	return names
}

// DistanceCombos returns every block pair key ("ground1-space1") in
// ground, space, events order.
func (c ConjunctionCriteria) DistanceCombos() []string {
	names := c.blockNames()
	var combos []string
	for i := range names {
		for j := i + 1; j < len(names); j++ {
			combos = append(combos, names[i]+"-"+names[j])
		}
	}
	return combos
}

// canonicalPair maps "b-a" or "a-b" to the DistanceCombos spelling.
func canonicalPair(names []string, key string) (string, bool) {
	a, b, ok := strings.Cut(key, "-")
	if !ok {
		return "", false
	}
	i := slices.Index(names, strings.TrimSpace(a))
	j := slices.Index(names, strings.TrimSpace(b))
	if i < 0 || j < 0 || i == j {
		return "", false
	}
	if i > j {
		i, j = j, i
	}
	return names[i] + "-" + names[j], true
}

// MaxDistances returns the distance for every block pair. Pairs with no
// distance map to nil and serialize as null.
func (c ConjunctionCriteria) MaxDistances() map[string]*float64 {
	names := c.blockNames()
	overrides := make(map[string]float64, len(c.Distances))
	for _, k := range slices.Sorted(maps.Keys(c.Distances)) {
		if pair, ok := canonicalPair(names, k); ok {
			overrides[pair] = c.Distances[k]
		}
	}
	out := make(map[string]*float64)
	for _, pair := range c.DistanceCombos() {
		if v, ok := overrides[pair]; ok {
			out[pair] = &v
		} else if c.Distance > 0 {
			d := c.Distance
			out[pair] = &d
		} else {
			out[pair] = nil
		}
	}
	return out
}

func (c ConjunctionCriteria) epochPrecision() int {
	if c.EpochPrecision == 0 {
		return 60
	}
	return c.EpochPrecision
}

func (c ConjunctionCriteria) conjunctionTypes() []string {
	if len(c.ConjunctionTypes) == 0 {
		return []string{ConjunctionNBTrace}
	}
	return c.ConjunctionTypes
}

// Validate reports the first problem with c as a *types.ValidationError.
func (c ConjunctionCriteria) Validate() error {
	if err := validateWindow(c.Start, c.End); err != nil {
		return err
	}
	n := len(c.Ground) + len(c.Space) + len(c.Events)
	if n < MinCriteriaBlocks || n > MaxCriteriaBlocks {
		return types.Invalid("criteria_blocks", "need between %d and %d blocks, got %d", MinCriteriaBlocks, MaxCriteriaBlocks, n)
	}
	for _, g := range []struct {
		name   string
		blocks []Block
	}{{"ground", c.Ground}, {"space", c.Space}, {"events", c.Events}} {
		for i, b := range g.blocks {
			field := fmt.Sprintf("%s[%d]", g.name, i)
			if err := b.MetadataFilter.Validate(field + ".ephemeris_metadata_filters"); err != nil {
				return err
			}
			for _, h := range b.Hemisphere {
				if h != "northern" && h != "southern" {
					return types.Invalid(field+".hemisphere", "must be northern or southern, got %q", h)
				}
			}
		}
	}
	for _, t := range c.ConjunctionTypes {
		if !slices.Contains(conjunctionTypes, t) {
			return types.Invalid("conjunction_types", "unknown type %q (want one of %s)", t, strings.Join(conjunctionTypes, ", "))
		}
	}
	if p := c.EpochPrecision; p != 0 && p != 30 && p != 60 {
		return types.Invalid("epoch_search_precision", "must be 30 or 60 seconds, got %d", p)
	}
	if c.Distance < 0 {
		return types.Invalid("distance", "must not be negative")
	}
	names := c.blockNames()
	seen := make(map[string]string, len(c.Distances))
	for _, k := range slices.Sorted(maps.Keys(c.Distances)) {
		pair, ok := canonicalPair(names, k)
		if !ok {
			return types.Invalid("max_distances", "%q does not name two blocks of this search", k)
		}
		if prev, dup := seen[pair]; dup {
			return types.Invalid("max_distances", "%q and %q name the same pair", prev, k)
		}
		seen[pair] = k
		if c.Distances[k] < 0 {
			return types.Invalid("max_distances", "%s must not be negative", k)
		}
	}
	return nil
}

type conjunctionQuery struct {
	Start            string              `json:"start"`
	End              string              `json:"end"`
	Ground           []Block             `json:"ground"`
	Space            []Block             `json:"space"`
	Events           []Block             `json:"events"`
	ConjunctionTypes []string            `json:"conjunction_types"`
	MaxDistances     map[string]*float64 `json:"max_distances"`
	EpochPrecision   int                 `json:"epoch_search_precision"`
}

func wireBlocks(blocks []Block, space bool) []Block {
	out := make([]Block, len(blocks))
	for i, b := range blocks {
		out[i] = b.wire(space)
	}
	return out
}

// Query serializes c to the API query document.
func (c ConjunctionCriteria) Query() (json.RawMessage, error) {
	return encode(conjunctionQuery{
		Start:            formatTime(c.Start),
		End:              formatTime(c.End),
		Ground:           wireBlocks(c.Ground, false),
		Space:            wireBlocks(c.Space, true),
		Events:           wireBlocks(c.Events, false),
		ConjunctionTypes: c.conjunctionTypes(),
		MaxDistances:     c.MaxDistances(),
		EpochPrecision:   c.epochPrecision(),
	})
}

// ParseConjunctionQuery rebuilds criteria from a query document. Every
// non-null entry of max_distances becomes a per-pair override.
func ParseConjunctionQuery(data json.RawMessage) (ConjunctionCriteria, error) {
	var q conjunctionQuery
	if err := decodeQuery(data, &q); err != nil {
		return ConjunctionCriteria{}, err
	}
	start, end, err := parseWindow(q.Start, q.End)
	if err != nil {
		return ConjunctionCriteria{}, err
	}
	c := ConjunctionCriteria{
		Start:            start,
		End:              end,
		ConjunctionTypes: nilIfEmpty(q.ConjunctionTypes),
		EpochPrecision:   q.EpochPrecision,
	}
	for _, g := range []struct {
		dst *[]Block
		src []Block
	}{{&c.Ground, q.Ground}, {&c.Space, q.Space}, {&c.Events, q.Events}} {
		for _, b := range g.src {
			*g.dst = append(*g.dst, b.normalized())
		}
	}
	for k, v := range q.MaxDistances {
		if v == nil {
			continue
		}
		if c.Distances == nil {
			c.Distances = make(map[string]float64)
		}
		c.Distances[k] = *v
	}
	return c, nil
}

// Describe asks the API to render c as a human-readable, SQL-like
// statement.
func Describe(ctx context.Context, client *api.Client, c ConjunctionCriteria) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	q, err := c.Query()
	if err != nil {
		return "", err
	}
	var out string
	if err := client.Post(ctx, api.PathDescribeConjunction, q, &out); err != nil {
		return "", fmt.Errorf("describing conjunction search: %w", err)
	}
	return out, nil
}
