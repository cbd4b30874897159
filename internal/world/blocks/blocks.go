// Package blocks supplies the block catalog and the passability
// classifier consumed by the pathfinder. The taxonomy itself lives in a
// JSON config file; the core only ever sees the Class of a cell value.
package blocks

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Class is the pathfinding-relevant category of a cell value.
type Class int

const (
	// Air is free space: no clearing cost when moving through.
	Air Class = iota
	// Floor is the impassable world-floor category (bedrock); the
	// pathfinder refuses to enter such cells near the bottom of the
	// world.
	Floor
	// Solid is any other observed block; passable after clearing.
	Solid
	// Unknown means the id is outside the palette. Classified like
	// Solid for costing, kept distinct for diagnostics.
	Unknown
)

var classNames = [...]string{"AIR", "FLOOR", "SOLID", "UNKNOWN"}

func (c Class) String() string {
	if c < Air || c > Unknown {
		return fmt.Sprintf("CLASS(%d)", int(c))
	}
	return classNames[c]
}

// Classifier maps observed cell values to classes. Absent cells are the
// caller's business: the historical model treats unobserved space as
// walkable air.
type Classifier interface {
	Classify(v int32) Class
}

type Def struct {
	ID       string `json:"id"`
	Passable bool   `json:"passable"`
	Floor    bool   `json:"floor"`
}

// Catalog is a palette-ordered block taxonomy. Palette index is the
// cell value stored in the world model.
type Catalog struct {
	Palette []string
	Index   map[string]int32
	Defs    map[string]Def
}

var _ Classifier = (*Catalog)(nil)

// Load reads a block catalog from a JSON array of defs. AIR must exist
// and always takes palette id 0; the rest of the palette is sorted by
// id so palette assignment is deterministic.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var defs []Def
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("blocks.json: %w", err)
	}
	return build(defs)
}

// Default returns the built-in catalog used when no config file is
// given.
func Default() *Catalog {
	c, err := build([]Def{
		{ID: "AIR", Passable: true},
		{ID: "BEDROCK", Floor: true},
		{ID: "STONE"},
		{ID: "DIRT"},
		{ID: "GRAVEL"},
		{ID: "SAND"},
		{ID: "LOG"},
		{ID: "COAL_ORE"},
		{ID: "IRON_ORE"},
		{ID: "COPPER_ORE"},
		{ID: "DIAMOND_ORE"},
	})
	if err != nil {
		panic(err)
	}
	return c
}

func build(defs []Def) (*Catalog, error) {
	c := &Catalog{
		Index: map[string]int32{},
		Defs:  map[string]Def{},
	}
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("blocks.json: empty id")
		}
		if _, dup := c.Defs[d.ID]; dup {
			return nil, fmt.Errorf("blocks.json: duplicate id %q", d.ID)
		}
		c.Defs[d.ID] = d
	}
	if _, ok := c.Defs["AIR"]; !ok {
		return nil, fmt.Errorf("blocks.json: missing AIR")
	}

	ids := make([]string, 0, len(c.Defs))
	for id := range c.Defs {
		if id != "AIR" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	c.Palette = append([]string{"AIR"}, ids...)
	for i, id := range c.Palette {
		c.Index[id] = int32(i)
	}
	return c, nil
}

func (c *Catalog) Name(v int32) string {
	if v < 0 || int(v) >= len(c.Palette) {
		return ""
	}
	return c.Palette[v]
}

func (c *Catalog) Classify(v int32) Class {
	name := c.Name(v)
	if name == "" {
		return Unknown
	}
	d := c.Defs[name]
	switch {
	case d.Floor:
		return Floor
	case d.Passable:
		return Air
	default:
		return Solid
	}
}
