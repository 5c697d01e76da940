// Package render turns decoded chunks into pixels: a block classifier
// backed by a configurable appearance table, plus top-down and isometric
// column renderers with deterministic shading.
package render

import (
	_ "embed"
	"fmt"
	"hash/fnv"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/eak1mov/go-anviltiles/chunk"
	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"
)

// Tint classes drive biome-dependent color blending.
type Tint uint8

const (
	TintNone Tint = iota
	TintGrass
	TintFoliage
	TintWater
)

// Appearance is the renderable description of a block state.
type Appearance struct {
	R, G, B uint8
	Alpha   float64 // [0,1]; 0 means invisible
	Emits   bool    // light-emitting, exempt from shading
	Occludes bool   // blocks light; ends the column walk when fully opaque
	Tint    Tint
	Miss    bool // set for blocks the table does not know
}

// Visible reports whether the block contributes pixels at all.
func (a Appearance) Visible() bool {
	return a.Alpha > 0
}

// missAppearance is the error color for unclassified blocks: loud, fully
// opaque, never a failure.
var missAppearance = Appearance{R: 0xff, G: 0x00, B: 0xff, Alpha: 1, Occludes: true, Miss: true}

// tableEntry is the YAML shape of one appearance-table entry. Field
// pointers distinguish "absent" from zero so state overrides can patch
// selectively.
type tableEntry struct {
	Color    string   `yaml:"color"`
	Alpha    *float64 `yaml:"alpha"`
	Emits    *bool    `yaml:"emits"`
	Occludes *bool    `yaml:"occludes"`
	Tint     string   `yaml:"tint"`

	// States carries property-conditional overrides; the first entry whose
	// `when` map is a subset of the block's properties wins.
	States []stateOverride `yaml:"states"`
}

type stateOverride struct {
	When  map[string]string `yaml:"when"`
	Entry tableEntry        `yaml:",inline"`
}

// Table maps block states to appearances. It is immutable after load and
// safe for concurrent readers; resolutions are memoized per state key.
type Table struct {
	blocks      map[string]*tableEntry
	fingerprint uint64

	memo   sync.Map // state key -> Appearance
	misses sync.Map // block name -> struct{}
}

// Fingerprint identifies the table's source bytes, so cached render
// output can be tied to the colors it was produced with.
func (t *Table) Fingerprint() uint64 {
	return t.fingerprint
}

// ParseTable loads an appearance table from YAML bytes.
func ParseTable(data []byte) (*Table, error) {
	var raw map[string]*tableEntry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("render: parsing appearance table: %w", err)
	}

	hash := fnv.New64a()
	hash.Write(data)
	table := &Table{
		blocks:      make(map[string]*tableEntry, len(raw)),
		fingerprint: hash.Sum64(),
	}
	for name, entry := range raw {
		if entry == nil {
			entry = &tableEntry{}
		}
		if _, err := compileEntry(*entry, Appearance{Alpha: 1, Occludes: true}); err != nil {
			return nil, fmt.Errorf("render: appearance of %q: %w", name, err)
		}
		table.blocks[qualify(name)] = entry
	}
	return table, nil
}

// LoadTable reads an appearance table from a YAML file.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseTable(data)
}

//go:embed colors.yaml
var defaultColors []byte

// DefaultTable returns the compiled-in appearance table covering the
// common block types. Each call builds a fresh table: the resolution
// memo and the miss record are per-table state, and sharing them would
// leak one run's unknown-block list into the next.
func DefaultTable() *Table {
	table, err := ParseTable(defaultColors)
	if err != nil {
		panic(fmt.Sprintf("render: embedded color table: %v", err))
	}
	return table
}

// qualify expands bare block names with the default namespace, so table
// authors may write "stone" for "minecraft:stone".
func qualify(name string) string {
	if strings.ContainsRune(name, ':') {
		return name
	}
	return "minecraft:" + name
}

// Resolve maps a block state to its appearance. It never fails: unknown
// blocks yield a magenta miss appearance and are recorded for the run
// summary.
func (t *Table) Resolve(state chunk.BlockState) Appearance {
	key := state.Key()
	if cached, ok := t.memo.Load(key); ok {
		return cached.(Appearance)
	}

	app := t.resolve(state)
	t.memo.Store(key, app)
	return app
}

func (t *Table) resolve(state chunk.BlockState) Appearance {
	entry, ok := t.blocks[state.Name]
	if !ok {
		t.misses.Store(state.Name, struct{}{})
		return missAppearance
	}

	app, err := compileEntry(*entry, Appearance{Alpha: 1, Occludes: true})
	if err != nil {
		// rejected at parse time
		panic(err)
	}
	for _, override := range entry.States {
		if !subsetMatch(override.When, state.Properties) {
			continue
		}
		if app, err = compileEntry(override.Entry, app); err != nil {
			panic(err)
		}
		break
	}
	return app
}

// compileEntry applies the set fields of a YAML entry over a base
// appearance.
func compileEntry(entry tableEntry, base Appearance) (Appearance, error) {
	app := base
	if entry.Color != "" {
		c, err := colorful.Hex(entry.Color)
		if err != nil {
			return Appearance{}, fmt.Errorf("bad color %q: %w", entry.Color, err)
		}
		r, g, b := c.RGB255()
		app.R, app.G, app.B = r, g, b
	}
	if entry.Alpha != nil {
		if *entry.Alpha < 0 || *entry.Alpha > 1 {
			return Appearance{}, fmt.Errorf("alpha %v outside [0,1]", *entry.Alpha)
		}
		app.Alpha = *entry.Alpha
		if app.Alpha < 1 {
			app.Occludes = false
		}
	}
	if entry.Emits != nil {
		app.Emits = *entry.Emits
	}
	if entry.Occludes != nil {
		app.Occludes = *entry.Occludes
	}
	switch entry.Tint {
	case "":
	case "grass":
		app.Tint = TintGrass
	case "foliage":
		app.Tint = TintFoliage
	case "water":
		app.Tint = TintWater
	default:
		return Appearance{}, fmt.Errorf("unknown tint class %q", entry.Tint)
	}
	return app, nil
}

func subsetMatch(want, have map[string]string) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

// Misses returns the sorted block names Resolve failed to classify so far.
func (t *Table) Misses() []string {
	var names []string
	t.misses.Range(func(k, _ any) bool {
		names = append(names, k.(string))
		return true
	})
	slices.Sort(names)
	return names
}
