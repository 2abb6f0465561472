// Package palette flattens a section's (biome, block-state) palettes
// into a single per-LOD mapping of canonical strings, and produces the
// flat biome*block_states -> global-id table the LOD builder indexes
// for every voxel.
package palette

import (
	"fmt"
	"sort"
	"strings"

	"github.com/OCharnyshevich/minecraft-server/internal/dh"
	"github.com/OCharnyshevich/minecraft-server/internal/dh/nbt"
	"github.com/OCharnyshevich/minecraft-server/internal/dh/section"
)

const (
	// MaxBiomePalette and MaxBlockPalette bound a single section's
	// palette size; exceeding either is malformed input (spec §4.4).
	MaxBiomePalette = 64
	MaxBlockPalette = 4096

	keySeparatorBiomeBlock = "_DH-BSW_"
	keySeparatorState      = "_STATE_"

	airBlockName = "minecraft:air"
)

// Property is one decoded block-state property. Only string-valued
// properties ever appear in vanilla Minecraft's block_states palette,
// so this has no provision for other NBT value types.
type Property struct {
	Name  string
	Value string
}

// CanonicalKey builds the mapping string for one (biome, block-state)
// pair: "<biome>_DH-BSW_<block>_STATE_{name:value}{name2:value2}...",
// with properties pre-sorted ascending by name (spec §4.4).
//
// The original C implementation appends a NUL terminator to this key
// because it is built in a scratch C string buffer; a Go string
// already carries its own length, so the terminator is dropped here
// (see DESIGN.md's Open Question decisions) -- this does not change
// the set of distinct keys or their ordering.
func CanonicalKey(biomeName, blockName string, props []Property) string {
	var b strings.Builder
	b.Grow(len(biomeName) + len(keySeparatorBiomeBlock) + len(blockName) + len(keySeparatorState) + 16*len(props))
	b.WriteString(biomeName)
	b.WriteString(keySeparatorBiomeBlock)
	b.WriteString(blockName)
	b.WriteString(keySeparatorState)
	for _, p := range props {
		b.WriteByte('{')
		b.WriteString(p.Name)
		b.WriteByte(':')
		b.WriteString(p.Value)
		b.WriteByte('}')
	}
	return b.String()
}

// Mapping is the ordered, deduplicated set of canonical strings for
// one LOD (spec §3's "Id mapping"). Lookup is by a map index rather
// than the original's linear scan: spec §4.4 explicitly permits a
// hash index "if [it preserves] insertion-order identity", which this
// does since ids are only ever assigned by appending.
type Mapping struct {
	strings []string
	index   map[string]int32
}

// NewMapping returns an empty Mapping ready for Intern calls.
func NewMapping() *Mapping {
	return &Mapping{index: make(map[string]int32)}
}

// Reset clears m for reuse without discarding its backing storage.
func (m *Mapping) Reset() {
	m.strings = m.strings[:0]
	for k := range m.index {
		delete(m.index, k)
	}
}

// Len returns the number of distinct strings interned so far.
func (m *Mapping) Len() int { return len(m.strings) }

// String returns the canonical string for id. id must be < Len().
func (m *Mapping) String(id int32) string { return m.strings[id] }

// Strings returns the mapping in insertion order, for serialisation.
func (m *Mapping) Strings() []string { return m.strings }

// Intern returns key's stable id, appending it to the mapping if this
// is the first time key has been seen.
func (m *Mapping) Intern(key string) int32 {
	if id, ok := m.index[key]; ok {
		return id
	}
	id := int32(len(m.strings))
	m.strings = append(m.strings, key)
	m.index[key] = id
	return id
}

// MergeFrom interns every string of other into m and returns a remap
// table from other's local ids to m's ids (used by the LOD mipper
// when folding several source mappings into one destination mapping).
func (m *Mapping) MergeFrom(other *Mapping) []int32 {
	remap := make([]int32, other.Len())
	for i, s := range other.strings {
		remap[i] = m.Intern(s)
	}
	return remap
}

// Table is one section's flattened biome*block_states -> global id
// array, plus the block-state index of "minecraft:air" (the implicit
// default below the lowest reported run, spec §4.4).
type Table struct {
	Values     []int32 // len BiomeCount*BlockCount, row-major by biome then block
	BiomeCount int
	BlockCount int
	AirIndex   int32 // -1 if the palette has no minecraft:air entry
}

// Get resolves the global mapping id for a given biome and block-state
// local palette index.
func (t *Table) Get(biomeIdx, blockIdx int) int32 {
	return t.Values[biomeIdx*t.BlockCount+blockIdx]
}

// voidBiomeName is the biome name used for sections the world never
// generated (a gap in Bundle.Sections, spec §4.3's "outside the
// reported section range"). Vanilla uses "minecraft:the_void" for
// exactly this case, so AirTable reuses it rather than inventing a
// placeholder biome name.
const voidBiomeName = "minecraft:the_void"

// AirTable returns a 1x1 Table resolving every voxel to "the_void"
// biome's all-air entry, interning that single key into mapping. The
// LOD builder requires a non-nil Table for every section slot
// (lod.ChunkInput's doc comment); callers use AirTable for slots a
// chunk never populated.
func AirTable(mapping *Mapping) *Table {
	key := CanonicalKey(voidBiomeName, airBlockName, nil)
	id := mapping.Intern(key)
	return &Table{Values: []int32{id}, BiomeCount: 1, BlockCount: 1, AirIndex: 0}
}

// Flatten decodes sec's block-state and biome palettes, interns every
// (biome, block-state) pair's canonical key into mapping, and returns
// the section's flat id table. reuse, if it has enough capacity, is
// reused as the returned Table's backing array.
func Flatten(buf []byte, sec *section.View, mapping *Mapping, reuse *Table) (*Table, error) {
	if sec.BlockPalette.Empty() || sec.BiomePalette.Empty() {
		return nil, fmt.Errorf("palette: section Y=%d missing block_states or biomes palette: %w", sec.Y, dh.ErrMalformed)
	}

	blockNames, blockProps, airIdx, err := decodeBlockPalette(buf, sec.BlockPalette)
	if err != nil {
		return nil, fmt.Errorf("palette: section Y=%d block palette: %w", sec.Y, err)
	}
	biomeNames, err := decodeBiomePalette(buf, sec.BiomePalette)
	if err != nil {
		return nil, fmt.Errorf("palette: section Y=%d biome palette: %w", sec.Y, err)
	}

	biomeCount, blockCount := len(biomeNames), len(blockNames)
	need := biomeCount * blockCount

	var out *Table
	if reuse != nil && cap(reuse.Values) >= need {
		out = reuse
		out.Values = out.Values[:need]
	} else {
		out = &Table{Values: make([]int32, need)}
	}
	out.BiomeCount = biomeCount
	out.BlockCount = blockCount
	out.AirIndex = int32(airIdx)

	for bi, biomeName := range biomeNames {
		for si, blockName := range blockNames {
			key := CanonicalKey(biomeName, blockName, blockProps[si])
			out.Values[bi*blockCount+si] = mapping.Intern(key)
		}
	}
	return out, nil
}

func decodeBlockPalette(buf []byte, palette nbt.Payload) (names []string, props [][]Property, airIdx int, err error) {
	_, count, err := nbt.ListLen(buf, palette)
	if err != nil {
		return nil, nil, -1, err
	}
	if int(count) > MaxBlockPalette {
		return nil, nil, -1, fmt.Errorf("block palette size %d exceeds %d: %w", count, MaxBlockPalette, dh.ErrMalformed)
	}
	names = make([]string, 0, count)
	props = make([][]Property, 0, count)
	airIdx = -1

	walkErr := nbt.ListElements(buf, palette, func(i int, entry nbt.Payload) bool {
		name, e := blockEntryName(buf, entry)
		if e != nil {
			err = e
			return false
		}
		if name == airBlockName {
			airIdx = i
		}
		p, e := blockEntryProperties(buf, entry)
		if e != nil {
			err = e
			return false
		}
		names = append(names, name)
		props = append(props, p)
		return true
	})
	if walkErr != nil {
		return nil, nil, -1, walkErr
	}
	if err != nil {
		return nil, nil, -1, err
	}
	return names, props, airIdx, nil
}

func blockEntryName(buf []byte, entry nbt.Payload) (string, error) {
	var name nbt.Payload
	if err := nbt.FindNamed(buf, entry, []nbt.Field{
		{Name: "Name", Want: nbt.TagString, Out: &name},
	}); err != nil {
		return "", err
	}
	if name.Empty() {
		return "", fmt.Errorf("block palette entry missing Name: %w", dh.ErrMalformed)
	}
	return nbt.StringValue(buf, name)
}

// blockEntryProperties decodes a palette entry's optional Properties
// compound, sorted ascending by name. Non-string property values never
// appear in vanilla Minecraft and are ignored (spec §4.4).
func blockEntryProperties(buf []byte, entry nbt.Payload) ([]Property, error) {
	var propsTag nbt.Payload
	if err := nbt.FindNamed(buf, entry, []nbt.Field{
		{Name: "Properties", Want: nbt.TagCompound, Out: &propsTag},
	}); err != nil {
		return nil, err
	}
	if propsTag.Empty() {
		return nil, nil
	}

	var out []Property
	var walkErr error
	if err := nbt.CompoundChildren(buf, propsTag, func(e nbt.CompoundEntry) bool {
		if e.Payload.Type != nbt.TagString {
			return true
		}
		v, err := nbt.StringValue(buf, e.Payload)
		if err != nil {
			walkErr = err
			return false
		}
		out = append(out, Property{Name: e.Name, Value: v})
		return true
	}); err != nil {
		return nil, err
	}
	if walkErr != nil {
		return nil, walkErr
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func decodeBiomePalette(buf []byte, palette nbt.Payload) ([]string, error) {
	_, count, err := nbt.ListLen(buf, palette)
	if err != nil {
		return nil, err
	}
	if int(count) > MaxBiomePalette {
		return nil, fmt.Errorf("biome palette size %d exceeds %d: %w", count, MaxBiomePalette, dh.ErrMalformed)
	}
	names := make([]string, 0, count)
	var walkErr error
	if err := nbt.ListElements(buf, palette, func(_ int, entry nbt.Payload) bool {
		if entry.Type != nbt.TagString {
			walkErr = fmt.Errorf("biome palette entry is %s, not String: %w", entry.Type, dh.ErrMalformed)
			return false
		}
		v, err := nbt.StringValue(buf, entry)
		if err != nil {
			walkErr = err
			return false
		}
		names = append(names, v)
		return true
	}); err != nil {
		return nil, err
	}
	if walkErr != nil {
		return nil, walkErr
	}
	return names, nil
}
