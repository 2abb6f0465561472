package palette

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/OCharnyshevich/minecraft-server/internal/dh/nbt"
	"github.com/OCharnyshevich/minecraft-server/internal/dh/section"
)

func TestCanonicalKey(t *testing.T) {
	got := CanonicalKey("minecraft:plains", "minecraft:stairs", []Property{
		{Name: "facing", Value: "north"},
		{Name: "half", Value: "bottom"},
	})
	want := "minecraft:plains_DH-BSW_minecraft:stairs_STATE_{facing:north}{half:bottom}"
	if got != want {
		t.Fatalf("CanonicalKey = %q, want %q", got, want)
	}
}

func TestCanonicalKeyNoProperties(t *testing.T) {
	got := CanonicalKey("minecraft:desert", "minecraft:sand", nil)
	want := "minecraft:desert_DH-BSW_minecraft:sand_STATE_"
	if got != want {
		t.Fatalf("CanonicalKey = %q, want %q", got, want)
	}
}

func TestMappingInternDeduplicates(t *testing.T) {
	m := NewMapping()
	a := m.Intern("foo")
	b := m.Intern("bar")
	c := m.Intern("foo")
	if a != c {
		t.Fatalf("expected repeated Intern of same key to return same id: %d != %d", a, c)
	}
	if a == b {
		t.Fatal("expected distinct keys to get distinct ids")
	}
	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}
	if m.String(a) != "foo" || m.String(b) != "bar" {
		t.Fatal("String() did not round-trip interned keys")
	}
}

func TestMappingMergeFromPreservesIdentity(t *testing.T) {
	src := NewMapping()
	src.Intern("x")
	src.Intern("y")

	dst := NewMapping()
	dst.Intern("y") // already present in dst under a different id

	remap := dst.MergeFrom(src)
	if len(remap) != 2 {
		t.Fatalf("remap len = %d, want 2", len(remap))
	}
	if dst.String(remap[0]) != "x" {
		t.Fatalf("remap[0] -> %q, want x", dst.String(remap[0]))
	}
	if dst.String(remap[1]) != "y" {
		t.Fatalf("remap[1] -> %q, want y", dst.String(remap[1]))
	}
	if remap[1] != 0 {
		t.Fatalf("expected 'y' to resolve to dst's existing id 0, got %d", remap[1])
	}
}

// --- minimal NBT fixture builder -----------------------------------
//
// Builds one root compound holding named "block_states" and "biomes"
// compounds (exactly the shape section.parsePaletted reads), so the
// resulting Payload spans can be handed to Flatten the same way
// section.Bundle.Parse produces them.

type nbtBuf struct{ bytes.Buffer }

func (b *nbtBuf) tag(t byte, name string) {
	b.WriteByte(t)
	binary.Write(&b.Buffer, binary.BigEndian, uint16(len(name)))
	b.WriteString(name)
}
func (b *nbtBuf) beginCompound(name string) { b.tag(10, name) }
func (b *nbtBuf) endCompound()              { b.WriteByte(0) }
func (b *nbtBuf) writeString(name, v string) {
	b.tag(8, name)
	binary.Write(&b.Buffer, binary.BigEndian, uint16(len(v)))
	b.WriteString(v)
}
func (b *nbtBuf) beginList(name string, elemType byte, count int32) {
	b.tag(9, name)
	b.WriteByte(elemType)
	binary.Write(&b.Buffer, binary.BigEndian, count)
}

func buildFixture(t *testing.T) []byte {
	t.Helper()
	var b nbtBuf
	b.beginCompound("") // root

	b.beginCompound("block_states")
	b.beginList("palette", 10, 3)
	// minecraft:air
	b.writeString("Name", "minecraft:air")
	b.endCompound()
	// minecraft:stone
	b.writeString("Name", "minecraft:stone")
	b.endCompound()
	// minecraft:stairs with two properties, unsorted in the source
	b.writeString("Name", "minecraft:stairs")
	b.beginCompound("Properties")
	b.writeString("half", "bottom")
	b.writeString("facing", "north")
	b.endCompound() // Properties
	b.endCompound() // stairs entry
	b.endCompound() // block_states

	b.beginCompound("biomes")
	b.beginList("palette", 8, 2)
	binary.Write(&b.Buffer, binary.BigEndian, uint16(len("minecraft:plains")))
	b.WriteString("minecraft:plains")
	binary.Write(&b.Buffer, binary.BigEndian, uint16(len("minecraft:desert")))
	b.WriteString("minecraft:desert")
	b.endCompound() // biomes

	b.endCompound() // root
	return b.Bytes()
}

func TestFlatten(t *testing.T) {
	buf := buildFixture(t)

	root, err := nbt.RootCompound(buf)
	if err != nil {
		t.Fatalf("RootCompound: %v", err)
	}
	var blockStates, biomes nbt.Payload
	if err := nbt.FindNamed(buf, root, []nbt.Field{
		{Name: "block_states", Want: nbt.TagCompound, Out: &blockStates},
		{Name: "biomes", Want: nbt.TagCompound, Out: &biomes},
	}); err != nil {
		t.Fatalf("FindNamed: %v", err)
	}

	var blockPalette, biomePalette nbt.Payload
	if err := nbt.FindNamed(buf, blockStates, []nbt.Field{{Name: "palette", Want: nbt.TagList, Out: &blockPalette}}); err != nil {
		t.Fatalf("FindNamed block_states: %v", err)
	}
	if err := nbt.FindNamed(buf, biomes, []nbt.Field{{Name: "palette", Want: nbt.TagList, Out: &biomePalette}}); err != nil {
		t.Fatalf("FindNamed biomes: %v", err)
	}

	sec := &section.View{Y: 4, BlockPalette: blockPalette, BiomePalette: biomePalette}
	mapping := NewMapping()
	table, err := Flatten(buf, sec, mapping, nil)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}

	if table.BlockCount != 3 {
		t.Fatalf("BlockCount = %d, want 3", table.BlockCount)
	}
	if table.BiomeCount != 2 {
		t.Fatalf("BiomeCount = %d, want 2", table.BiomeCount)
	}
	if table.AirIndex != 0 {
		t.Fatalf("AirIndex = %d, want 0", table.AirIndex)
	}

	airID := table.Get(0, 0)
	if mapping.String(airID) != "minecraft:plains_DH-BSW_minecraft:air_STATE_" {
		t.Fatalf("unexpected air key: %q", mapping.String(airID))
	}
	stairsID := table.Get(1, 2)
	wantStairs := "minecraft:desert_DH-BSW_minecraft:stairs_STATE_{facing:north}{half:bottom}"
	if mapping.String(stairsID) != wantStairs {
		t.Fatalf("unexpected stairs key: %q, want %q", mapping.String(stairsID), wantStairs)
	}
	if mapping.Len() != table.BiomeCount*table.BlockCount {
		t.Fatalf("mapping has %d entries, want %d (no duplicate keys across biomes)", mapping.Len(), table.BiomeCount*table.BlockCount)
	}
}

func TestAirTable(t *testing.T) {
	m := NewMapping()
	table := AirTable(m)
	if table.BiomeCount != 1 || table.BlockCount != 1 {
		t.Fatalf("AirTable shape = %dx%d, want 1x1", table.BiomeCount, table.BlockCount)
	}
	if table.AirIndex != 0 {
		t.Fatalf("AirIndex = %d, want 0", table.AirIndex)
	}
	id := table.Get(0, 0)
	want := "minecraft:the_void_DH-BSW_minecraft:air_STATE_"
	if m.String(id) != want {
		t.Fatalf("AirTable key = %q, want %q", m.String(id), want)
	}
}

func TestAirTableReusesMappingEntry(t *testing.T) {
	m := NewMapping()
	a := AirTable(m)
	b := AirTable(m)
	if a.Get(0, 0) != b.Get(0, 0) {
		t.Fatal("two AirTable calls on the same mapping should intern the same id")
	}
	if m.Len() != 1 {
		t.Fatalf("mapping has %d entries, want 1", m.Len())
	}
}

func TestFlattenRejectsOversizedPalette(t *testing.T) {
	var b nbtBuf
	b.beginCompound("")
	b.beginCompound("block_states")
	b.beginList("palette", 10, MaxBlockPalette+1)
	for i := 0; i < MaxBlockPalette+1; i++ {
		b.writeString("Name", "minecraft:stone")
		b.endCompound()
	}
	b.endCompound() // block_states
	b.beginCompound("biomes")
	b.beginList("palette", 8, 1)
	binary.Write(&b.Buffer, binary.BigEndian, uint16(len("minecraft:plains")))
	b.WriteString("minecraft:plains")
	b.endCompound()
	b.endCompound() // root
	buf := b.Bytes()

	root, err := nbt.RootCompound(buf)
	if err != nil {
		t.Fatalf("RootCompound: %v", err)
	}
	var blockStates, biomes nbt.Payload
	if err := nbt.FindNamed(buf, root, []nbt.Field{
		{Name: "block_states", Want: nbt.TagCompound, Out: &blockStates},
		{Name: "biomes", Want: nbt.TagCompound, Out: &biomes},
	}); err != nil {
		t.Fatalf("FindNamed: %v", err)
	}
	var blockPalette, biomePalette nbt.Payload
	nbt.FindNamed(buf, blockStates, []nbt.Field{{Name: "palette", Want: nbt.TagList, Out: &blockPalette}})
	nbt.FindNamed(buf, biomes, []nbt.Field{{Name: "palette", Want: nbt.TagList, Out: &biomePalette}})

	sec := &section.View{Y: 0, BlockPalette: blockPalette, BiomePalette: biomePalette}
	if _, err := Flatten(buf, sec, NewMapping(), nil); err == nil {
		t.Fatal("expected Flatten to reject an oversized block palette")
	}
}
