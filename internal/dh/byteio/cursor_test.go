package byteio

import "testing"

func TestCursorPrimitives(t *testing.T) {
	buf := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	c := NewCursor(buf)

	b, err := c.ReadByte()
	if err != nil || b != 0x01 {
		t.Fatalf("ReadByte: got %v, %v", b, err)
	}

	short, err := c.ReadUint16()
	if err != nil || short != 0x0203 {
		t.Fatalf("ReadUint16: got %v, %v", short, err)
	}

	c2 := NewCursor(buf)
	v64, err := c2.ReadUint64()
	if err != nil {
		t.Fatalf("ReadUint64: %v", err)
	}
	want := uint64(0x0102030405060708)
	if v64 != want {
		t.Fatalf("ReadUint64 = %#x, want %#x", v64, want)
	}
}

func TestCursorTruncated(t *testing.T) {
	c := NewCursor([]byte{0x01, 0x02})
	if _, err := c.ReadUint32(); err != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestCursorFloatBitcast(t *testing.T) {
	// 1.0f = 0x3F800000
	c := NewCursor([]byte{0x3F, 0x80, 0x00, 0x00})
	f, err := c.ReadFloat32()
	if err != nil || f != 1.0 {
		t.Fatalf("ReadFloat32: got %v, %v", f, err)
	}
}

func TestBitsForPalette(t *testing.T) {
	cases := []struct {
		size, min, want int
	}{
		{1, 4, 4},
		{2, 4, 4},
		{16, 4, 4},
		{17, 4, 5},
		{1, 1, 1},
		{2, 1, 1},
		{3, 1, 2},
	}
	for _, c := range cases {
		if got := BitsForPalette(c.size, c.min); got != c.want {
			t.Errorf("BitsForPalette(%d,%d) = %d, want %d", c.size, c.min, got, c.want)
		}
	}
}

func TestUnpackLongArrayNoSplit(t *testing.T) {
	// bitsPerIndex=4: 16 elements per long; pack indices 0..3 repeating.
	bitsPerIndex := 4
	indices := []uint16{0, 1, 2, 3, 0, 1, 2, 3, 0, 1, 2, 3, 0, 1, 2, 3}
	var word int64
	for i, v := range indices {
		word |= int64(v) << uint(i*bitsPerIndex)
	}
	out := make([]uint16, len(indices))
	ok := UnpackLongArrayNoSplit([]int64{word}, len(indices), bitsPerIndex, 4, true, out)
	if !ok {
		t.Fatal("unpack failed")
	}
	for i, v := range indices {
		if out[i] != v {
			t.Errorf("out[%d] = %d, want %d", i, out[i], v)
		}
	}
}

func TestUnpackLongArrayNoSplitPadding(t *testing.T) {
	// 5 bits per index -> 12 elements per long, 4 bits unused at top.
	bitsPerIndex := 5
	count := 12
	out := make([]uint16, count)
	var word int64
	for i := 0; i < count; i++ {
		word |= int64(i%17) << uint(i*bitsPerIndex)
	}
	ok := UnpackLongArrayNoSplit([]int64{word}, count, bitsPerIndex, 32, true, out)
	if !ok {
		t.Fatal("unpack failed")
	}
	for i := 0; i < count; i++ {
		if int(out[i]) != i%17 {
			t.Errorf("out[%d] = %d, want %d", i, out[i], i%17)
		}
	}
}

func TestUnpackLongArrayNoSplitClamp(t *testing.T) {
	out := make([]uint16, 1)
	// index 5 with palette size 3 and strict=false should clamp to 2.
	ok := UnpackLongArrayNoSplit([]int64{5}, 1, 4, 3, false, out)
	if !ok || out[0] != 2 {
		t.Fatalf("expected clamp to 2, got %v ok=%v", out[0], ok)
	}
}

func TestUnpackLongArrayNoSplitStrictRejects(t *testing.T) {
	out := make([]uint16, 1)
	if ok := UnpackLongArrayNoSplit([]int64{5}, 1, 4, 3, true, out); ok {
		t.Fatal("expected strict rejection of out-of-range index")
	}
}
