package byteio

// BitsForPalette returns the bit width needed to address paletteSize
// distinct entries, floored to minBits (4 for block states, 1 for
// biomes per spec §4.1).
func BitsForPalette(paletteSize, minBits int) int {
	bits := 0
	for (1 << bits) < paletteSize {
		bits++
	}
	if bits < minBits {
		bits = minBits
	}
	return bits
}

// UnpackLongArrayNoSplit decodes count indices of bitsPerIndex width out
// of packed, using Minecraft 1.16+'s "no split" scheme: elements are
// packed low-bit-first within each 64-bit big-endian word and never
// straddle a word boundary, so any leftover high bits in a word are
// unused padding. out must have length count; it is filled in order.
//
// If a decoded index is >= paletteSize, the index is out of range: when
// strict is true this reports ok=false at the offending position (the
// caller should treat the whole array as malformed); when strict is
// false the index is clamped to paletteSize-1, matching the spec's
// documented release-build clamp.
func UnpackLongArrayNoSplit(packed []int64, count, bitsPerIndex, paletteSize int, strict bool, out []uint16) bool {
	if bitsPerIndex <= 0 || len(out) < count {
		return false
	}
	perLong := 64 / bitsPerIndex
	mask := uint64(1)<<uint(bitsPerIndex) - 1

	needed := (count + perLong - 1) / perLong
	if len(packed) < needed {
		return false
	}

	idx := 0
	for _, word := range packed {
		w := uint64(word)
		for i := 0; i < perLong && idx < count; i++ {
			v := uint16(w & mask)
			w >>= uint(bitsPerIndex)
			if int(v) >= paletteSize {
				if strict {
					return false
				}
				v = uint16(paletteSize - 1)
			}
			out[idx] = v
			idx++
		}
	}
	return true
}
