package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz/lzma"

	"github.com/OCharnyshevich/minecraft-server/internal/dh"
	"github.com/OCharnyshevich/minecraft-server/internal/dh/lod"
)

// Magic-detection constants for the LZ4 frame and zstd frame formats.
// Nothing in this module reads them: persistence always tags
// compression_mode explicitly rather than sniffing (spec §6).
var (
	magicZstd = []byte{0x28, 0xB5, 0x2F, 0xFD}
	magicLZ4  = []byte{0x04, 0x22, 0x4D, 0x18}
)

// Context holds the reusable encoder/decoder handles a recompression
// pipeline needs, mirroring spec §4.7's "compression context retained
// ... for the lifetime of the LOD". One Context is meant to be reused
// across many Recompress/ToRaw calls (typically one per worker
// goroutine), not allocated per call.
type Context struct {
	lz4Writer *lz4.Writer
	lz4Reader *lz4.Reader

	zstdEnc *zstd.Encoder
	zstdDec *zstd.Decoder

	scratch bytes.Buffer
}

// NewContext returns an empty, ready-to-use Context.
func NewContext() *Context { return &Context{} }

// Close releases the zstd encoder/decoder goroutines. lz4's
// Writer/Reader hold no background resources and need no closing.
func (c *Context) Close() {
	if c.zstdEnc != nil {
		c.zstdEnc.Close()
	}
	if c.zstdDec != nil {
		c.zstdDec.Close()
	}
}

// ToRaw re-inflates l's column stream to lod.ModeRaw in place. Its
// signature matches lod.Inflate, so callers wire it directly into
// lod.Mip without lod ever importing this package (see DESIGN.md).
func (c *Context) ToRaw(l *lod.LOD) error {
	return c.Recompress(l, lod.ModeRaw)
}

// Recompress converts l's column stream to target, always decoding to
// the raw intermediate first when the current mode differs (spec
// §4.7's "switching modes goes through the uncompressed intermediate"
// rule) even when decoding straight to raw.
func (c *Context) Recompress(l *lod.LOD, target lod.Mode) error {
	if l.CompressionMode == target {
		return nil
	}

	raw, err := c.decodeToRaw(l.Columns, l.CompressionMode)
	if err != nil {
		return fmt.Errorf("compress: decoding column stream (%s): %w", l.CompressionMode, err)
	}

	if target == lod.ModeRaw {
		l.Columns = raw
		l.CompressionMode = lod.ModeRaw
		return nil
	}

	encoded, err := c.encodeFromRaw(raw, target)
	if err != nil {
		return fmt.Errorf("compress: encoding column stream (%s): %w", target, err)
	}
	l.Columns = encoded
	l.CompressionMode = target
	return nil
}

func (c *Context) decodeToRaw(data []byte, mode lod.Mode) ([]byte, error) {
	switch mode {
	case lod.ModeRaw:
		return data, nil
	case lod.ModeLZ4:
		return c.decodeLZ4(data)
	case lod.ModeLZMA:
		return c.decodeLZMA(data)
	case lod.ModeZstd:
		return c.decodeZstd(data)
	default:
		return nil, fmt.Errorf("compress: unknown compression mode %s: %w", mode, dh.ErrUnsupportedCompression)
	}
}

func (c *Context) encodeFromRaw(data []byte, mode lod.Mode) ([]byte, error) {
	switch mode {
	case lod.ModeRaw:
		return data, nil
	case lod.ModeLZ4:
		return c.encodeLZ4(data)
	case lod.ModeLZMA:
		return c.encodeLZMA(data)
	case lod.ModeZstd:
		return c.encodeZstd(data)
	default:
		return nil, fmt.Errorf("compress: unknown compression mode %s: %w", mode, dh.ErrUnsupportedCompression)
	}
}

func (c *Context) encodeLZ4(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if c.lz4Writer == nil {
		c.lz4Writer = lz4.NewWriter(&buf)
	} else {
		c.lz4Writer.Reset(&buf)
	}
	if _, err := c.lz4Writer.Write(data); err != nil {
		return nil, err
	}
	if err := c.lz4Writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Context) decodeLZ4(data []byte) ([]byte, error) {
	if c.lz4Reader == nil {
		c.lz4Reader = lz4.NewReader(bytes.NewReader(data))
	} else {
		c.lz4Reader.Reset(bytes.NewReader(data))
	}
	c.scratch.Reset()
	if _, err := io.Copy(&c.scratch, c.lz4Reader); err != nil {
		return nil, err
	}
	out := make([]byte, c.scratch.Len())
	copy(out, c.scratch.Bytes())
	return out, nil
}

// encodeLZMA and decodeLZMA use LZMA2 framing (spec §4.7) via
// ulikunitz/xz/lzma. Unlike LZ4 and zstd, this package's Writer2/
// Reader2 have no Reset method, so a fresh one is constructed per
// call; the spec's "context retained" guidance is honored for LZ4 and
// zstd, the two codecs that actually support it.
func (c *Context) encodeLZMA(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := lzma.NewWriter2(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Context) decodeLZMA(data []byte) ([]byte, error) {
	r, err := lzma.NewReader2(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	c.scratch.Reset()
	if _, err := io.Copy(&c.scratch, r); err != nil {
		return nil, err
	}
	out := make([]byte, c.scratch.Len())
	copy(out, c.scratch.Bytes())
	return out, nil
}

func (c *Context) encodeZstd(data []byte) ([]byte, error) {
	if c.zstdEnc == nil {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		c.zstdEnc = enc
	}
	return c.zstdEnc.EncodeAll(data, nil), nil
}

func (c *Context) decodeZstd(data []byte) ([]byte, error) {
	if c.zstdDec == nil {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		c.zstdDec = dec
	}
	return c.zstdDec.DecodeAll(data, nil)
}
