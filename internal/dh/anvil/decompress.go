package anvil

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/OCharnyshevich/minecraft-server/internal/dh"
)

// CompressionType is the one-byte tag preceding a chunk's compressed
// NBT payload in its region frame.
type CompressionType byte

const (
	CompressionGZip      CompressionType = 1
	CompressionZlib      CompressionType = 2
	CompressionNone      CompressionType = 3
	CompressionLZ4       CompressionType = 4 // Minecraft's non-standard variant
	CompressionCustom    CompressionType = 127
	externalPayloadFlag                  = 1 << 7
)

func (c CompressionType) String() string {
	switch c &^ externalPayloadFlag {
	case CompressionGZip:
		return "gzip"
	case CompressionZlib:
		return "zlib"
	case CompressionNone:
		return "uncompressed"
	case CompressionLZ4:
		return "lz4(minecraft)"
	case CompressionCustom:
		return "custom"
	default:
		return fmt.Sprintf("CompressionType(%d)", byte(c))
	}
}

const (
	initialBufSize = 100 * 1024
	softCapBufSize = 4 * 1024 * 1024
)

// ChunkView is a borrowed reference to one chunk's decompressed NBT
// bytes. Data aliases the owning Context's internal buffer and is
// only valid until the next call to Decompress on that Context (spec
// §4.2/§5): callers needing several chunks alive at once must use
// separate Contexts.
type ChunkView struct {
	X, Z    int
	Data    []byte
	Present bool
}

// Context is a per-goroutine decompression workspace: a growable
// output buffer reused across calls, plus lazily allocated zlib/gzip
// decompressor handles reset per call rather than reallocated. The
// builder keeps a pool of these (16 by default) to parallelize across
// regions without contending on a single buffer.
type Context struct {
	buf        []byte
	zlibReader io.ReadCloser
	gzipReader *gzip.Reader
}

// NewContext allocates a Context with the spec's starting buffer size.
func NewContext() *Context {
	return &Context{buf: make([]byte, 0, initialBufSize)}
}

// growTo ensures ctx.buf has capacity for at least n bytes, doubling
// while below the soft cap and growing in soft-cap-sized steps past
// it, rather than jumping straight to n (the cap is "soft": growth
// past it is still allowed, it's just no longer doubling). The buffer
// is never shrunk afterwards.
func (ctx *Context) growTo(n int) {
	if cap(ctx.buf) >= n {
		return
	}
	newCap := cap(ctx.buf)
	if newCap == 0 {
		newCap = initialBufSize
	}
	for newCap < n {
		if newCap < softCapBufSize {
			newCap *= 2
		} else {
			newCap += softCapBufSize
		}
	}
	grown := make([]byte, len(ctx.buf), newCap)
	copy(grown, ctx.buf)
	ctx.buf = grown
}

// Decompress locates, decompresses and returns region-local chunk
// (cx, cz) from region. The returned view's Data aliases ctx's
// internal buffer (see ChunkView). A chunk with no frame on disk
// returns a Present == false view (only X and Z set) and a nil error.
func (ctx *Context) Decompress(region *Region, cx, cz int) (ChunkView, error) {
	frame, err := region.ReadFrame(cx, cz)
	if err != nil {
		return ChunkView{}, err
	}
	if frame == nil {
		return ChunkView{X: cx, Z: cz}, nil
	}

	length := binary.BigEndian.Uint32(frame[0:4])
	compType := CompressionType(frame[4])
	if compType&externalPayloadFlag != 0 {
		return ChunkView{}, fmt.Errorf("anvil: chunk (%d,%d) uses external (sidecar) payload: %w", cx, cz, dh.ErrUnsupportedCompression)
	}
	payload := frame[5 : 4+length]

	switch compType {
	case CompressionNone:
		ctx.growTo(len(payload))
		ctx.buf = ctx.buf[:len(payload)]
		copy(ctx.buf, payload)
		return ChunkView{X: cx, Z: cz, Data: ctx.buf, Present: true}, nil

	case CompressionZlib:
		if err := ctx.inflateZlib(payload); err != nil {
			return ChunkView{}, fmt.Errorf("anvil: inflating chunk (%d,%d): %w", cx, cz, err)
		}
		return ChunkView{X: cx, Z: cz, Data: ctx.buf, Present: true}, nil

	case CompressionGZip:
		if err := ctx.inflateGzip(payload); err != nil {
			return ChunkView{}, fmt.Errorf("anvil: inflating chunk (%d,%d): %w", cx, cz, err)
		}
		return ChunkView{X: cx, Z: cz, Data: ctx.buf, Present: true}, nil

	case CompressionLZ4, CompressionCustom:
		return ChunkView{}, fmt.Errorf("anvil: chunk (%d,%d) compression %s: %w", cx, cz, compType, dh.ErrUnsupportedCompression)

	default:
		return ChunkView{}, fmt.Errorf("anvil: chunk (%d,%d) unknown compression type %d: %w", cx, cz, byte(compType), dh.ErrUnsupportedCompression)
	}
}

// inflateZlib decompresses src into ctx.buf, reusing the lazily
// allocated zlib reader across calls via its Reset method instead of
// constructing a fresh inflate window each time.
func (ctx *Context) inflateZlib(src []byte) error {
	if ctx.zlibReader == nil {
		zr, err := zlib.NewReader(bytes.NewReader(src))
		if err != nil {
			return fmt.Errorf("%w: %v", dh.ErrMalformed, err)
		}
		ctx.zlibReader = zr
	} else if resetter, ok := ctx.zlibReader.(zlib.Resetter); ok {
		if err := resetter.Reset(bytes.NewReader(src), nil); err != nil {
			return fmt.Errorf("%w: %v", dh.ErrMalformed, err)
		}
	}
	return ctx.drain(ctx.zlibReader)
}

// inflateGzip mirrors inflateZlib for the GZIP compression type (1),
// which vanilla worlds almost never use but the format permits.
func (ctx *Context) inflateGzip(src []byte) error {
	if ctx.gzipReader == nil {
		gr, err := gzip.NewReader(bytes.NewReader(src))
		if err != nil {
			return fmt.Errorf("%w: %v", dh.ErrMalformed, err)
		}
		ctx.gzipReader = gr
	} else if err := ctx.gzipReader.Reset(bytes.NewReader(src)); err != nil {
		return fmt.Errorf("%w: %v", dh.ErrMalformed, err)
	}
	return ctx.drain(ctx.gzipReader)
}

// drain reads r to completion into ctx.buf, growing the buffer through
// growTo (spec §4.2's "grow x2 on insufficient space, retry"; doubling
// up to the soft cap) whenever a read fills the current capacity.
func (ctx *Context) drain(r io.Reader) error {
	ctx.buf = ctx.buf[:0]
	for {
		if len(ctx.buf) == cap(ctx.buf) {
			ctx.growTo(cap(ctx.buf) + 1)
		}
		n, err := r.Read(ctx.buf[len(ctx.buf):cap(ctx.buf)])
		ctx.buf = ctx.buf[:len(ctx.buf)+n]
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", dh.ErrMalformed, err)
		}
	}
}
