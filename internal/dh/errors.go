// Package dh holds the error vocabulary shared by the core subsystems:
// Anvil decoding, section parsing, palette flattening and LOD
// building/mipping return these sentinels, wrapped with fmt.Errorf at
// each boundary so errors.Is keeps working through the wrap. Byte
// reading and NBT traversal return their own errors instead
// (byteio.ErrTruncated, nbt.ErrWrongType, nbt's formatted errors);
// callers pass those up with context but do not convert them into
// ErrMalformed.
package dh

import "errors"

// Error kinds from spec §7. Callers should use errors.Is, never string
// comparison, since every boundary wraps these with additional context.
var (
	ErrInvalidArgument        = errors.New("dh: invalid argument")
	ErrAlloc                  = errors.New("dh: allocation failed")
	ErrMalformed              = errors.New("dh: malformed data")
	ErrIO                     = errors.New("dh: io error")
	ErrNotExist               = errors.New("dh: not exist")
	ErrDiskFull               = errors.New("dh: disk full")
	ErrUnsupportedCompression = errors.New("dh: unsupported compression")
	ErrInsufficientSpace      = errors.New("dh: insufficient space")
)
