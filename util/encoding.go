package util

/*
Encoding utilities for the fixed little-endian primitives used by the redo
record wire format. These do not check lengths - it is necessary to ensure
buffers passed to write functions are large enough, or a panic may result.
*/

import (
	"encoding/binary"
)

// ReadU8 reads a uint8 from src and stores it in x, returning the written length.
func ReadU8(src []byte, x *uint8) int {
	*x = src[0]
	return 1
}

// ReadU32 reads a uint32 from src and stores it in x, returning the written length.
func ReadU32(src []byte, x *uint32) int {
	*x = binary.LittleEndian.Uint32(src)
	return 4
}

// ReadU64 reads a uint64 from src and stores it in x, returning the written length.
func ReadU64(src []byte, x *uint64) int {
	*x = binary.LittleEndian.Uint64(src)
	return 8
}

// ReadBool reads a one-byte boolean flag from src and stores it in x.
func ReadBool(src []byte, x *bool) int {
	if src[0] == 1 {
		*x = true
	} else {
		*x = false
	}
	return 1
}

// U8 writes a uint8 to dst and returns the written length.
func U8(dst []byte, src uint8) int {
	dst[0] = src
	return 1
}

// U32 writes a uint32 to dst and returns the written length.
func U32(dst []byte, src uint32) int {
	binary.LittleEndian.PutUint32(dst, src)
	return 4
}

// U64 writes a uint64 to dst and returns the written length.
func U64(dst []byte, src uint64) int {
	binary.LittleEndian.PutUint64(dst, src)
	return 8
}

// Bool writes a one-byte boolean flag to dst and returns the written length.
func Bool(dst []byte, src bool) int {
	if src {
		dst[0] = 1
	} else {
		dst[0] = 0
	}
	return 1
}
