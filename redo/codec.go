package redo

import (
	"hash/crc32"

	"github.com/mpalmer/logdb/util"
)

/*
Encode lays out a record exactly as specified by the wire format:

    u64  lsn
    u64  prev_lsn
    u64  page_id
    u32  offset
    u8   is_cpl        (0 or 1)
    u32  payload_len
    [payload_len bytes] payload
    u32  crc32         (IEEE, over all preceding bytes of this record)

There is no magic, no version, and no framing around the record - the CRC at
the tail is the only integrity check, and it covers every byte written
before it.
*/

// Encode serializes r into dst, which must be at least r.EncodedSize() bytes
// long, and returns the number of bytes written.
func Encode(dst []byte, r Record) int {
	offset := 0
	offset += util.U64(dst[offset:], r.Lsn)
	offset += util.U64(dst[offset:], r.PrevLsn)
	offset += util.U64(dst[offset:], r.PageID)
	offset += util.U32(dst[offset:], r.Offset)
	offset += util.Bool(dst[offset:], r.IsCPL)
	offset += util.U32(dst[offset:], uint32(len(r.Payload)))
	offset += copy(dst[offset:], r.Payload)

	crc := crc32.ChecksumIEEE(dst[:offset])
	offset += util.U32(dst[offset:], crc)
	return offset
}

// Decode deserializes a record from src, validating its CRC. It returns the
// record, the number of bytes consumed, and an error wrapping
// ErrCorruptRecord if the checksum does not match. src must contain a full
// encoded record; callers are responsible for having read at least
// FixedHeaderSize bytes to learn payload_len before reading the rest (see
// wal.Reader.Next, which does this in two passes to avoid over-reading).
func Decode(src []byte) (Record, int, error) {
	var r Record
	offset := 0
	offset += util.ReadU64(src[offset:], &r.Lsn)
	offset += util.ReadU64(src[offset:], &r.PrevLsn)
	offset += util.ReadU64(src[offset:], &r.PageID)
	offset += util.ReadU32(src[offset:], &r.Offset)
	offset += util.ReadBool(src[offset:], &r.IsCPL)
	var payloadLen uint32
	offset += util.ReadU32(src[offset:], &payloadLen)
	r.Payload = src[offset : offset+int(payloadLen)]
	offset += int(payloadLen)

	computed := crc32.ChecksumIEEE(src[:offset])
	var crc uint32
	offset += util.ReadU32(src[offset:], &crc)
	if crc != computed {
		return Record{}, offset, CorruptRecordError{Expected: crc, Actual: computed}
	}
	return r, offset, nil
}
