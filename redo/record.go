// Package redo defines the on-disk redo record: the atomic unit of mutation
// that the write-ahead log stores and that page materialization replays.
package redo

// PageSize is the default page size in bytes. Configurable per engine via
// storage.WithPageSize; the storage and compute configs default to this same
// value when no override is given.
const PageSize = 4096

// Lsn is a log sequence number. Zero means "none" - it is never assigned to
// a real record.
type Lsn = uint64

// PageID identifies a fixed-size page.
type PageID = uint64

// Record is one redo record: a byte patch targeting a single page, plus the
// bookkeeping fields needed to walk the per-page chain and delimit MTRs.
type Record struct {
	Lsn     Lsn
	PrevLsn Lsn
	PageID  PageID
	Offset  uint32
	IsCPL   bool
	Payload []byte
}

// FixedHeaderSize is the size in bytes of a Record's fields excluding the
// payload and trailing CRC: lsn(8) + prev_lsn(8) + page_id(8) + offset(4) +
// is_cpl(1) + payload_len(4).
const FixedHeaderSize = 8 + 8 + 8 + 4 + 1 + 4

// EncodedSize returns the number of bytes Encode will produce for r.
func (r Record) EncodedSize() int {
	return FixedHeaderSize + len(r.Payload) + 4 // + crc32
}

// Overflows reports whether writing Payload at Offset would run past
// pageSize.
func (r Record) Overflows(pageSize int) bool {
	return int(r.Offset)+len(r.Payload) > pageSize
}
