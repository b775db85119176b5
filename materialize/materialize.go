// Package materialize builds a page's current bytes by replaying its redo
// chain onto a zeroed buffer.
package materialize

import "github.com/mpalmer/logdb/redo"

// Page replays records (which must be in ascending LSN order and all target
// the same page) onto a zeroed buffer of pageSize bytes. Later records
// overwrite earlier ones byte-for-byte at their offsets. An empty chain
// yields an all-zero page.
func Page(pageSize int, records []redo.Record) ([]byte, error) {
	buf := make([]byte, pageSize)
	for _, rec := range records {
		if rec.Overflows(pageSize) {
			return nil, redo.PageOverflowError{PageID: rec.PageID, Offset: rec.Offset, Len: len(rec.Payload)}
		}
		copy(buf[rec.Offset:int(rec.Offset)+len(rec.Payload)], rec.Payload)
	}
	return buf, nil
}
