package wal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mpalmer/logdb/redo"
	"github.com/mpalmer/logdb/util/log"
)

// RecoverResult is the outcome of scanning a WAL file on open: the rebuilt
// indexes and durability watermarks for the surviving prefix, after any
// uncommitted tail has been truncated away.
type RecoverResult struct {
	PageIndex  map[redo.PageID]redo.Lsn
	LsnOffsets map[redo.Lsn]int64
	VCL        redo.Lsn
	VDL        redo.Lsn
	NextLsn    redo.Lsn
	EndOffset  int64
}

// Recover scans f from byte 0, validating each record's CRC, and truncates
// the file immediately after the last observed CPL record - discarding any
// trailing non-CPL tail, which represents an MTR that never committed.
//
// The scan stops at the first sign of trouble: a short read (the file ends
// mid-record, meaning the last write was interrupted) or a CRC mismatch
// (meaning the record itself is corrupt). Either way, everything from that
// point onward is dropped; everything before it is surviving, valid state.
func Recover(ctx context.Context, f *os.File) (*RecoverResult, error) {
	r := NewReader(f)
	if err := r.SeekStart(); err != nil {
		return nil, fmt.Errorf("failed to rewind wal for recovery: %w", err)
	}

	pageIndex := make(map[redo.PageID]redo.Lsn)
	lsnOffsets := make(map[redo.Lsn]int64)

	var vcl, vdl redo.Lsn
	var cplEndOffset int64 // byte offset immediately after the last surviving CPL record

	for {
		rec, offset, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			// Short read or CRC mismatch: the tail from this offset onward
			// is not valid surviving state. Stop scanning here; cplEndOffset
			// already reflects the last good CPL, which is where we'll
			// truncate to below.
			var corrupt redo.CorruptRecordError
			if errors.As(err, &corrupt) {
				log.Warnf(ctx, "wal recovery: corrupt record at offset %d, truncating tail", offset)
			} else {
				log.Warnf(ctx, "wal recovery: truncated record at offset %d, truncating tail", offset)
			}
			break
		}

		lsnOffsets[rec.Lsn] = offset
		pageIndex[rec.PageID] = rec.Lsn
		if rec.Lsn > vcl {
			vcl = rec.Lsn
		}
		if rec.IsCPL {
			vdl = rec.Lsn
			cplEndOffset = offset + int64(rec.EncodedSize())
		}
	}

	// Truncate to the end of the last surviving CPL record, discarding any
	// non-CPL tail (the remainder of an uncommitted MTR) and any corrupt or
	// partially-written bytes beyond it.
	if err := f.Truncate(cplEndOffset); err != nil {
		return nil, fmt.Errorf("failed to truncate wal to recovered length: %w", err)
	}

	// Rebuild the indexes strictly from the surviving (<= VDL) prefix: a
	// record with LSN > VDL belongs to a discarded, uncommitted MTR and must
	// not appear in the rebuilt page index even though we may have observed
	// it during the scan above.
	finalPageIndex := make(map[redo.PageID]redo.Lsn)
	finalLsnOffsets := make(map[redo.Lsn]int64)
	for lsn, offset := range lsnOffsets {
		if lsn > vdl {
			continue
		}
		finalLsnOffsets[lsn] = offset
	}
	for page, lsn := range pageIndex {
		if lsn > vdl {
			continue
		}
		finalPageIndex[page] = lsn
	}
	// A page's latest surviving LSN may be earlier than the one recorded
	// above if its latest write was discarded; recompute by scanning the
	// surviving offsets so each page points at its true latest surviving LSN.
	if vdl < vcl {
		finalPageIndex = make(map[redo.PageID]redo.Lsn)
		if err := r.SeekStart(); err != nil {
			return nil, fmt.Errorf("failed to rewind for index rebuild: %w", err)
		}
		for {
			rec, _, err := r.Next()
			if err != nil {
				break
			}
			if rec.Lsn > vdl {
				break
			}
			finalPageIndex[rec.PageID] = rec.Lsn
		}
	}

	vcl = vdl
	nextLsn := vdl + 1

	if err := r.SeekStart(); err != nil {
		return nil, fmt.Errorf("failed to rewind wal reader after recovery: %w", err)
	}

	log.Infow(ctx, "wal recovery complete", "vcl", vcl, "vdl", vdl, "next_lsn", nextLsn)

	return &RecoverResult{
		PageIndex:  finalPageIndex,
		LsnOffsets: finalLsnOffsets,
		VCL:        vcl,
		VDL:        vdl,
		NextLsn:    nextLsn,
		EndOffset:  cplEndOffset,
	}, nil
}
