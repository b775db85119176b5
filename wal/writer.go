// Package wal implements the append-only write-ahead log: writing
// pre-assigned records to disk, reading them back sequentially or at a
// known offset, and recovering a consistent prefix on open after a crash.
package wal

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mpalmer/logdb/redo"
)

// Writer appends already-LSN-assigned records to the WAL file. LSN
// assignment and prev_lsn fixup are the storage engine's responsibility;
// the writer's only job is serialization, the write syscall, and fsync.
type Writer struct {
	f      *os.File
	offset int64
	mtx    sync.Mutex
}

// OpenWriter opens the WAL file for appending, positioned at initialOffset
// (the byte length of the surviving prefix after recovery).
func OpenWriter(f *os.File, initialOffset int64) *Writer {
	return &Writer{f: f, offset: initialOffset}
}

// Append writes records sequentially to the file and fsyncs once after the
// whole batch has been written. It returns the file offset at which each
// record begins, in the same order as records, for index bookkeeping by the
// caller.
func (w *Writer) Append(records []redo.Record) (offsets []int64, err error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if _, err := w.f.Seek(w.offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to wal end: %w", err)
	}

	offsets = make([]int64, len(records))
	buf := make([]byte, 0, 256)
	for i, r := range records {
		size := r.EncodedSize()
		if cap(buf) < size {
			buf = make([]byte, size)
		} else {
			buf = buf[:size]
		}
		n := redo.Encode(buf, r)
		offsets[i] = w.offset
		written, werr := w.f.Write(buf[:n])
		w.offset += int64(written)
		if werr != nil {
			return offsets, fmt.Errorf("failed to write record: %w", werr)
		}
	}
	if err := w.f.Sync(); err != nil {
		return offsets, fmt.Errorf("failed to fsync wal file: %w", err)
	}
	return offsets, nil
}

// Offset returns the current end-of-file write position.
func (w *Writer) Offset() int64 {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	return w.offset
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	return w.f.Close()
}
