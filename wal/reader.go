package wal

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mpalmer/logdb/redo"
)

// Reader reads records from a WAL file, either sequentially (used during
// recovery) or at a known byte offset (used for chain walks and
// read_record lookups).
type Reader struct {
	f *os.File
}

// NewReader wraps f for reading. The caller controls the file's position
// before calling Next, which always reads from the file's current position;
// ReadAt seeks to the offset it is given.
func NewReader(f *os.File) *Reader {
	return &Reader{f: f}
}

// Next reads the record starting at the file's current position. It returns
// io.EOF if the file is exhausted exactly on a record boundary, and
// io.ErrUnexpectedEOF if a partial record (the tail of an interrupted write)
// is found - both are used by Recover to decide where to truncate.
func (r *Reader) Next() (redo.Record, int64, error) {
	start, err := r.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return redo.Record{}, 0, fmt.Errorf("failed to read current offset: %w", err)
	}

	fixed := make([]byte, redo.FixedHeaderSize)
	if _, err := io.ReadFull(r.f, fixed); err != nil {
		if errors.Is(err, io.EOF) {
			return redo.Record{}, start, io.EOF
		}
		return redo.Record{}, start, io.ErrUnexpectedEOF
	}

	// payload_len is the last 4 bytes of the fixed header.
	n := redo.FixedHeaderSize - 4
	payloadLen := uint32(fixed[n]) | uint32(fixed[n+1])<<8 | uint32(fixed[n+2])<<16 | uint32(fixed[n+3])<<24

	rest := make([]byte, int(payloadLen)+4)
	if _, err := io.ReadFull(r.f, rest); err != nil {
		return redo.Record{}, start, io.ErrUnexpectedEOF
	}

	full := append(fixed, rest...)
	rec, _, err := redo.Decode(full)
	if err != nil {
		var corrupt redo.CorruptRecordError
		if errors.As(err, &corrupt) {
			corrupt.Offset = start
			err = corrupt
		}
		return redo.Record{}, start, err
	}
	return rec, start, nil
}

// ReadAt seeks to offset and decodes one record there.
func (r *Reader) ReadAt(offset int64) (redo.Record, error) {
	if _, err := r.f.Seek(offset, io.SeekStart); err != nil {
		return redo.Record{}, fmt.Errorf("failed to seek to offset %d: %w", offset, err)
	}
	rec, _, err := r.Next()
	if err != nil {
		return redo.Record{}, fmt.Errorf("failed to read record at offset %d: %w", offset, err)
	}
	return rec, nil
}

// SeekStart rewinds the reader to the beginning of the file.
func (r *Reader) SeekStart() error {
	_, err := r.f.Seek(0, io.SeekStart)
	return err
}
