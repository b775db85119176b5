package wal_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mpalmer/logdb/redo"
	"github.com/mpalmer/logdb/wal"
	"github.com/stretchr/testify/require"
)

func openTempFile(t *testing.T) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wal")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestWriter_AppendReturnsSequentialOffsets(t *testing.T) {
	f := openTempFile(t)
	w := wal.OpenWriter(f, 0)

	records := []redo.Record{
		{Lsn: 1, PageID: 1, IsCPL: false, Payload: []byte{0x01}},
		{Lsn: 2, PageID: 1, PrevLsn: 1, IsCPL: true, Payload: []byte{0x02}},
	}
	offsets, err := w.Append(records)
	require.NoError(t, err)
	require.Len(t, offsets, 2)
	require.Equal(t, int64(0), offsets[0])
	require.Equal(t, int64(records[0].EncodedSize()), offsets[1])
	require.Equal(t, offsets[1]+int64(records[1].EncodedSize()), w.Offset())
}

func TestWriter_AppendFromNonZeroInitialOffset(t *testing.T) {
	f := openTempFile(t)
	first := redo.Record{Lsn: 1, PageID: 1, IsCPL: true, Payload: []byte{0x01}}
	buf := make([]byte, first.EncodedSize())
	n := redo.Encode(buf, first)
	_, err := f.Write(buf[:n])
	require.NoError(t, err)

	w := wal.OpenWriter(f, int64(n))
	offsets, err := w.Append([]redo.Record{{Lsn: 2, PrevLsn: 1, PageID: 1, IsCPL: true, Payload: []byte{0x02}}})
	require.NoError(t, err)
	require.Equal(t, int64(n), offsets[0])
}
