package materialize_test

import (
	"testing"

	"github.com/mpalmer/logdb/materialize"
	"github.com/mpalmer/logdb/redo"
	"github.com/stretchr/testify/require"
)

func rec(lsn, prevLsn, pageID uint64, offset uint32, payload []byte) redo.Record {
	return redo.Record{Lsn: lsn, PrevLsn: prevLsn, PageID: pageID, Offset: offset, IsCPL: true, Payload: payload}
}

func TestPage_SingleRecord(t *testing.T) {
	records := []redo.Record{rec(1, 0, 1, 0, []byte{0xAA, 0xBB, 0xCC})}
	page, err := materialize.Page(4096, records)
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0xBB, 0xCC}, page[:3])
	require.Equal(t, byte(0), page[3])
}

func TestPage_LaterRecordsOverwriteEarlier(t *testing.T) {
	records := []redo.Record{
		rec(1, 0, 1, 0, []byte{0x11, 0x22}),
		rec(2, 1, 1, 4, []byte{0x33, 0x44}),
		rec(3, 2, 1, 0, []byte{0xFF}),
	}
	page, err := materialize.Page(4096, records)
	require.NoError(t, err)
	require.Equal(t, byte(0xFF), page[0])
	require.Equal(t, byte(0x22), page[1])
	require.Equal(t, byte(0x33), page[4])
	require.Equal(t, byte(0x44), page[5])
}

func TestPage_WriteAtEndOfPage(t *testing.T) {
	records := []redo.Record{rec(1, 0, 1, 4094, []byte{0xEE, 0xFF})}
	page, err := materialize.Page(4096, records)
	require.NoError(t, err)
	require.Equal(t, byte(0xEE), page[4094])
	require.Equal(t, byte(0xFF), page[4095])
}

func TestPage_OverflowRejected(t *testing.T) {
	records := []redo.Record{rec(1, 0, 1, 4095, []byte{0xAA, 0xBB})}
	_, err := materialize.Page(4096, records)
	require.Error(t, err)
	require.ErrorIs(t, err, redo.ErrPageOverflow)
}

func TestPage_EmptyChainReturnsZeroedPage(t *testing.T) {
	page, err := materialize.Page(4096, nil)
	require.NoError(t, err)
	for _, b := range page {
		require.Equal(t, byte(0), b)
	}
}
