package compute_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mpalmer/logdb/compute"
	"github.com/mpalmer/logdb/redo"
	"github.com/mpalmer/logdb/storage"
	"github.com/stretchr/testify/require"
)

func newStorage(t *testing.T) *storage.Engine {
	t.Helper()
	dir := t.TempDir()
	e, err := storage.Open(context.Background(), filepath.Join(dir, "test.wal"), storage.WithWarmCache(false))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestNode_BasicRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newStorage(t)
	a := compute.NewNode(st)

	err := a.Put(ctx, 1, 0, []byte("Hello"))
	require.NoError(t, err)
	require.Equal(t, redo.Lsn(1), a.ReadPoint())

	page, err := a.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []byte{0x48, 0x65, 0x6c, 0x6c, 0x6f}, page[:5])
	require.Equal(t, byte(0), page[5])
}

func TestNode_Overwrite(t *testing.T) {
	ctx := context.Background()
	st := newStorage(t)
	a := compute.NewNode(st)

	require.NoError(t, a.Put(ctx, 1, 0, []byte("Hello")))
	require.NoError(t, a.Put(ctx, 1, 0, []byte("World")))

	page, err := a.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []byte("World"), page[:5])
}

func TestNode_CrossNodeIsolation(t *testing.T) {
	ctx := context.Background()
	st := newStorage(t)
	a := compute.NewNode(st)
	b := compute.NewNode(st)

	require.NoError(t, a.Put(ctx, 1, 0, []byte("Hello")))
	require.Equal(t, redo.Lsn(1), a.ReadPoint())

	require.Equal(t, redo.Lsn(0), b.ReadPoint())
	_, err := b.Get(ctx, 1)
	require.ErrorIs(t, err, redo.ErrNotFound)

	b.Refresh(ctx)
	require.Equal(t, redo.Lsn(1), b.ReadPoint())

	page, err := b.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []byte("Hello"), page[:5])
}

// Reads through the underlying storage engine at different LSNs return the
// page as it stood at each point in its history.
func TestNode_VersionedRead(t *testing.T) {
	ctx := context.Background()
	st := newStorage(t)

	lsn1, err := st.AppendMTR(ctx, []redo.Record{{PageID: 2, Offset: 0, IsCPL: true, Payload: []byte("aaa")}})
	require.NoError(t, err)
	_, err = st.AppendMTR(ctx, []redo.Record{{PageID: 2, Offset: 0, IsCPL: true, Payload: []byte("bbb")}})
	require.NoError(t, err)
	_, err = st.AppendMTR(ctx, []redo.Record{{PageID: 2, Offset: 0, IsCPL: true, Payload: []byte("ccc")}})
	require.NoError(t, err)

	page, err := st.ReadPageAt(ctx, 2, lsn1+1)
	require.NoError(t, err)
	require.Equal(t, []byte("bbb"), page[:3])
}

// Read-your-writes holds across multiple MTRs to different pages from the
// same node.
func TestNode_MultiPageWrites(t *testing.T) {
	ctx := context.Background()
	st := newStorage(t)
	a := compute.NewNode(st)

	require.NoError(t, a.Put(ctx, 1, 0, []byte{0xAA}))
	require.NoError(t, a.Put(ctx, 2, 0, []byte{0xBB}))

	p1, err := a.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, byte(0xAA), p1[0])

	p2, err := a.Get(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, byte(0xBB), p2[0])
}

func TestNode_RefreshIsMonotonic(t *testing.T) {
	ctx := context.Background()
	st := newStorage(t)
	a := compute.NewNode(st)
	b := compute.NewNode(st)

	require.NoError(t, a.Put(ctx, 1, 0, []byte{0x01}))
	b.Refresh(ctx)
	first := b.ReadPoint()
	require.Equal(t, redo.Lsn(1), first)

	// Refreshing again with no new writes must not move the read point
	// backward (or at all).
	b.Refresh(ctx)
	require.Equal(t, first, b.ReadPoint())
}

func TestNode_GroupedMTR(t *testing.T) {
	ctx := context.Background()
	st := newStorage(t)
	a := compute.NewNode(st)

	require.NoError(t, a.BeginMTR())
	require.NoError(t, a.Stage(ctx, 1, 0, []byte{0x01}))
	require.NoError(t, a.Stage(ctx, 1, 4, []byte{0x02}))
	lsn, err := a.CommitMTR(ctx)
	require.NoError(t, err)
	require.Equal(t, redo.Lsn(2), lsn, "grouped mtr consumes one lsn per record, CPL is the last")

	page, err := a.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, byte(0x01), page[0])
	require.Equal(t, byte(0x02), page[4])
}

func TestNode_AbortMTRConsumesNoLsn(t *testing.T) {
	ctx := context.Background()
	st := newStorage(t)
	a := compute.NewNode(st)

	require.NoError(t, a.Stage(ctx, 1, 0, []byte{0x01}))
	a.AbortMTR()

	vcl, vdl := st.Durability(ctx)
	require.Equal(t, redo.Lsn(0), vcl)
	require.Equal(t, redo.Lsn(0), vdl)

	err := a.Put(ctx, 1, 0, []byte{0x02})
	require.NoError(t, err)
	require.Equal(t, redo.Lsn(1), a.ReadPoint(), "lsn assignment resumes at 1, unaffected by the aborted mtr")
}
