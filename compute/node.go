// Package compute implements the compute node: a per-node buffer pool, read
// point, and MTR builder sitting in front of a shared storage.API.
package compute

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mpalmer/logdb/redo"
	"github.com/mpalmer/logdb/storage"
	"github.com/mpalmer/logdb/util/log"
)

// bufEntry is one buffer-pool slot: a page image and the LSN it was read as
// of.
type bufEntry struct {
	bytes []byte
	asOf  redo.Lsn
}

type stagedWrite struct {
	pageID  redo.PageID
	offset  uint32
	payload []byte
}

// Node is a compute node sharing one storage engine with other nodes. Its
// buffer pool and read point are its own; nothing here is visible to any
// other node until that node calls Refresh.
type Node struct {
	id       string
	storage  storage.API
	pageSize int
	logger   *log.Logger

	bufferPool map[redo.PageID]bufEntry
	readPoint  redo.Lsn

	pending []stagedWrite
}

// NewNode returns a new compute node over the given storage engine, with
// read point 0 (sees nothing until the first commit or Refresh).
func NewNode(st storage.API, opts ...Option) *Node {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Node{
		id:         uuid.NewString(),
		storage:    st,
		pageSize:   cfg.pageSize,
		logger:     cfg.logger,
		bufferPool: make(map[redo.PageID]bufEntry),
	}
}

// ID returns this node's identity, used to attribute log lines and trace
// events when multiple nodes share one engine.
func (n *Node) ID() string {
	return n.id
}

// ReadPoint returns the LSN at which this node currently observes storage.
func (n *Node) ReadPoint() redo.Lsn {
	return n.readPoint
}

// Put stages a single write and commits it immediately as a one-record MTR.
// This is the implicit-commit path this spec chooses as its default; see
// BeginMTR/Stage/CommitMTR for the grouped extension.
func (n *Node) Put(ctx context.Context, pageID redo.PageID, offset uint32, data []byte) error {
	if err := n.Stage(ctx, pageID, offset, data); err != nil {
		return err
	}
	_, err := n.CommitMTR(ctx)
	return err
}

// BeginMTR asserts the node has no in-progress MTR and clears any stale
// staged state. It is a no-op transition (Empty -> Empty) provided mainly
// for callers that want an explicit start marker before a grouped Stage
// sequence.
func (n *Node) BeginMTR() error {
	if len(n.pending) > 0 {
		return errors.New("compute: cannot begin mtr while one is already staged")
	}
	n.pending = nil
	return nil
}

// Stage appends one write to the pending MTR, validating that it fits
// within a page. The MTR transitions from Empty to Staged on the first
// call, and remains Staged on subsequent calls.
func (n *Node) Stage(_ context.Context, pageID redo.PageID, offset uint32, data []byte) error {
	if int(offset)+len(data) > n.pageSize {
		return redo.PageOverflowError{PageID: pageID, Offset: offset, Len: len(data)}
	}
	n.pending = append(n.pending, stagedWrite{pageID: pageID, offset: offset, payload: data})
	return nil
}

// CommitMTR marks the last staged write as the MTR's CPL, appends the whole
// batch to storage, and on success invalidates every touched page in this
// node's buffer pool and advances the read point to the new commit LSN.
// LSN assignment happens here, not at Stage time; an aborted MTR never
// reaches this call and so never consumes an LSN.
func (n *Node) CommitMTR(ctx context.Context) (redo.Lsn, error) {
	if len(n.pending) == 0 {
		return 0, redo.ErrInvalidMtr
	}

	records := make([]redo.Record, len(n.pending))
	for i, w := range n.pending {
		records[i] = redo.Record{PageID: w.pageID, Offset: w.offset, Payload: w.payload}
	}
	records[len(records)-1].IsCPL = true

	commitLsn, err := n.storage.AppendMTR(ctx, records)
	if err != nil {
		return 0, fmt.Errorf("compute node %s: commit failed: %w", n.id, err)
	}

	for _, w := range n.pending {
		delete(n.bufferPool, w.pageID)
	}
	n.pending = nil
	n.readPoint = commitLsn

	n.logger.Debugw(ctx, "mtr committed", "node", n.id, "commit_lsn", commitLsn)
	return commitLsn, nil
}

// AbortMTR discards the pending MTR without writing anything. No LSNs are
// consumed.
func (n *Node) AbortMTR() {
	n.pending = nil
}

// Get returns page pageID as observed at this node's current read point,
// or ErrNotFound if the page has never been written at or before it.
func (n *Node) Get(ctx context.Context, pageID redo.PageID) ([]byte, error) {
	if entry, ok := n.bufferPool[pageID]; ok && entry.asOf <= n.readPoint {
		return entry.bytes, nil
	}

	page, err := n.storage.ReadPageAt(ctx, pageID, n.readPoint)
	if err != nil {
		return nil, err
	}

	n.bufferPool[pageID] = bufEntry{bytes: page, asOf: n.readPoint}
	return page, nil
}

// Refresh advances the read point to the storage engine's current VDL and
// drops any buffer-pool entries that are now stale. It never moves the read
// point backward, and it does not prefetch - subsequent Gets refill lazily.
func (n *Node) Refresh(ctx context.Context) {
	_, vdl := n.storage.Durability(ctx)
	if vdl <= n.readPoint {
		return
	}
	n.readPoint = vdl
	for pageID, entry := range n.bufferPool {
		if entry.asOf < n.readPoint {
			delete(n.bufferPool, pageID)
		}
	}
}
