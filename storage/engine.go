// Package storage implements the StorageApi contract: the append-only WAL,
// the page index and LSN offset index, the durability watermarks, and the
// materialized-page cache, composed behind a small interface compute nodes
// depend on.
package storage

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/mpalmer/logdb/materialize"
	"github.com/mpalmer/logdb/pagecache"
	"github.com/mpalmer/logdb/redo"
	"github.com/mpalmer/logdb/trace"
	"github.com/mpalmer/logdb/wal"
	"golang.org/x/exp/maps"
	"golang.org/x/sync/errgroup"
)

// API is the contract compute nodes depend on. Expressing it as an
// interface, rather than a concrete type, lets an alternative engine (a
// segmented or tiered variant, out of scope here) stand in without any
// change to compute.
type API interface {
	AppendMTR(ctx context.Context, records []redo.Record) (redo.Lsn, error)
	ReadPageAt(ctx context.Context, pageID redo.PageID, lsn redo.Lsn) ([]byte, error)
	Durability(ctx context.Context) (vcl, vdl redo.Lsn)
}

// Engine is the single-file StorageApi implementation. All mutating
// operations are serialized under mtx; the page cache has its own internal
// lock and may be consulted without holding mtx for longer than necessary.
type Engine struct {
	cfg config

	mtx        sync.Mutex
	f          *os.File
	writer     *wal.Writer
	reader     *wal.Reader
	pageIndex  map[redo.PageID]redo.Lsn
	lsnOffsets map[redo.Lsn]int64
	nextLsn    redo.Lsn
	vcl, vdl   redo.Lsn

	cache *pagecache.LRU
}

var _ API = (*Engine)(nil)

// Open opens (creating if absent) the WAL file at path, recovers a
// consistent prefix, and returns a ready Engine.
func Open(ctx context.Context, path string, opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open wal file %q: %w", path, err)
	}

	result, err := wal.Recover(ctx, f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to recover wal file %q: %w", path, err)
	}

	e := &Engine{
		cfg:        cfg,
		f:          f,
		writer:     wal.OpenWriter(f, result.EndOffset),
		reader:     wal.NewReader(f),
		pageIndex:  result.PageIndex,
		lsnOffsets: result.LsnOffsets,
		nextLsn:    result.NextLsn,
		vcl:        result.VCL,
		vdl:        result.VDL,
		cache:      pagecache.New(cfg.cacheCapacity),
	}

	if cfg.warmCache {
		if err := e.warmCache(ctx); err != nil {
			e.cfg.logger.Warnf(ctx, "cache warmup failed, continuing cold: %v", err)
		}
	}

	return e, nil
}

// warmCache pre-materializes the most recently written pages into the
// cache, bounded by cache capacity and warmConcurrency. This is a startup
// convenience only - a cold cache is always correct, just slower on first
// read.
func (e *Engine) warmCache(ctx context.Context) error {
	pages := maps.Keys(e.pageIndex)
	sort.Slice(pages, func(i, j int) bool { return e.pageIndex[pages[i]] > e.pageIndex[pages[j]] })
	if int64(len(pages)) > e.cfg.cacheCapacity {
		pages = pages[:e.cfg.cacheCapacity]
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.warmConcurrency)
	for _, pageID := range pages {
		pageID := pageID
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			_, err := e.ReadPageAt(ctx, pageID, e.vdl)
			return err
		})
	}
	return g.Wait() //nolint:wrapcheck
}

// Close closes the underlying WAL file.
func (e *Engine) Close() error {
	return e.writer.Close()
}

// AppendMTR writes one atomic MTR: records must be non-empty and the last
// record must be marked IsCPL. Every record is assigned the next LSN in
// order; each record's PrevLsn is fixed up from the current page index
// regardless of what the caller set. The whole batch is written and fsynced
// once, then the page index, LSN offset index, and VCL/VDL are all updated
// together under the engine lock.
func (e *Engine) AppendMTR(ctx context.Context, records []redo.Record) (redo.Lsn, error) {
	if len(records) == 0 || !records[len(records)-1].IsCPL {
		return 0, redo.ErrInvalidMtr
	}
	for _, rec := range records {
		if rec.Overflows(e.cfg.pageSize) {
			return 0, redo.PageOverflowError{PageID: rec.PageID, Offset: rec.Offset, Len: len(rec.Payload)}
		}
	}

	e.mtx.Lock()
	defer e.mtx.Unlock()

	assigned := make([]redo.Record, len(records))
	for i, rec := range records {
		rec.Lsn = e.nextLsn
		rec.PrevLsn = e.pageIndex[rec.PageID]
		e.nextLsn++
		assigned[i] = rec
	}

	offsets, err := e.writer.Append(assigned)
	if err != nil {
		return 0, fmt.Errorf("failed to append mtr: %w", err)
	}

	var lastCPL redo.Lsn
	for i, rec := range assigned {
		e.pageIndex[rec.PageID] = rec.Lsn
		e.lsnOffsets[rec.Lsn] = offsets[i]
		if rec.IsCPL {
			lastCPL = rec.Lsn
		}
		e.cfg.sink.Emit(trace.Event{Kind: trace.KindWALAppend, Fields: map[string]any{
			"lsn": rec.Lsn, "page_id": rec.PageID,
		}})
	}

	prevVCL, prevVDL := e.vcl, e.vdl
	e.vcl = assigned[len(assigned)-1].Lsn
	if lastCPL > e.vdl {
		e.vdl = lastCPL
	}
	if e.vcl != prevVCL {
		e.cfg.sink.Emit(trace.Event{Kind: trace.KindVCLAdvance, Fields: map[string]any{"from": prevVCL, "to": e.vcl}})
	}
	if e.vdl != prevVDL {
		e.cfg.sink.Emit(trace.Event{Kind: trace.KindVDLAdvance, Fields: map[string]any{"from": prevVDL, "to": e.vdl}})
	}

	e.cfg.logger.Debugw(ctx, "appended mtr", "records", len(records), "commit_lsn", e.vdl)
	return e.vdl, nil
}

// ReadPageAt materializes page pageID as of lsn. lsn must not exceed the
// current VDL.
func (e *Engine) ReadPageAt(ctx context.Context, pageID redo.PageID, lsn redo.Lsn) ([]byte, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.readPageAtLocked(ctx, pageID, lsn)
}

func (e *Engine) readPageAtLocked(ctx context.Context, pageID redo.PageID, lsn redo.Lsn) ([]byte, error) {
	if lsn > e.vdl {
		return nil, redo.ReadAheadOfDurableError{Requested: lsn, Durable: e.vdl}
	}

	effective, found, err := e.findEffectiveLsn(pageID, lsn)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, redo.NotFoundError{PageID: pageID, Lsn: lsn}
	}

	key := pagecache.Key{PageID: pageID, Lsn: effective}
	if page, ok := e.cache.Get(key); ok {
		e.cfg.sink.Emit(trace.Event{Kind: trace.KindCacheHit, Fields: map[string]any{"page_id": pageID, "lsn": effective}})
		return page, nil
	}
	e.cfg.sink.Emit(trace.Event{Kind: trace.KindCacheMiss, Fields: map[string]any{"page_id": pageID, "lsn": effective}})

	chain, err := e.chain(pageID, lsn)
	if err != nil {
		return nil, err
	}
	e.cfg.sink.Emit(trace.Event{Kind: trace.KindChainWalk, Fields: map[string]any{"page_id": pageID, "depth": len(chain)}})

	page, err := materialize.Page(e.cfg.pageSize, chain)
	if err != nil {
		return nil, err
	}
	e.cfg.sink.Emit(trace.Event{Kind: trace.KindMaterialize, Fields: map[string]any{
		"page_id": pageID, "records_replayed": len(chain),
	}})
	e.cfg.logger.Debugw(ctx, "materialized page", "page_id", pageID, "lsn", lsn, "records_replayed", len(chain))

	e.cache.Put(key, page)
	return page, nil
}

// findEffectiveLsn returns the highest LSN <= upToLsn that targets pageID,
// by walking the prev_lsn chain head only as far as needed - without
// collecting the full chain. found is false if no such record exists.
func (e *Engine) findEffectiveLsn(pageID redo.PageID, upToLsn redo.Lsn) (redo.Lsn, bool, error) {
	current, ok := e.pageIndex[pageID]
	if !ok {
		return 0, false, nil
	}
	for current > upToLsn {
		rec, err := e.readRecordAt(current)
		if err != nil {
			return 0, false, err
		}
		current = rec.PrevLsn
		if current == 0 {
			return 0, false, nil
		}
	}
	return current, true, nil
}

// chain returns all records targeting pageID with lsn <= upToLsn, in
// ascending LSN order, by walking prev_lsn backward and then reversing.
func (e *Engine) chain(pageID redo.PageID, upToLsn redo.Lsn) ([]redo.Record, error) {
	current, ok := e.pageIndex[pageID]
	if !ok {
		return nil, nil
	}
	for current > upToLsn {
		rec, err := e.readRecordAt(current)
		if err != nil {
			return nil, err
		}
		current = rec.PrevLsn
		if current == 0 {
			return nil, nil
		}
	}

	var records []redo.Record
	for current != 0 {
		rec, err := e.readRecordAt(current)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
		current = rec.PrevLsn
	}
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

func (e *Engine) readRecordAt(lsn redo.Lsn) (redo.Record, error) {
	offset, ok := e.lsnOffsets[lsn]
	if !ok {
		return redo.Record{}, redo.UnknownLsnError{Lsn: lsn}
	}
	rec, err := e.reader.ReadAt(offset)
	if err != nil {
		return redo.Record{}, fmt.Errorf("failed to read record at lsn %d: %w", lsn, err)
	}
	return rec, nil
}

// Durability returns the current (VCL, VDL) watermarks.
func (e *Engine) Durability(ctx context.Context) (vcl, vdl redo.Lsn) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.vcl, e.vdl
}
