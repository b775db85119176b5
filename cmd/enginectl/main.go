// Command enginectl is a minimal driver exercising the storage engine and
// compute node through their public surface end to end. It is not a REPL
// and not a query dispatcher - it opens a WAL, writes a page through one
// node, reads it back through a second, and reports the durability
// watermarks it observed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mpalmer/logdb/compute"
	"github.com/mpalmer/logdb/storage"
	"github.com/mpalmer/logdb/util/log"
)

func main() {
	path := flag.String("wal", "enginectl.wal", "path to the wal file to open or create")
	flag.Parse()

	ctx := context.Background()
	if err := run(ctx, *path); err != nil {
		log.Errorf(ctx, "enginectl: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, path string) error {
	engine, err := storage.Open(ctx, path)
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer func() { _ = engine.Close() }()

	writer := compute.NewNode(engine)
	reader := compute.NewNode(engine)

	if err := writer.Put(ctx, 1, 0, []byte("enginectl smoke test")); err != nil {
		return fmt.Errorf("write page: %w", err)
	}

	reader.Refresh(ctx)
	page, err := reader.Get(ctx, 1)
	if err != nil {
		return fmt.Errorf("read page: %w", err)
	}

	vcl, vdl := engine.Durability(ctx)
	fmt.Printf("wal=%s node=%s vcl=%d vdl=%d page[0:21]=%q\n", path, reader.ID(), vcl, vdl, page[:21])
	return nil
}
