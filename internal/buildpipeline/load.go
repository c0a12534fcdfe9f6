package buildpipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"pcb/internal/cache"
	"pcb/internal/ir"
	"pcb/internal/irpack"
	"pcb/internal/irtext"
	"pcb/internal/trace"
)

// Load parses path into a fresh context. With a non-nil cache, a snapshot
// stored for identical source text is restored instead of reparsing, and a
// fresh parse is stored back. Cache failures never fail the load.
func Load(ctx context.Context, path string, optimize bool, dc *cache.DiskCache) (c *ir.Context, hit bool, err error) {
	// #nosec G304 -- path comes from the command line or manifest
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, false, err
	}
	if dc == nil {
		c, err = irtext.Parse(ctx, path, src, optimize)
		return c, false, err
	}

	tracer := trace.FromContext(ctx)
	key := cache.Sum(src)
	if entry, ok, getErr := dc.Get(key); getErr != nil {
		trace.Error(tracer, "cache.get", getErr, trace.ParentID(ctx))
	} else if ok {
		entry.Snapshot.Optimize = optimize
		c, err = irpack.Restore(entry.Snapshot)
		if err == nil {
			trace.Point(tracer, trace.ScopePass, "cache.hit", path, trace.ParentID(ctx))
			return c, true, nil
		}
		trace.Error(tracer, "cache.restore", err, trace.ParentID(ctx))
	}

	c, err = irtext.Parse(ctx, path, src, optimize)
	if err != nil {
		return nil, false, err
	}
	snap, err := irpack.Take(c)
	if err == nil {
		err = dc.Put(key, &cache.Entry{Source: path, Stored: time.Now(), Snapshot: snap})
	}
	if err != nil {
		trace.Error(tracer, "cache.put", fmt.Errorf("%s: %w", path, err), trace.ParentID(ctx))
	}
	return c, false, nil
}
