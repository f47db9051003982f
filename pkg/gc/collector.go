// Package gc removes orphaned content: blobs in the content store that no
// data object in the catalog refers to.
//
// Orphans are left behind when a process dies between writing a blob and
// committing its catalog entry, or between unlinking an entry and deleting
// its blob. Collection is meant to run while the grid is idle; with the
// badger catalog this is guaranteed since the database admits one process.
package gc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sdu-escience/gridgate/internal/logger"
	"github.com/sdu-escience/gridgate/pkg/content"
	"github.com/sdu-escience/gridgate/pkg/metadata"
)

// DefaultBatchSize matches the S3 DeleteObjects limit.
const DefaultBatchSize = 1000

// Config controls one collector.
type Config struct {
	// BatchSize is how many orphans are deleted per DeleteBatch call
	// (default: DefaultBatchSize)
	BatchSize int

	// DryRun reports orphans without deleting them
	DryRun bool
}

// Collector finds and deletes orphaned content.
//
// Thread Safety: Safe for concurrent use, though concurrent runs against the
// same stores do redundant work.
type Collector struct {
	catalog metadata.Store
	blobs   content.GarbageCollectableStore
	config  Config
}

// NewCollector fails when blobs cannot enumerate its content.
func NewCollector(catalog metadata.Store, blobs content.Store, config Config) (*Collector, error) {
	gcStore, ok := blobs.(content.GarbageCollectableStore)
	if !ok {
		return nil, errors.New("content store does not support garbage collection")
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	return &Collector{catalog: catalog, blobs: gcStore, config: config}, nil
}

// Collect runs one collection:
//  1. Walk the catalog from "/" and gather every referenced ContentID
//  2. List the content store
//  3. Delete what is listed but not referenced, in batches
//
// The returned Stats are filled in as far as the run got, also on error.
func (c *Collector) Collect(ctx context.Context) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	defer func() { stats.EndTime = time.Now() }()

	referenced, err := c.referenced(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to walk catalog: %w", err)
	}
	stats.ReferencedCount = uint64(len(referenced))
	logger.Debug("GC: %d content items referenced by the catalog", stats.ReferencedCount)

	existing, err := c.blobs.ListAllContent(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list content: %w", err)
	}
	stats.ExistingCount = uint64(len(existing))

	var orphaned []content.ContentID
	for _, id := range existing {
		if _, ok := referenced[id]; !ok {
			orphaned = append(orphaned, id)
		}
	}
	stats.OrphanedCount = uint64(len(orphaned))
	stats.Orphans = orphaned

	if len(orphaned) == 0 || c.config.DryRun {
		if c.config.DryRun {
			logger.Info("GC: dry run, %d orphaned content items left in place", len(orphaned))
		}
		return stats, nil
	}

	for i := 0; i < len(orphaned); i += c.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		batch := orphaned[i:min(i+c.config.BatchSize, len(orphaned))]
		failures, err := c.blobs.DeleteBatch(ctx, batch)
		if err != nil {
			logger.Warn("GC: batch delete failed: %v", err)
			stats.FailedCount += uint64(len(batch))
			continue
		}

		stats.DeletedCount += uint64(len(batch) - len(failures))
		stats.FailedCount += uint64(len(failures))
		for id, ferr := range failures {
			logger.Debug("GC: failed to delete %s: %v", id, ferr)
		}
	}

	logger.Info("GC: %s", stats.Summary())
	return stats, nil
}

// referenced walks the namespace breadth first.
func (c *Collector) referenced(ctx context.Context) (map[content.ContentID]struct{}, error) {
	refs := make(map[content.ContentID]struct{})
	queue := []string{"/"}

	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		children, err := c.catalog.ListChildren(ctx, dir)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if child.IsCollection() {
				queue = append(queue, child.Path)
				continue
			}
			if child.ContentID != "" {
				refs[content.ContentID(child.ContentID)] = struct{}{}
			}
		}
	}
	return refs, nil
}

// Stats describes one collection run.
type Stats struct {
	StartTime       time.Time
	EndTime         time.Time
	ReferencedCount uint64 // ContentIDs referenced by the catalog
	ExistingCount   uint64 // ContentIDs in the content store
	OrphanedCount   uint64
	DeletedCount    uint64
	FailedCount     uint64

	// Orphans lists what was found, deleted or not
	Orphans []content.ContentID
}

// Duration returns how long the run took.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

func (s *Stats) Summary() string {
	return fmt.Sprintf("referenced=%d existing=%d orphaned=%d deleted=%d failed=%d duration=%s",
		s.ReferencedCount, s.ExistingCount, s.OrphanedCount,
		s.DeletedCount, s.FailedCount, s.Duration())
}
