// Package catalog keeps the in-memory snapshot of the remote supplier table
// and resolves names against it.
//
// The cache is rebuilt wholesale: every rebuild re-reads the whole table and
// swaps in a fresh Snapshot. Readers always see either the old or the new
// snapshot, never a partial one.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/dmitrijs2005/supplierbot/internal/logging"
	"github.com/dmitrijs2005/supplierbot/internal/metrics"
	"github.com/dmitrijs2005/supplierbot/internal/models"
	"github.com/dmitrijs2005/supplierbot/internal/tabular"
)

type Cache struct {
	reader   tabular.Reader
	logger   logging.Logger
	metrics  *metrics.Metrics
	snapshot atomic.Pointer[Snapshot]
}

func NewCache(reader tabular.Reader, logger logging.Logger, m *metrics.Metrics) *Cache {
	c := &Cache{reader: reader, logger: logger, metrics: m}
	c.snapshot.Store(newSnapshot(nil))
	return c
}

// Snapshot returns the current snapshot. It is never nil.
func (c *Cache) Snapshot() *Snapshot {
	return c.snapshot.Load()
}

// Rebuild re-reads the table and replaces the snapshot. Blank names are
// skipped and later duplicates of a name are dropped, so the snapshot never
// holds two entries that compare equal under Normalize. On a read error the
// previous snapshot is kept and the error is returned.
func (c *Cache) Rebuild(ctx context.Context) (int, error) {
	rows, err := c.reader.ReadAll(ctx)
	if err != nil {
		c.metrics.Rebuild(false, 0)
		c.logger.Warn(ctx, "cache rebuild failed, keeping previous snapshot", "error", err)
		return 0, fmt.Errorf("read catalog: %w", err)
	}

	entries := make([]models.Entry, 0, len(rows))
	seen := make(map[string]int, len(rows))

	for i, cells := range rows {
		e := models.EntryFromRow(cells, i+models.FirstDataRow)
		e.Name = strings.TrimSpace(e.Name)
		if e.Name == "" {
			continue
		}

		key := Normalize(e.Name)
		if first, dup := seen[key]; dup {
			c.logger.Warn(ctx, "duplicate supplier name ignored", "name", e.Name, "row", e.Row, "first_row", first)
			continue
		}
		seen[key] = e.Row

		entries = append(entries, e)
	}

	c.snapshot.Store(newSnapshot(entries))
	c.metrics.Rebuild(true, len(entries))
	c.logger.Info(ctx, "cache rebuilt", "entries", len(entries))

	return len(entries), nil
}
