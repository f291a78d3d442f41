// Package purge bounds index storage by deleting activity rows older than
// the retention cutoff in small batches.
package purge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wikimesh/centralindex/internal/core/storage"
	"github.com/wikimesh/centralindex/internal/metrics"
	"github.com/wikimesh/centralindex/internal/sitemap"
)

// SiteScopeAll purges across every site.
const SiteScopeAll = "all"

const defaultMaxRows = 1000

// Engine deletes expired rows from both activity tables.
type Engine struct {
	mapper *sitemap.Mapper
	store  storage.ActivityStore
}

func NewEngine(mapper *sitemap.Mapper, store storage.ActivityStore) *Engine {
	return &Engine{mapper: mapper, store: store}
}

// PurgeExpiredRows deletes rows with last_seen strictly older than cutoff,
// scoped to one site unless siteScope is SiteScopeAll. maxRows is a shared
// budget across both tables for this one call; the caller loops to drain
// fully. An unknown siteScope matches zero rows and is not an error.
func (e *Engine) PurgeExpiredRows(ctx context.Context, cutoff time.Time, siteScope string, maxRows int) (int64, error) {
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}

	var scope *int32
	if siteScope != SiteScopeAll {
		key, ok, err := e.mapper.Lookup(ctx, siteScope)
		if err != nil {
			return 0, fmt.Errorf("resolve purge scope %q: %w", siteScope, err)
		}
		if !ok {
			// Unknown site: nothing to purge. Deliberately not an error, and
			// deliberately not a new mapping row.
			return 0, nil
		}
		scope = &key
	}

	deleted, err := e.store.DeleteExpiredUserActivity(ctx, cutoff, scope, maxRows)
	if err != nil {
		return 0, err
	}
	metrics.PurgedRows.WithLabelValues("user_activity").Add(float64(deleted))

	remaining := maxRows - int(deleted)
	if remaining <= 0 {
		return deleted, nil
	}

	tempDeleted, err := e.store.DeleteExpiredTempIPActivity(ctx, cutoff, scope, remaining)
	if err != nil {
		return deleted, err
	}
	metrics.PurgedRows.WithLabelValues("temp_ip_activity").Add(float64(tempDeleted))
	deleted += tempDeleted

	if deleted > 0 {
		slog.Debug("[Purge] Deleted expired rows",
			"rows", deleted,
			"cutoff", cutoff,
			"site_scope", siteScope)
	}
	return deleted, nil
}
