package repository

import (
	"context"
	"fmt"

	"github.com/AndrewKorobchuk/tsd/internal/cache"
	"github.com/AndrewKorobchuk/tsd/pkg/api"
	"github.com/AndrewKorobchuk/tsd/prometheus"

	"go.uber.org/zap"
)

// SyncLimit is the page size requested by a full directory sync
const SyncLimit = 1000

type fetchFunc[T any] func(ctx context.Context, client *api.Client, token string) ([]T, error)

// directory implements the read and sync contract shared by all reference
// data: live views over active rows, substring search, and a sync that
// replaces the whole table only after a successful fetch.
type directory[T cache.Model] struct {
	entity  string
	table   *cache.Table[T]
	clients ClientSource
	order   string
	fetch   fetchFunc[T]
	log     *zap.Logger
}

// AllActive is a live view of active rows ordered by name
func (d *directory[T]) AllActive(ctx context.Context) *cache.Subscription[T] {
	return d.table.Watch(ctx, cache.Active(), cache.OrderBy(d.order))
}

// SearchActive is a live view of active rows containing query
func (d *directory[T]) SearchActive(ctx context.Context, query string) *cache.Subscription[T] {
	return d.table.Watch(ctx, cache.Active(), cache.Search(query), cache.OrderBy(d.order))
}

// ListActive returns the current active rows containing query
func (d *directory[T]) ListActive(ctx context.Context, query string) ([]T, error) {
	return d.table.Find(ctx, cache.Active(), cache.Search(query), cache.OrderBy(d.order))
}

// ByID returns the cached row with id, or nil
func (d *directory[T]) ByID(ctx context.Context, id int64) (*T, error) {
	return d.table.First(ctx, cache.Eq("id", id))
}

// Count returns the number of cached rows
func (d *directory[T]) Count(ctx context.Context) (int64, error) {
	return d.table.Count(ctx)
}

// LastUpdated returns the newest server update time among cached rows
func (d *directory[T]) LastUpdated(ctx context.Context) (*string, error) {
	return d.table.LastUpdated(ctx)
}

// SyncFromServer fetches the active rows and replaces the local table with
// them. A failed fetch leaves the previous snapshot untouched.
func (d *directory[T]) SyncFromServer(ctx context.Context, token string) (int, error) {
	log := d.log.With(zap.String("entity", d.entity))

	// Only a complete fetch may replace the table
	rows, err := d.fetchAll(ctx, token)
	if err == nil {
		err = d.table.Replace(ctx, rows)
	}
	prometheus.RecordSync(d.entity, len(rows), err)

	if err != nil {
		log.Warn("Sync failed", zap.Error(err))
		return 0, fmt.Errorf("sync %s: %w", d.entity, err)
	}

	log.Info("Sync completed", zap.Int("rows", len(rows)))
	return len(rows), nil
}

func (d *directory[T]) fetchAll(ctx context.Context, token string) ([]T, error) {
	client, err := d.clients.Client()
	if err != nil {
		return nil, err
	}
	return d.fetch(ctx, client, token)
}

func syncParams() api.ListParams {
	return api.ListParams{Limit: SyncLimit, ActiveOnly: true}
}
