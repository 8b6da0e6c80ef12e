package cache

import (
	"context"
	"testing"
	"time"

	"github.com/AndrewKorobchuk/tsd/internal/model"
	"github.com/AndrewKorobchuk/tsd/pkg/config"
	"github.com/AndrewKorobchuk/tsd/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := &config.Config{
		Cache:    config.CacheConfig{Driver: "sqlite", Path: ":memory:"},
		Database: config.DatabaseConfig{LogLevel: "silent"},
	}
	db, err := database.Open(cfg, zap.NewNop())
	require.NoError(t, err)
	return NewStore(db, zap.NewNop())
}

func strPtr(s string) *string { return &s }

func warehouse(id int64, name string, active bool, updated string) model.Warehouse {
	w := model.Warehouse{ID: id, Code: "W" + name, Name: name, IsActive: active, CreatedAt: "2026-01-01T00:00:00"}
	if updated != "" {
		w.UpdatedAt = strPtr(updated)
	}
	return w
}

func receive[T any](t *testing.T, sub *Subscription[T]) []T {
	t.Helper()
	select {
	case rows, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return rows
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot received")
		return nil
	}
}

func TestReplaceMirrorsLatestSnapshot(t *testing.T) {
	ctx := context.Background()
	table := NewTable[model.Warehouse](newTestStore(t))

	require.NoError(t, table.Replace(ctx, []model.Warehouse{
		warehouse(1, "Main", true, ""),
		warehouse(2, "Annex", true, ""),
	}))
	require.NoError(t, table.Replace(ctx, []model.Warehouse{
		warehouse(3, "Cold", true, ""),
	}))

	rows, err := table.Find(ctx, OrderBy("name"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(3), rows[0].ID)
}

func TestFailedReplaceKeepsPreviousRows(t *testing.T) {
	ctx := context.Background()
	table := NewTable[model.Warehouse](newTestStore(t))

	require.NoError(t, table.Replace(ctx, []model.Warehouse{warehouse(1, "Main", true, "")}))

	// Duplicate primary keys make the insert fail after the delete ran
	err := table.Replace(ctx, []model.Warehouse{
		warehouse(5, "A", true, ""),
		warehouse(5, "B", true, ""),
	})
	require.Error(t, err)

	rows, err := table.Find(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Main", rows[0].Name)
}

func TestActiveSearchScopes(t *testing.T) {
	ctx := context.Background()
	table := NewTable[model.Warehouse](newTestStore(t))

	w := warehouse(3, "Cold Store", true, "")
	w.Address = strPtr("Harbour street 4")
	require.NoError(t, table.Replace(ctx, []model.Warehouse{
		warehouse(1, "Main", true, ""),
		warehouse(2, "Archive", false, ""),
		w,
	}))

	rows, err := table.Find(ctx, Active(), OrderBy("name"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Cold Store", rows[0].Name)
	assert.Equal(t, "Main", rows[1].Name)

	rows, err = table.Find(ctx, Active(), Search("HARBOUR"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(3), rows[0].ID)

	rows, err = table.Find(ctx, Active(), Search("arch"))
	require.NoError(t, err)
	assert.Empty(t, rows)

	n, err := table.Count(ctx, Active())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSearchFoldsCyrillicCase(t *testing.T) {
	ctx := context.Background()
	table := NewTable[model.Warehouse](newTestStore(t))

	require.NoError(t, table.Replace(ctx, []model.Warehouse{
		warehouse(1, "Склад Основной", true, ""),
		warehouse(2, "Main", true, ""),
	}))

	for _, query := range []string{"Склад Основной", "склад", "ОСНОВНОЙ", "  оСнОв "} {
		rows, err := table.Find(ctx, Active(), Search(query))
		require.NoError(t, err)
		require.Len(t, rows, 1, query)
		assert.Equal(t, int64(1), rows[0].ID, query)
	}

	// Upserted rows are searchable as well
	require.NoError(t, table.Upsert(ctx, warehouse(2, "Холодильник", true, "")))
	rows, err := table.Find(ctx, Active(), Search("холод"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0].ID)
}

func TestSearchMatchesWildcardsLiterally(t *testing.T) {
	ctx := context.Background()
	table := NewTable[model.Warehouse](newTestStore(t))

	require.NoError(t, table.Replace(ctx, []model.Warehouse{
		warehouse(1, "Main", true, ""),
		warehouse(2, "Shelf_2", true, ""),
		warehouse(3, "Bin 50%", true, ""),
	}))

	rows, err := table.Find(ctx, Search("_"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0].ID)

	rows, err = table.Find(ctx, Search("%"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(3), rows[0].ID)

	rows, err = table.Find(ctx, Search(`\`))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLastUpdated(t *testing.T) {
	ctx := context.Background()
	table := NewTable[model.Warehouse](newTestStore(t))

	last, err := table.LastUpdated(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	require.NoError(t, table.Replace(ctx, []model.Warehouse{
		warehouse(1, "Main", true, "2026-02-01T08:00:00"),
		warehouse(2, "Annex", true, "2026-03-05T10:30:00"),
		warehouse(3, "Cold", true, ""),
	}))

	last, err = table.LastUpdated(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "2026-03-05T10:30:00", *last)
}

func TestFirstAndDelete(t *testing.T) {
	ctx := context.Background()
	table := NewTable[model.Warehouse](newTestStore(t))

	missing, err := table.First(ctx, Eq("id", 1))
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, table.Upsert(ctx, warehouse(1, "Main", true, ""), warehouse(2, "Annex", true, "")))

	found, err := table.First(ctx, Eq("id", 2))
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Annex", found.Name)

	n, err := table.Delete(ctx, Eq("id", 2))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	count, err := table.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestWatchEmitsInitialAndAfterWrites(t *testing.T) {
	ctx := context.Background()
	table := NewTable[model.Warehouse](newTestStore(t))

	sub := table.Watch(ctx, Active(), OrderBy("name"))
	defer sub.Close()

	assert.Empty(t, receive(t, sub))

	require.NoError(t, table.Upsert(ctx, warehouse(1, "Main", true, "")))
	rows := receive(t, sub)
	require.Len(t, rows, 1)
	assert.Equal(t, "Main", rows[0].Name)

	require.NoError(t, table.Replace(ctx, []model.Warehouse{
		warehouse(2, "Annex", true, ""),
		warehouse(3, "Old", false, ""),
	}))
	rows = receive(t, sub)
	require.Len(t, rows, 1)
	assert.Equal(t, "Annex", rows[0].Name)
}

func TestWatchIgnoresOtherTables(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	warehouses := NewTable[model.Warehouse](store)
	units := NewTable[model.UnitOfMeasure](store)

	sub := warehouses.Watch(ctx)
	defer sub.Close()
	receive(t, sub)

	require.NoError(t, units.Upsert(ctx, model.UnitOfMeasure{ID: 1, Code: "PCS", Name: "Piece", IsActive: true}))

	select {
	case <-sub.C:
		t.Fatal("unexpected snapshot for unrelated table")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatchStopsOnClose(t *testing.T) {
	table := NewTable[model.Warehouse](newTestStore(t))

	sub := table.Watch(context.Background())
	receive(t, sub)
	sub.Close()

	select {
	case _, ok := <-sub.C:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed")
	}
}

func TestTransactionNotifiesEveryTouchedTable(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	docs := NewTable[model.Document](store)
	items := NewTable[model.DocumentItem](store)

	docSub := docs.Watch(ctx)
	defer docSub.Close()
	itemSub := items.Watch(ctx)
	defer itemSub.Close()
	receive(t, docSub)
	receive(t, itemSub)

	err := store.Transaction(ctx, func(tx *Tx) error {
		if err := docs.UpsertTx(tx, model.Document{ID: 1, DocumentNumber: "N-1", Status: model.DocumentStatusDraft}); err != nil {
			return err
		}
		return items.UpsertTx(tx, model.DocumentItem{ID: 10, DocumentID: 1})
	})
	require.NoError(t, err)

	assert.Len(t, receive(t, docSub), 1)
	assert.Len(t, receive(t, itemSub), 1)
}
