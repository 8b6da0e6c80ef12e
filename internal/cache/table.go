package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/AndrewKorobchuk/tsd/prometheus"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const insertBatchSize = 200

// Model is a cached entity with a fixed table name
type Model interface {
	TableName() string
}

// Scope narrows a query, see gorm.DB.Scopes
type Scope func(*gorm.DB) *gorm.DB

// Table gives typed access to one cache table
type Table[T Model] struct {
	store *Store
	name  string
}

// NewTable binds T to store
func NewTable[T Model](store *Store) *Table[T] {
	var zero T
	return &Table[T]{
		store: store,
		name:  zero.TableName(),
	}
}

// Name returns the table name
func (t *Table[T]) Name() string {
	return t.name
}

// Find returns every row matching scopes
func (t *Table[T]) Find(ctx context.Context, scopes ...Scope) ([]T, error) {
	return find[T](t.store.db.WithContext(ctx), scopes)
}

// First returns the first row matching scopes, or nil when there is none
func (t *Table[T]) First(ctx context.Context, scopes ...Scope) (*T, error) {
	rows, err := find[T](t.store.db.WithContext(ctx).Limit(1), scopes)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Count returns the number of rows matching scopes
func (t *Table[T]) Count(ctx context.Context, scopes ...Scope) (int64, error) {
	var n int64
	err := t.store.db.WithContext(ctx).Model(new(T)).Scopes(toGorm(scopes)...).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", t.name, err)
	}
	return n, nil
}

// LastUpdated returns MAX(updated_at), or nil when no row carries a timestamp
func (t *Table[T]) LastUpdated(ctx context.Context) (*string, error) {
	var latest sql.NullString
	err := t.store.db.WithContext(ctx).Model(new(T)).Select("MAX(updated_at)").Scan(&latest).Error
	if err != nil {
		return nil, fmt.Errorf("last updated %s: %w", t.name, err)
	}
	if !latest.Valid || latest.String == "" {
		return nil, nil
	}
	return &latest.String, nil
}

// Replace deletes every row and inserts rows in one transaction
func (t *Table[T]) Replace(ctx context.Context, rows []T) error {
	return t.store.Transaction(ctx, func(tx *Tx) error {
		return t.ReplaceTx(tx, rows)
	})
}

// Upsert inserts rows or overwrites the existing rows with the same key
func (t *Table[T]) Upsert(ctx context.Context, rows ...T) error {
	return t.store.Transaction(ctx, func(tx *Tx) error {
		return t.UpsertTx(tx, rows...)
	})
}

// Delete removes every row matching scopes. With no scopes the table is emptied.
func (t *Table[T]) Delete(ctx context.Context, scopes ...Scope) (int64, error) {
	var n int64
	err := t.store.Transaction(ctx, func(tx *Tx) error {
		var err error
		n, err = t.DeleteTx(tx, scopes...)
		return err
	})
	return n, err
}

// FindTx is Find inside a transaction
func (t *Table[T]) FindTx(tx *Tx, scopes ...Scope) ([]T, error) {
	return find[T](tx.db, scopes)
}

// ReplaceTx is Replace inside a transaction
func (t *Table[T]) ReplaceTx(tx *Tx, rows []T) error {
	defer prometheus.TrackDBOperation(t.name + "_replace")(time.Now())

	if _, err := t.DeleteTx(tx); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	if err := tx.db.CreateInBatches(rows, insertBatchSize).Error; err != nil {
		return fmt.Errorf("insert %s: %w", t.name, err)
	}
	tx.touch(t.name)
	return nil
}

// UpsertTx is Upsert inside a transaction
func (t *Table[T]) UpsertTx(tx *Tx, rows ...T) error {
	if len(rows) == 0 {
		return nil
	}
	err := tx.db.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(rows, insertBatchSize).Error
	if err != nil {
		return fmt.Errorf("upsert %s: %w", t.name, err)
	}
	tx.touch(t.name)
	return nil
}

// DeleteTx is Delete inside a transaction
func (t *Table[T]) DeleteTx(tx *Tx, scopes ...Scope) (int64, error) {
	q := tx.db
	if len(scopes) == 0 {
		q = q.Session(&gorm.Session{AllowGlobalUpdate: true})
	}
	res := q.Scopes(toGorm(scopes)...).Delete(new(T))
	if res.Error != nil {
		return 0, fmt.Errorf("delete %s: %w", t.name, res.Error)
	}
	tx.touch(t.name)
	return res.RowsAffected, nil
}

// Watch opens a live view of the rows matching scopes. The first snapshot is
// delivered right away and a fresh one after every committed write to the
// table. A slow reader only ever sees the latest snapshot.
func (t *Table[T]) Watch(ctx context.Context, scopes ...Scope) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan []T, 1)
	h := t.store.hubFor(t.name)
	signal := h.subscribe()
	log := t.store.log.With(zap.String("table", t.name))

	go func() {
		defer close(out)
		defer h.unsubscribe(signal)

		for {
			rows, err := t.Find(ctx, scopes...)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Error("Live view query failed", zap.Error(err))
			} else {
				// Drop the undelivered snapshot so the buffer holds the latest one
				select {
				case <-out:
				default:
				}
				out <- rows
			}

			select {
			case <-ctx.Done():
				return
			case <-signal:
			}
		}
	}()

	return &Subscription[T]{C: out, cancel: cancel}
}

// Subscription is a live view of a query. C is closed after Close or when the
// context passed to Watch is done.
type Subscription[T any] struct {
	C      <-chan []T
	cancel context.CancelFunc
}

// Close stops the live view
func (s *Subscription[T]) Close() {
	s.cancel()
}

func find[T any](db *gorm.DB, scopes []Scope) ([]T, error) {
	var rows []T
	if err := db.Scopes(toGorm(scopes)...).Find(&rows).Error; err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []T{}
	}
	return rows, nil
}

func toGorm(scopes []Scope) []func(*gorm.DB) *gorm.DB {
	out := make([]func(*gorm.DB) *gorm.DB, len(scopes))
	for i, s := range scopes {
		out[i] = s
	}
	return out
}
