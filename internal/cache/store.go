package cache

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store is the local cache database plus the change notifications that
// drive live views. All writes must go through a Store so subscribers see them.
type Store struct {
	db  *gorm.DB
	log *zap.Logger

	mu   sync.Mutex
	hubs map[string]*hub
}

// NewStore wraps an opened and migrated cache database
func NewStore(db *gorm.DB, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		db:   db,
		log:  log,
		hubs: make(map[string]*hub),
	}
}

// DB returns the underlying connection for read-only use
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Tx is a cache transaction. Tables written through it are notified after commit.
type Tx struct {
	db      *gorm.DB
	touched map[string]struct{}
}

// DB returns the transaction handle for building sub-queries
func (tx *Tx) DB() *gorm.DB {
	return tx.db
}

func (tx *Tx) touch(table string) {
	tx.touched[table] = struct{}{}
}

// Transaction runs fn atomically. Subscribers of every table written in fn are
// notified once the transaction has committed; nothing is published on rollback.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	touched := make(map[string]struct{})
	err := s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&Tx{db: gtx, touched: touched})
	})
	if err != nil {
		return err
	}

	for table := range touched {
		s.hubFor(table).notify()
	}
	return nil
}

func (s *Store) hubFor(table string) *hub {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.hubs[table]
	if !ok {
		h = newHub()
		s.hubs[table] = h
	}
	return h
}

// hub fans a change signal out to every live view of one table
type hub struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[chan struct{}]struct{})}
}

func (h *hub) subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *hub) unsubscribe(ch chan struct{}) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

func (h *hub) notify() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		// A pending signal already guarantees a re-query
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
