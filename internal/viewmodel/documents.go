package viewmodel

import (
	"context"
	"sync"
	"time"

	"github.com/AndrewKorobchuk/tsd/internal/cache"
	"github.com/AndrewKorobchuk/tsd/internal/model"
	"github.com/AndrewKorobchuk/tsd/internal/repository"

	"go.uber.org/zap"
)

type DocumentStore interface {
	Watch(ctx context.Context, filter repository.DocumentFilter) *cache.Subscription[model.Document]
	SyncFromServer(ctx context.Context, token string) (int, error)
	PostDocument(ctx context.Context, token string, id int64) error
	CancelDocument(ctx context.Context, token string, id int64) error
	DeleteDocument(ctx context.Context, token string, id int64) error
}

// DocumentsState is the document list screen
type DocumentsState struct {
	Filter    repository.DocumentFilter `json:"filter"`
	Documents []model.Document          `json:"documents"`
	Loading   bool                      `json:"loading"`
	Error     string                    `json:"error,omitempty"`
}

// DocumentsViewModel keeps the filtered document list current through a
// live cache view and runs the per-document actions.
type DocumentsViewModel struct {
	ctx    context.Context
	docs   DocumentStore
	tokens TokenSource
	log    *zap.Logger
	state  *Observable[DocumentsState]

	mu  sync.Mutex
	sub *cache.Subscription[model.Document]
	gen int
}

const firstSnapshotTimeout = 5 * time.Second

// NewDocumentsViewModel starts watching all documents. The live view lives
// until ctx is done or Close is called.
func NewDocumentsViewModel(ctx context.Context, docs DocumentStore, tokens TokenSource, log *zap.Logger) *DocumentsViewModel {
	if log == nil {
		log = zap.NewNop()
	}
	vm := &DocumentsViewModel{
		ctx:    ctx,
		docs:   docs,
		tokens: tokens,
		log:    log,
		state:  NewObservable(DocumentsState{Documents: []model.Document{}}),
	}
	vm.SetFilter(repository.DocumentFilter{})
	return vm
}

func (vm *DocumentsViewModel) State() DocumentsState {
	return vm.state.Get()
}

func (vm *DocumentsViewModel) Observe() (<-chan DocumentsState, func()) {
	return vm.state.Subscribe()
}

// Documents returns the current filtered list
func (vm *DocumentsViewModel) Documents() []model.Document {
	return vm.state.Get().Documents
}

// SetFilter switches the live view. It returns once the first snapshot for
// the new filter has been published, or after firstSnapshotTimeout. A newer
// SetFilter wins over one still waiting.
func (vm *DocumentsViewModel) SetFilter(filter repository.DocumentFilter) {
	vm.mu.Lock()
	if vm.sub != nil {
		vm.sub.Close()
	}
	vm.gen++
	gen := vm.gen
	sub := vm.docs.Watch(vm.ctx, filter)
	vm.sub = sub
	vm.mu.Unlock()

	var first []model.Document
	select {
	case first = <-sub.C:
	case <-time.After(firstSnapshotTimeout):
		vm.log.Warn("Document list not loaded yet", zap.Any("filter", filter))
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if gen != vm.gen {
		return
	}
	vm.state.Update(func(s DocumentsState) DocumentsState {
		s.Filter = filter
		s.Documents = nonNil(first)
		return s
	})
	go vm.pump(sub, gen)
}

func (vm *DocumentsViewModel) pump(sub *cache.Subscription[model.Document], gen int) {
	for rows := range sub.C {
		vm.mu.Lock()
		if gen == vm.gen {
			vm.state.Update(func(s DocumentsState) DocumentsState {
				s.Documents = nonNil(rows)
				return s
			})
		}
		vm.mu.Unlock()
	}
}

// Sync replaces the cached documents with the server list
func (vm *DocumentsViewModel) Sync(ctx context.Context) (int, error) {
	var n int
	err := vm.run(func(token string) error {
		var err error
		n, err = vm.docs.SyncFromServer(ctx, token)
		return err
	})
	return n, err
}

func (vm *DocumentsViewModel) Post(ctx context.Context, id int64) error {
	return vm.run(func(token string) error {
		return vm.docs.PostDocument(ctx, token, id)
	})
}

func (vm *DocumentsViewModel) Cancel(ctx context.Context, id int64) error {
	return vm.run(func(token string) error {
		return vm.docs.CancelDocument(ctx, token, id)
	})
}

func (vm *DocumentsViewModel) Delete(ctx context.Context, id int64) error {
	return vm.run(func(token string) error {
		return vm.docs.DeleteDocument(ctx, token, id)
	})
}

func (vm *DocumentsViewModel) ClearError() {
	vm.state.Update(func(s DocumentsState) DocumentsState {
		s.Error = ""
		return s
	})
}

// Close stops the live view
func (vm *DocumentsViewModel) Close() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.sub != nil {
		vm.sub.Close()
		vm.sub = nil
	}
	vm.gen++
}

func (vm *DocumentsViewModel) run(fn func(token string) error) error {
	vm.state.Update(func(s DocumentsState) DocumentsState {
		s.Loading = true
		s.Error = ""
		return s
	})

	token, err := vm.tokens.AccessToken()
	if err == nil {
		err = fn(token)
	}

	vm.state.Update(func(s DocumentsState) DocumentsState {
		s.Loading = false
		s.Error = Message(err)
		return s
	})
	if err != nil {
		vm.log.Warn("Document action failed", zap.Error(err))
	}
	return err
}

func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
