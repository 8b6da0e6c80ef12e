package viewmodel

import (
	"context"
	"fmt"

	"github.com/AndrewKorobchuk/tsd/internal/model"

	"go.uber.org/zap"
)

type DocumentCounter interface {
	CountByType(ctx context.Context, t model.DocumentType) (int64, error)
}

// DocumentTypeCount is one tile of the documents menu
type DocumentTypeCount struct {
	Type  model.DocumentType `json:"document_type"`
	Count int64              `json:"count"`
}

// DocumentCountsState is the documents menu: cached documents per type
type DocumentCountsState struct {
	Counts  []DocumentTypeCount `json:"counts"`
	Total   int64               `json:"total"`
	Loading bool                `json:"loading"`
	Error   string              `json:"error,omitempty"`
}

// Count returns the cached number of documents of type t
func (s DocumentCountsState) Count(t model.DocumentType) int64 {
	for _, c := range s.Counts {
		if c.Type == t {
			return c.Count
		}
	}
	return 0
}

// DocumentCountsViewModel counts the cached documents of every type. It
// reads only the local cache.
type DocumentCountsViewModel struct {
	docs  DocumentCounter
	log   *zap.Logger
	state *Observable[DocumentCountsState]
}

func NewDocumentCountsViewModel(docs DocumentCounter, log *zap.Logger) *DocumentCountsViewModel {
	if log == nil {
		log = zap.NewNop()
	}
	counts := make([]DocumentTypeCount, len(model.DocumentTypes))
	for i, t := range model.DocumentTypes {
		counts[i] = DocumentTypeCount{Type: t}
	}
	return &DocumentCountsViewModel{
		docs:  docs,
		log:   log,
		state: NewObservable(DocumentCountsState{Counts: counts}),
	}
}

func (vm *DocumentCountsViewModel) State() DocumentCountsState {
	return vm.state.Get()
}

// Refresh recounts every type. On failure the previous counts are kept and
// the error is shown.
func (vm *DocumentCountsViewModel) Refresh(ctx context.Context) (DocumentCountsState, error) {
	vm.state.Update(func(s DocumentCountsState) DocumentCountsState {
		s.Loading = true
		s.Error = ""
		return s
	})

	counts := make([]DocumentTypeCount, 0, len(model.DocumentTypes))
	var total int64
	var err error
	for _, t := range model.DocumentTypes {
		var n int64
		if n, err = vm.docs.CountByType(ctx, t); err != nil {
			err = fmt.Errorf("count %s documents: %w", t, err)
			break
		}
		counts = append(counts, DocumentTypeCount{Type: t, Count: n})
		total += n
	}

	if err != nil {
		vm.log.Warn("Document counts not loaded", zap.Error(err))
	}
	state := vm.state.Update(func(s DocumentCountsState) DocumentCountsState {
		s.Loading = false
		if err != nil {
			s.Error = Message(err)
			return s
		}
		s.Counts = counts
		s.Total = total
		return s
	})
	return state, err
}

func (vm *DocumentCountsViewModel) ClearError() {
	vm.state.Update(func(s DocumentCountsState) DocumentCountsState {
		s.Error = ""
		return s
	})
}
