package viewmodel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/AndrewKorobchuk/tsd/internal/model"
	"github.com/AndrewKorobchuk/tsd/pkg/api"
	"github.com/AndrewKorobchuk/tsd/prometheus"

	"github.com/looplab/fsm"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Draft states
const (
	StateEmpty  = "empty"
	StateFilled = "filled"
	StateSaving = "saving"
	StateSaved  = "saved"
)

const (
	eventFill    = "fill"
	eventClear   = "clear"
	eventSave    = "save"
	eventSucceed = "succeed"
	eventFail    = "fail"
	eventReset   = "reset"
)

type TokenSource interface {
	AccessToken() (string, error)
}

type DocumentCreator interface {
	CreateDocument(ctx context.Context, token string, in api.DocumentCreateRequest) (*model.Document, error)
	CreateDocumentItem(ctx context.Context, token string, documentID int64, in api.DocumentItemRequest) (*model.DocumentItem, error)
}

type DocumentNumberer interface {
	NextDocumentNumber(ctx context.Context, token, documentType string) (string, error)
	FallbackDocumentNumber(now time.Time) string
}

type BarcodeResolver interface {
	Lookup(ctx context.Context, token, value string) (*model.Barcode, error)
}

type NomenclatureFinder interface {
	ByID(ctx context.Context, id int64) (*model.Nomenclature, error)
}

type WarehouseFinder interface {
	ByID(ctx context.Context, id int64) (*model.Warehouse, error)
}

type UnitFinder interface {
	ByID(ctx context.Context, id int64) (*model.UnitOfMeasure, error)
}

// DocumentCreateDeps are the collaborators of the document creation workflow
type DocumentCreateDeps struct {
	Documents    DocumentCreator
	Numbers      DocumentNumberer
	Barcodes     BarcodeResolver
	Nomenclature NomenclatureFinder
	Warehouses   WarehouseFinder
	Units        UnitFinder
	Tokens       TokenSource
}

// DocumentCreateState is the published snapshot of the workflow
type DocumentCreateState struct {
	State    string          `json:"state"`
	Draft    Draft           `json:"draft"`
	Error    string          `json:"error,omitempty"`
	Document *model.Document `json:"document,omitempty"`
}

type DocumentCreateOption func(*DocumentCreateViewModel)

// WithCreateClock replaces time.Now for dates and fallback numbers
func WithCreateClock(now func() time.Time) DocumentCreateOption {
	return func(vm *DocumentCreateViewModel) {
		vm.clock = now
	}
}

// DocumentCreateViewModel composes a new document and saves it: the header
// first, then every line in order. A failed line leaves the header and the
// earlier lines on the server; saving again resumes with the failed line.
type DocumentCreateViewModel struct {
	deps    DocumentCreateDeps
	docType model.DocumentType
	clock   func() time.Time
	log     *zap.Logger

	mu       sync.Mutex
	machine  *fsm.FSM
	draft    Draft
	document *model.Document
	errMsg   string
	state    *Observable[DocumentCreateState]
}

func NewDocumentCreateViewModel(deps DocumentCreateDeps, docType model.DocumentType, log *zap.Logger, opts ...DocumentCreateOption) *DocumentCreateViewModel {
	if log == nil {
		log = zap.NewNop()
	}
	vm := &DocumentCreateViewModel{
		deps:    deps,
		docType: model.ParseDocumentType(string(docType)),
		clock:   time.Now,
		log:     log,
	}
	for _, opt := range opts {
		opt(vm)
	}

	vm.machine = fsm.NewFSM(
		StateEmpty,
		fsm.Events{
			{Name: eventFill, Src: []string{StateEmpty}, Dst: StateFilled},
			{Name: eventClear, Src: []string{StateFilled}, Dst: StateEmpty},
			{Name: eventSave, Src: []string{StateFilled}, Dst: StateSaving},
			{Name: eventSucceed, Src: []string{StateSaving}, Dst: StateSaved},
			{Name: eventFail, Src: []string{StateSaving}, Dst: StateFilled},
			{Name: eventReset, Src: []string{StateEmpty, StateFilled, StateSaved}, Dst: StateEmpty},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				vm.log.Debug("Draft state changed", zap.String("from", e.Src), zap.String("to", e.Dst))
			},
		},
	)
	vm.draft = newDraft(vm.docType, vm.clock())
	vm.state = NewObservable(vm.snapshot())
	return vm
}

// State returns the current snapshot
func (vm *DocumentCreateViewModel) State() DocumentCreateState {
	return vm.state.Get()
}

// Observe streams state snapshots until cancel is called
func (vm *DocumentCreateViewModel) Observe() (<-chan DocumentCreateState, func()) {
	return vm.state.Subscribe()
}

// GenerateDocumentNumber asks the backend for the next number and falls
// back to a local one when that fails.
func (vm *DocumentCreateViewModel) GenerateDocumentNumber(ctx context.Context) (string, error) {
	if err := vm.checkHeaderEditable(); err != nil {
		return "", err
	}

	number, err := vm.remoteNumber(ctx)
	if err != nil {
		vm.log.Warn("Document number from server unavailable, using local fallback", zap.Error(err))
		number = vm.deps.Numbers.FallbackDocumentNumber(vm.clock())
	}

	return number, vm.mutateHeader(ctx, func(d *Draft) error {
		d.Number = number
		return nil
	})
}

func (vm *DocumentCreateViewModel) remoteNumber(ctx context.Context) (string, error) {
	token, err := vm.deps.Tokens.AccessToken()
	if err != nil {
		return "", err
	}
	return vm.deps.Numbers.NextDocumentNumber(ctx, token, "")
}

func (vm *DocumentCreateViewModel) SetDocumentNumber(ctx context.Context, number string) error {
	return vm.UpdateHeader(ctx, HeaderUpdate{Number: &number})
}

// SetWarehouse selects a cached warehouse. Zero clears the selection.
func (vm *DocumentCreateViewModel) SetWarehouse(ctx context.Context, warehouseID int64) error {
	return vm.UpdateHeader(ctx, HeaderUpdate{WarehouseID: &warehouseID})
}

// HeaderUpdate carries the header fields to change. Nil fields are kept.
type HeaderUpdate struct {
	Type        *model.DocumentType
	Number      *string
	WarehouseID *int64
	Date        *time.Time
	Description *string
}

// UpdateHeader checks every field of u and then applies them together, so
// a rejected field leaves the whole header unchanged.
func (vm *DocumentCreateViewModel) UpdateHeader(ctx context.Context, u HeaderUpdate) error {
	var warehouse string
	if u.WarehouseID != nil {
		name, err := vm.warehouseName(ctx, *u.WarehouseID)
		if err != nil {
			return err
		}
		warehouse = name
	}

	return vm.mutateHeader(ctx, func(d *Draft) error {
		if u.Type != nil {
			d.Type = model.ParseDocumentType(string(*u.Type))
		}
		if u.Number != nil {
			d.Number = strings.TrimSpace(*u.Number)
		}
		if u.WarehouseID != nil {
			d.WarehouseID = *u.WarehouseID
			d.WarehouseName = warehouse
		}
		if u.Date != nil {
			d.Date = *u.Date
		}
		if u.Description != nil {
			d.Description = *u.Description
		}
		return nil
	})
}

func (vm *DocumentCreateViewModel) warehouseName(ctx context.Context, warehouseID int64) (string, error) {
	if warehouseID == 0 {
		return "", nil
	}
	w, err := vm.deps.Warehouses.ByID(ctx, warehouseID)
	if err != nil {
		return "", err
	}
	if w == nil || !w.IsActive {
		return "", &ValidationError{Field: "warehouse_id", Message: "Warehouse not found"}
	}
	return w.Name, nil
}

func (vm *DocumentCreateViewModel) SetDate(ctx context.Context, date time.Time) error {
	return vm.UpdateHeader(ctx, HeaderUpdate{Date: &date})
}

func (vm *DocumentCreateViewModel) SetDescription(ctx context.Context, description string) error {
	return vm.UpdateHeader(ctx, HeaderUpdate{Description: &description})
}

func (vm *DocumentCreateViewModel) SetType(ctx context.Context, t model.DocumentType) error {
	return vm.UpdateHeader(ctx, HeaderUpdate{Type: &t})
}

// AddItem appends a line
func (vm *DocumentCreateViewModel) AddItem(ctx context.Context, item DraftItem) error {
	item.ItemID = 0
	if err := item.validate(); err != nil {
		return err
	}
	return vm.mutate(ctx, func(d *Draft) error {
		d.Items = append(d.Items, item)
		return nil
	})
}

// AddItemByBarcode resolves a scanned value and adds quantity of it. A
// repeated scan of the same barcode increases the existing unsaved line.
func (vm *DocumentCreateViewModel) AddItemByBarcode(ctx context.Context, value string, quantity decimal.Decimal) (DraftItem, error) {
	if err := vm.checkEditable(); err != nil {
		return DraftItem{}, err
	}
	if quantity.IsZero() {
		quantity = decimal.NewFromInt(1)
	}

	token, err := vm.deps.Tokens.AccessToken()
	if err != nil {
		return DraftItem{}, err
	}
	barcode, err := vm.deps.Barcodes.Lookup(ctx, token, value)
	if err != nil {
		return DraftItem{}, err
	}

	item := DraftItem{
		NomenclatureID:   barcode.NomenclatureID,
		NomenclatureName: deref(barcode.NomenclatureName),
		UnitID:           barcode.UnitID,
		UnitName:         deref(barcode.UnitShortName),
		Barcode:          barcode.Barcode,
		Quantity:         quantity,
	}
	if err := item.validate(); err != nil {
		return DraftItem{}, err
	}

	var added DraftItem
	err = vm.mutate(ctx, func(d *Draft) error {
		for i := range d.Items {
			existing := &d.Items[i]
			if !existing.persisted() && existing.Barcode == item.Barcode && existing.UnitID == item.UnitID {
				existing.Quantity = existing.Quantity.Add(quantity)
				added = *existing
				return nil
			}
		}
		d.Items = append(d.Items, item)
		added = item
		return nil
	})
	return added, err
}

// AddItemByNomenclature adds a cached nomenclature item in its base unit
func (vm *DocumentCreateViewModel) AddItemByNomenclature(ctx context.Context, nomenclatureID int64, quantity decimal.Decimal) (DraftItem, error) {
	if err := vm.checkEditable(); err != nil {
		return DraftItem{}, err
	}
	if quantity.IsZero() {
		quantity = decimal.NewFromInt(1)
	}

	n, err := vm.deps.Nomenclature.ByID(ctx, nomenclatureID)
	if err != nil {
		return DraftItem{}, err
	}
	if n == nil || !n.IsActive {
		return DraftItem{}, &ValidationError{Field: "nomenclature_id", Message: "Nomenclature item not found"}
	}

	item := DraftItem{
		NomenclatureID:   n.ID,
		NomenclatureName: n.Name,
		UnitID:           n.BaseUnitID,
		Quantity:         quantity,
	}
	if vm.deps.Units != nil {
		if unit, err := vm.deps.Units.ByID(ctx, n.BaseUnitID); err == nil && unit != nil {
			item.UnitName = unit.ShortName
		}
	}
	if err := item.validate(); err != nil {
		return DraftItem{}, err
	}

	return item, vm.mutate(ctx, func(d *Draft) error {
		d.Items = append(d.Items, item)
		return nil
	})
}

// UpdateItem replaces the unsaved line at index
func (vm *DocumentCreateViewModel) UpdateItem(ctx context.Context, index int, item DraftItem) error {
	item.ItemID = 0
	if err := item.validate(); err != nil {
		return err
	}
	return vm.mutate(ctx, func(d *Draft) error {
		if err := d.editableItem(index); err != nil {
			return err
		}
		d.Items[index] = item
		return nil
	})
}

// RemoveItem drops the unsaved line at index
func (vm *DocumentCreateViewModel) RemoveItem(ctx context.Context, index int) error {
	return vm.mutate(ctx, func(d *Draft) error {
		if err := d.editableItem(index); err != nil {
			return err
		}
		d.Items = append(d.Items[:index], d.Items[index+1:]...)
		return nil
	})
}

// ClearItems drops every line not yet saved on the server
func (vm *DocumentCreateViewModel) ClearItems(ctx context.Context) error {
	return vm.mutate(ctx, func(d *Draft) error {
		kept := d.Items[:0]
		for _, it := range d.Items {
			if it.persisted() {
				kept = append(kept, it)
			}
		}
		d.Items = kept
		return nil
	})
}

func (d *Draft) editableItem(index int) error {
	if index < 0 || index >= len(d.Items) {
		return fmt.Errorf("%w: %d", ErrNoSuchItem, index+1)
	}
	if d.Items[index].persisted() {
		return fmt.Errorf("%w: item %d", ErrItemPersisted, index+1)
	}
	return nil
}

// Save validates the draft and submits it. Validation failures make no
// network call. A blank number is replaced by a local fallback number.
func (vm *DocumentCreateViewModel) Save(ctx context.Context) (*model.Document, error) {
	vm.mu.Lock()
	if err := vm.editableLocked(); err != nil {
		vm.mu.Unlock()
		return nil, err
	}
	if err := vm.draft.validate(); err != nil {
		vm.errMsg = Message(err)
		vm.publishLocked()
		vm.mu.Unlock()
		return nil, err
	}
	if vm.document == nil && strings.TrimSpace(vm.draft.Number) == "" {
		vm.draft.Number = vm.deps.Numbers.FallbackDocumentNumber(vm.clock())
	}
	if err := vm.fire(ctx, eventSave); err != nil {
		vm.mu.Unlock()
		return nil, err
	}
	vm.errMsg = ""
	draft := vm.draft.clone()
	doc := vm.document
	vm.publishLocked()
	vm.mu.Unlock()

	log := vm.log.With(zap.String("number", draft.Number), zap.Int("items", len(draft.Items)))
	doc, items, err := vm.submit(ctx, draft, doc)

	vm.mu.Lock()
	defer vm.mu.Unlock()

	vm.document = doc
	vm.draft.Items = items
	if err != nil {
		outcome := "failed"
		if doc != nil {
			outcome = "partial"
		}
		prometheus.RecordDocumentSave(outcome)
		log.Warn("Document save failed", zap.String("outcome", outcome), zap.Error(err))

		vm.errMsg = Message(err)
		if fireErr := vm.fire(ctx, eventFail); fireErr != nil {
			err = errors.Join(err, fireErr)
		}
		vm.publishLocked()
		return doc, err
	}

	prometheus.RecordDocumentSave("saved")
	log.Info("Document saved", zap.Int64("document_id", doc.ID))

	if err := vm.fire(ctx, eventSucceed); err != nil {
		return doc, err
	}
	vm.publishLocked()
	return doc, nil
}

func (vm *DocumentCreateViewModel) submit(ctx context.Context, draft Draft, doc *model.Document) (*model.Document, []DraftItem, error) {
	items := draft.Items

	token, err := vm.deps.Tokens.AccessToken()
	if err != nil {
		return doc, items, err
	}

	if doc == nil {
		doc, err = vm.deps.Documents.CreateDocument(ctx, token, draft.createRequest())
		if err != nil {
			return nil, items, fmt.Errorf("create document: %w", err)
		}
	}

	for i := range items {
		if items[i].persisted() {
			continue
		}
		created, err := vm.deps.Documents.CreateDocumentItem(ctx, token, doc.ID, items[i].request())
		if err != nil {
			return doc, items, &ItemSaveError{Index: i, Item: items[i], Err: err}
		}
		items[i].ItemID = created.ID
	}
	return doc, items, nil
}

// Reset discards the draft and starts an empty one
func (vm *DocumentCreateViewModel) Reset(ctx context.Context) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.machine.Current() == StateSaving {
		return ErrSaving
	}
	if err := vm.fire(ctx, eventReset); err != nil {
		return err
	}
	vm.draft = newDraft(vm.docType, vm.clock())
	vm.document = nil
	vm.errMsg = ""
	vm.publishLocked()
	return nil
}

func (vm *DocumentCreateViewModel) ClearError() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.errMsg = ""
	vm.publishLocked()
}

func (vm *DocumentCreateViewModel) checkEditable() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.editableLocked()
}

func (vm *DocumentCreateViewModel) checkHeaderEditable() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if err := vm.editableLocked(); err != nil {
		return err
	}
	if vm.document != nil {
		return ErrHeaderPersisted
	}
	return nil
}

func (vm *DocumentCreateViewModel) editableLocked() error {
	switch vm.machine.Current() {
	case StateSaving:
		return ErrSaving
	case StateSaved:
		return ErrAlreadySaved
	}
	return nil
}

// mutate applies fn to the draft and moves between empty and filled
func (vm *DocumentCreateViewModel) mutate(ctx context.Context, fn func(*Draft) error) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if err := vm.editableLocked(); err != nil {
		return err
	}
	if err := fn(&vm.draft); err != nil {
		return err
	}

	var err error
	filled := vm.draft.filled()
	switch current := vm.machine.Current(); {
	case filled && current == StateEmpty:
		err = vm.fire(ctx, eventFill)
	case !filled && current == StateFilled:
		err = vm.fire(ctx, eventClear)
	}
	vm.publishLocked()
	return err
}

func (vm *DocumentCreateViewModel) mutateHeader(ctx context.Context, fn func(*Draft) error) error {
	return vm.mutate(ctx, func(d *Draft) error {
		if vm.document != nil {
			return ErrHeaderPersisted
		}
		return fn(d)
	})
}

func (vm *DocumentCreateViewModel) fire(ctx context.Context, event string) error {
	err := vm.machine.Event(ctx, event)
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}
	return err
}

func (vm *DocumentCreateViewModel) snapshot() DocumentCreateState {
	return DocumentCreateState{
		State:    vm.machine.Current(),
		Draft:    vm.draft.clone(),
		Error:    vm.errMsg,
		Document: vm.document,
	}
}

func (vm *DocumentCreateViewModel) publishLocked() {
	vm.state.Set(vm.snapshot())
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
