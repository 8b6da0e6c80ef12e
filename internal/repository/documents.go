package repository

import (
	"context"
	"fmt"

	"github.com/AndrewKorobchuk/tsd/internal/cache"
	"github.com/AndrewKorobchuk/tsd/internal/model"
	"github.com/AndrewKorobchuk/tsd/pkg/api"
	"github.com/AndrewKorobchuk/tsd/prometheus"

	"go.uber.org/zap"
)

const documentOrder = "created_at DESC, id DESC"

// DocumentFilter narrows the local document list. Zero fields are ignored.
type DocumentFilter struct {
	Type        model.DocumentType   `json:"type,omitempty" query:"type"`
	Status      model.DocumentStatus `json:"status,omitempty" query:"status"`
	WarehouseID int64                `json:"warehouse_id,omitempty" query:"warehouse_id"`
}

func (f DocumentFilter) scopes() []cache.Scope {
	scopes := make([]cache.Scope, 0, 4)
	if f.Type != "" {
		scopes = append(scopes, cache.Eq("document_type", f.Type))
	}
	if f.Status != "" {
		scopes = append(scopes, cache.Eq("status", f.Status))
	}
	if f.WarehouseID > 0 {
		scopes = append(scopes, cache.Eq("warehouse_id", f.WarehouseID))
	}
	return append(scopes, cache.OrderBy(documentOrder))
}

// DocumentsRepository keeps documents and their items. Every write goes to
// the backend first and is mirrored locally only after it succeeded.
type DocumentsRepository struct {
	store   *cache.Store
	docs    *cache.Table[model.Document]
	items   *cache.Table[model.DocumentItem]
	clients ClientSource
	log     *zap.Logger
}

func NewDocumentsRepository(store *cache.Store, clients ClientSource, log *zap.Logger) *DocumentsRepository {
	return &DocumentsRepository{
		store:   store,
		docs:    cache.NewTable[model.Document](store),
		items:   cache.NewTable[model.DocumentItem](store),
		clients: clients,
		log:     orNop(log),
	}
}

// AllDocuments is a live view of every document, newest first
func (r *DocumentsRepository) AllDocuments(ctx context.Context) *cache.Subscription[model.Document] {
	return r.Watch(ctx, DocumentFilter{})
}

func (r *DocumentsRepository) DocumentsByType(ctx context.Context, t model.DocumentType) *cache.Subscription[model.Document] {
	return r.Watch(ctx, DocumentFilter{Type: t})
}

func (r *DocumentsRepository) DocumentsByWarehouse(ctx context.Context, warehouseID int64) *cache.Subscription[model.Document] {
	return r.Watch(ctx, DocumentFilter{WarehouseID: warehouseID})
}

func (r *DocumentsRepository) DocumentsByStatus(ctx context.Context, status model.DocumentStatus) *cache.Subscription[model.Document] {
	return r.Watch(ctx, DocumentFilter{Status: status})
}

func (r *DocumentsRepository) DocumentsByTypeAndWarehouse(ctx context.Context, t model.DocumentType, warehouseID int64) *cache.Subscription[model.Document] {
	return r.Watch(ctx, DocumentFilter{Type: t, WarehouseID: warehouseID})
}

// Watch is a live view of the documents matching filter
func (r *DocumentsRepository) Watch(ctx context.Context, filter DocumentFilter) *cache.Subscription[model.Document] {
	return r.docs.Watch(ctx, filter.scopes()...)
}

// List returns the documents matching filter
func (r *DocumentsRepository) List(ctx context.Context, filter DocumentFilter) ([]model.Document, error) {
	return r.docs.Find(ctx, filter.scopes()...)
}

// ItemsByDocument is a live view of one document's items in creation order
func (r *DocumentsRepository) ItemsByDocument(ctx context.Context, documentID int64) *cache.Subscription[model.DocumentItem] {
	return r.items.Watch(ctx, cache.Eq("document_id", documentID), cache.OrderBy("id"))
}

func (r *DocumentsRepository) Items(ctx context.Context, documentID int64) ([]model.DocumentItem, error) {
	return r.items.Find(ctx, cache.Eq("document_id", documentID), cache.OrderBy("id"))
}

// ByID returns the cached document, or nil
func (r *DocumentsRepository) ByID(ctx context.Context, id int64) (*model.Document, error) {
	return r.docs.First(ctx, cache.Eq("id", id))
}

func (r *DocumentsRepository) Count(ctx context.Context) (int64, error) {
	return r.docs.Count(ctx)
}

func (r *DocumentsRepository) CountByType(ctx context.Context, t model.DocumentType) (int64, error) {
	return r.docs.Count(ctx, cache.Eq("document_type", t))
}

func (r *DocumentsRepository) ItemCount(ctx context.Context, documentID int64) (int64, error) {
	return r.items.Count(ctx, cache.Eq("document_id", documentID))
}

// SyncFromServer replaces the cached documents with the server list. Items
// whose document is gone are removed in the same transaction.
func (r *DocumentsRepository) SyncFromServer(ctx context.Context, token string) (int, error) {
	client, err := r.clients.Client()
	if err != nil {
		return 0, err
	}

	docs, err := client.ListDocuments(ctx, token, api.DocumentFilter{Limit: SyncLimit})
	if err == nil {
		for i := range docs {
			docs[i].Normalize()
		}
		// Swap documents and prune orphan items together
		err = r.store.Transaction(ctx, func(tx *cache.Tx) error {
			if err := r.docs.ReplaceTx(tx, docs); err != nil {
				return err
			}
			_, err := r.items.DeleteTx(tx, cache.Where(
				"document_id NOT IN (?)", tx.DB().Model(&model.Document{}).Select("id"),
			))
			return err
		})
	}
	// Record the attempt whether or not it succeeded
	prometheus.RecordSync("documents", len(docs), err)

	if err != nil {
		r.log.Warn("Document sync failed", zap.Error(err))
		return 0, fmt.Errorf("sync documents: %w", err)
	}

	r.log.Info("Document sync completed", zap.Int("rows", len(docs)))
	return len(docs), nil
}

// RefreshDocument fetches one document with its items and replaces the
// cached copy of both.
func (r *DocumentsRepository) RefreshDocument(ctx context.Context, token string, id int64) (*model.Document, error) {
	client, err := r.clients.Client()
	if err != nil {
		return nil, err
	}

	doc, err := client.GetDocument(ctx, token, id)
	if err != nil {
		return nil, err
	}
	doc.Normalize()
	for i := range doc.Items {
		if doc.Items[i].DocumentID == 0 {
			doc.Items[i].DocumentID = doc.ID
		}
	}

	err = r.store.Transaction(ctx, func(tx *cache.Tx) error {
		if err := r.docs.UpsertTx(tx, *doc); err != nil {
			return err
		}
		if _, err := r.items.DeleteTx(tx, cache.Eq("document_id", doc.ID)); err != nil {
			return err
		}
		return r.items.UpsertTx(tx, doc.Items...)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// CreateDocument creates a document header on the server and caches it
func (r *DocumentsRepository) CreateDocument(ctx context.Context, token string, in api.DocumentCreateRequest) (*model.Document, error) {
	client, err := r.clients.Client()
	if err != nil {
		return nil, err
	}

	created, err := client.CreateDocument(ctx, token, in)
	if err != nil {
		return nil, err
	}
	created.Normalize()

	if err := r.docs.Upsert(ctx, *created); err != nil {
		return nil, err
	}
	r.log.Info("Document created",
		zap.Int64("document_id", created.ID),
		zap.String("number", created.DocumentNumber))
	return created, nil
}

// UpdateDocument changes a document header on the server and mirrors it locally
func (r *DocumentsRepository) UpdateDocument(ctx context.Context, token string, id int64, in api.DocumentUpdateRequest) (*model.Document, error) {
	client, err := r.clients.Client()
	if err != nil {
		return nil, err
	}

	updated, err := client.UpdateDocument(ctx, token, id, in)
	if err != nil {
		return nil, err
	}
	updated.Normalize()

	if err := r.docs.Upsert(ctx, *updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// PostDocument posts a document on the server and marks the cached copy posted
func (r *DocumentsRepository) PostDocument(ctx context.Context, token string, id int64) error {
	client, err := r.clients.Client()
	if err != nil {
		return err
	}

	if err := client.PostDocument(ctx, token, id); err != nil {
		return err
	}
	return r.setStatus(ctx, id, model.DocumentStatusPosted)
}

// CancelDocument cancels a document on the server and marks the cached copy cancelled
func (r *DocumentsRepository) CancelDocument(ctx context.Context, token string, id int64) error {
	client, err := r.clients.Client()
	if err != nil {
		return err
	}

	if err := client.CancelDocument(ctx, token, id); err != nil {
		return err
	}
	return r.setStatus(ctx, id, model.DocumentStatusCancelled)
}

// DeleteDocument deletes a document on the server, then removes it and its
// items from the cache.
func (r *DocumentsRepository) DeleteDocument(ctx context.Context, token string, id int64) error {
	client, err := r.clients.Client()
	if err != nil {
		return err
	}

	if err := client.DeleteDocument(ctx, token, id); err != nil {
		return err
	}

	return r.store.Transaction(ctx, func(tx *cache.Tx) error {
		if _, err := r.items.DeleteTx(tx, cache.Eq("document_id", id)); err != nil {
			return err
		}
		_, err := r.docs.DeleteTx(tx, cache.Eq("id", id))
		return err
	})
}

// CreateDocumentItem adds a line to a document on the server and caches it
func (r *DocumentsRepository) CreateDocumentItem(ctx context.Context, token string, documentID int64, in api.DocumentItemRequest) (*model.DocumentItem, error) {
	client, err := r.clients.Client()
	if err != nil {
		return nil, err
	}

	created, err := client.CreateDocumentItem(ctx, token, documentID, in)
	if err != nil {
		return nil, err
	}
	if created.DocumentID == 0 {
		created.DocumentID = documentID
	}

	if err := r.items.Upsert(ctx, *created); err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateDocumentItem changes a line on the server and mirrors it locally
func (r *DocumentsRepository) UpdateDocumentItem(ctx context.Context, token string, itemID int64, in api.DocumentItemRequest) (*model.DocumentItem, error) {
	client, err := r.clients.Client()
	if err != nil {
		return nil, err
	}

	updated, err := client.UpdateDocumentItem(ctx, token, itemID, in)
	if err != nil {
		return nil, err
	}
	if updated.DocumentID == 0 {
		if existing, err := r.items.First(ctx, cache.Eq("id", itemID)); err == nil && existing != nil {
			updated.DocumentID = existing.DocumentID
		}
	}

	if err := r.items.Upsert(ctx, *updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteDocumentItem removes a line on the server, then from the cache
func (r *DocumentsRepository) DeleteDocumentItem(ctx context.Context, token string, itemID int64) error {
	client, err := r.clients.Client()
	if err != nil {
		return err
	}

	if err := client.DeleteDocumentItem(ctx, token, itemID); err != nil {
		return err
	}
	_, err = r.items.Delete(ctx, cache.Eq("id", itemID))
	return err
}

func (r *DocumentsRepository) setStatus(ctx context.Context, id int64, status model.DocumentStatus) error {
	return r.store.Transaction(ctx, func(tx *cache.Tx) error {
		docs, err := r.docs.FindTx(tx, cache.Eq("id", id))
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			// Not cached yet; the next sync brings it in with the new status
			return nil
		}
		doc := docs[0]
		doc.Status = status
		return r.docs.UpsertTx(tx, doc)
	})
}
