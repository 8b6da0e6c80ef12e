package repository

import (
	"context"
	"net/http"
	"testing"

	"github.com/AndrewKorobchuk/tsd/internal/model"
	"github.com/AndrewKorobchuk/tsd/pkg/api"

	"github.com/h2non/gock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedDocument(t *testing.T, repo *DocumentsRepository, doc model.Document, items ...model.DocumentItem) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.docs.Upsert(ctx, doc))
	if len(items) > 0 {
		require.NoError(t, repo.items.Upsert(ctx, items...))
	}
}

func draftDocument(id int64, number string) model.Document {
	return model.Document{
		ID:             id,
		DocumentType:   model.DocumentTypeReceipt,
		DocumentNumber: number,
		WarehouseID:    1,
		Date:           "2026-03-01T09:30:00",
		Status:         model.DocumentStatusDraft,
		CreatedAt:      "2026-03-01T09:30:00",
	}
}

func TestDocumentSyncDropsOrphanItems(t *testing.T) {
	defer gock.OffAll()
	env := newTestEnv(t)
	ctx := context.Background()
	repo := NewDocumentsRepository(env.cache, env.clients, nil)

	seedDocument(t, repo, draftDocument(1, "A-1"), model.DocumentItem{ID: 10, DocumentID: 1})
	seedDocument(t, repo, draftDocument(2, "A-2"), model.DocumentItem{ID: 20, DocumentID: 2})

	gock.New(backendURL).
		Get("/api/v1/documents/$").
		MatchParam("limit", "^1000$").
		Reply(http.StatusOK).
		JSON([]map[string]interface{}{
			{"id": 2, "document_type": "expense", "document_number": "A-2", "warehouse_id": 1,
				"date": "2026-03-01T09:30:00", "status": "posted", "created_at": "2026-03-01T09:30:00"},
			{"id": 3, "document_type": "mystery", "document_number": "A-3", "warehouse_id": 2,
				"date": "2026-03-02T09:30:00", "status": "archived", "created_at": "2026-03-02T09:30:00"},
		})

	n, err := repo.SyncFromServer(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	docs, err := repo.List(ctx, DocumentFilter{})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, int64(3), docs[0].ID)
	assert.Equal(t, model.DocumentTypeReceipt, docs[0].DocumentType)
	assert.Equal(t, model.DocumentStatusDraft, docs[0].Status)

	orphan, err := repo.ItemCount(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, orphan)

	kept, err := repo.ItemCount(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), kept)
}

func TestDocumentFilter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	repo := NewDocumentsRepository(env.cache, env.clients, nil)

	a := draftDocument(1, "A-1")
	b := draftDocument(2, "A-2")
	b.DocumentType = model.DocumentTypeExpense
	b.WarehouseID = 2
	c := draftDocument(3, "A-3")
	c.Status = model.DocumentStatusPosted
	seedDocument(t, repo, a)
	seedDocument(t, repo, b)
	seedDocument(t, repo, c)

	docs, err := repo.List(ctx, DocumentFilter{Type: model.DocumentTypeReceipt, Status: model.DocumentStatusDraft})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, int64(1), docs[0].ID)

	docs, err = repo.List(ctx, DocumentFilter{WarehouseID: 2})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, int64(2), docs[0].ID)

	n, err := repo.CountByType(ctx, model.DocumentTypeReceipt)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestPostDocumentUpdatesCachedStatus(t *testing.T) {
	defer gock.OffAll()
	env := newTestEnv(t)
	ctx := context.Background()
	repo := NewDocumentsRepository(env.cache, env.clients, nil)
	seedDocument(t, repo, draftDocument(9, "A-9"))

	gock.New(backendURL).
		Patch("/api/v1/documents/9/post$").
		Reply(http.StatusOK).
		JSON(map[string]string{"message": "Document posted"})

	require.NoError(t, repo.PostDocument(ctx, "tok", 9))

	doc, err := repo.ByID(ctx, 9)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, model.DocumentStatusPosted, doc.Status)
}

func TestFailedCancelLeavesDocumentUntouched(t *testing.T) {
	defer gock.OffAll()
	env := newTestEnv(t)
	ctx := context.Background()
	repo := NewDocumentsRepository(env.cache, env.clients, nil)
	seedDocument(t, repo, draftDocument(9, "A-9"))

	gock.New(backendURL).
		Patch("/api/v1/documents/9/cancel$").
		Reply(http.StatusBadRequest).
		JSON(map[string]string{"detail": "Only posted documents can be cancelled"})

	require.Error(t, repo.CancelDocument(ctx, "tok", 9))

	doc, err := repo.ByID(ctx, 9)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, model.DocumentStatusDraft, doc.Status)
}

func TestDeleteDocumentRemovesItems(t *testing.T) {
	defer gock.OffAll()
	env := newTestEnv(t)
	ctx := context.Background()
	repo := NewDocumentsRepository(env.cache, env.clients, nil)
	seedDocument(t, repo, draftDocument(5, "A-5"),
		model.DocumentItem{ID: 50, DocumentID: 5},
		model.DocumentItem{ID: 51, DocumentID: 5},
	)

	gock.New(backendURL).
		Delete("/api/v1/documents/5$").
		Reply(http.StatusOK).
		JSON(map[string]string{"message": "Document deleted"})

	require.NoError(t, repo.DeleteDocument(ctx, "tok", 5))

	doc, err := repo.ByID(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, doc)

	n, err := repo.ItemCount(ctx, 5)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteDocumentItemKeepsCacheOnFailure(t *testing.T) {
	defer gock.OffAll()
	env := newTestEnv(t)
	ctx := context.Background()
	repo := NewDocumentsRepository(env.cache, env.clients, nil)
	seedDocument(t, repo, draftDocument(5, "A-5"), model.DocumentItem{ID: 50, DocumentID: 5})

	gock.New(backendURL).
		Delete("/api/v1/documents/items/50$").
		Reply(http.StatusInternalServerError).
		JSON(map[string]string{"detail": "boom"})
	gock.New(backendURL).
		Delete("/api/v1/documents/items/50$").
		Reply(http.StatusOK).
		JSON(map[string]string{"message": "Item deleted"})

	require.Error(t, repo.DeleteDocumentItem(ctx, "tok", 50))
	n, err := repo.ItemCount(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, repo.DeleteDocumentItem(ctx, "tok", 50))
	n, err = repo.ItemCount(ctx, 5)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRefreshDocumentReplacesItems(t *testing.T) {
	defer gock.OffAll()
	env := newTestEnv(t)
	ctx := context.Background()
	repo := NewDocumentsRepository(env.cache, env.clients, nil)
	seedDocument(t, repo, draftDocument(7, "A-7"), model.DocumentItem{ID: 70, DocumentID: 7})

	gock.New(backendURL).
		Get("/api/v1/documents/7$").
		Reply(http.StatusOK).
		JSON(map[string]interface{}{
			"id": 7, "document_type": "receipt", "document_number": "A-7", "warehouse_id": 1,
			"date": "2026-03-01T09:30:00", "status": "posted", "created_at": "2026-03-01T09:30:00",
			"items": []map[string]interface{}{
				{"id": 71, "nomenclature_id": 3, "quantity": 4, "unit_id": 1, "created_at": "2026-03-01T09:31:00"},
				{"id": 72, "document_id": 7, "nomenclature_id": 4, "quantity": 1.5, "unit_id": 2, "created_at": "2026-03-01T09:32:00"},
			},
		})

	doc, err := repo.RefreshDocument(ctx, "tok", 7)
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatusPosted, doc.Status)

	items, err := repo.Items(ctx, 7)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(71), items[0].ID)
	assert.Equal(t, "1.5", items[1].Quantity.String())
}

func TestCreateDocumentCachesResult(t *testing.T) {
	defer gock.OffAll()
	env := newTestEnv(t)
	ctx := context.Background()
	repo := NewDocumentsRepository(env.cache, env.clients, nil)

	sub := repo.AllDocuments(ctx)
	defer sub.Close()
	assert.Empty(t, receive(t, sub))

	gock.New(backendURL).
		Post("/api/v1/documents/$").
		BodyString(`"document_number":"T01-1"`).
		Reply(http.StatusOK).
		JSON(map[string]interface{}{
			"id": 11, "document_type": "receipt", "document_number": "T01-1", "warehouse_id": 1,
			"date": "2026-03-01T09:30:00", "status": "draft", "created_at": "2026-03-01T09:30:00",
		})

	created, err := repo.CreateDocument(ctx, "tok", api.DocumentCreateRequest{
		DocumentType:   model.DocumentTypeReceipt,
		DocumentNumber: "T01-1",
		WarehouseID:    1,
		Date:           "2026-03-01T09:30:00",
		Status:         model.DocumentStatusDraft,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), created.ID)

	docs := receive(t, sub)
	require.Len(t, docs, 1)
	assert.Equal(t, "T01-1", docs[0].DocumentNumber)
}

func TestUpdateDocumentMirrorsServerHeader(t *testing.T) {
	defer gock.OffAll()
	env := newTestEnv(t)
	ctx := context.Background()
	repo := NewDocumentsRepository(env.cache, env.clients, nil)
	seedDocument(t, repo, draftDocument(12, "A-12"))

	gock.New(backendURL).
		Put("/api/v1/documents/12$").
		Reply(http.StatusUnprocessableEntity).
		JSON(map[string]string{"detail": "Warehouse not found"})
	gock.New(backendURL).
		Put("/api/v1/documents/12$").
		BodyString(`"document_number":"A-12b"`).
		Reply(http.StatusOK).
		JSON(map[string]interface{}{
			"id": 12, "document_type": "receipt", "document_number": "A-12b", "warehouse_id": 3,
			"date": "2026-03-02T08:00:00", "status": "draft", "description": "moved",
			"created_at": "2026-03-01T09:30:00",
		})

	req := api.DocumentUpdateRequest{
		DocumentNumber: "A-12b",
		WarehouseID:    3,
		Date:           "2026-03-02T08:00:00",
		Status:         model.DocumentStatusDraft,
		Description:    strPtr("moved"),
	}

	_, err := repo.UpdateDocument(ctx, "tok", 12, req)
	require.Error(t, err)
	cached, err := repo.ByID(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, "A-12", cached.DocumentNumber)
	assert.Equal(t, int64(1), cached.WarehouseID)

	updated, err := repo.UpdateDocument(ctx, "tok", 12, req)
	require.NoError(t, err)
	assert.Equal(t, "A-12b", updated.DocumentNumber)

	cached, err = repo.ByID(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, "A-12b", cached.DocumentNumber)
	assert.Equal(t, int64(3), cached.WarehouseID)
	require.NotNil(t, cached.Description)
	assert.Equal(t, "moved", *cached.Description)
	assert.True(t, gock.IsDone())
}

func TestCreateDocumentItemCachesLine(t *testing.T) {
	defer gock.OffAll()
	env := newTestEnv(t)
	ctx := context.Background()
	repo := NewDocumentsRepository(env.cache, env.clients, nil)
	seedDocument(t, repo, draftDocument(13, "A-13"))

	gock.New(backendURL).
		Post("/api/v1/documents/13/items$").
		Reply(http.StatusBadRequest).
		JSON(map[string]string{"detail": "Document is posted"})
	gock.New(backendURL).
		Post("/api/v1/documents/13/items$").
		Reply(http.StatusOK).
		JSON(map[string]interface{}{
			"id": 130, "nomenclature_id": 3, "quantity": 2.5, "unit_id": 1,
			"created_at": "2026-03-01T09:31:00",
		})

	req := api.DocumentItemRequest{NomenclatureID: 3, Quantity: decimal.RequireFromString("2.5"), UnitID: 1}

	_, err := repo.CreateDocumentItem(ctx, "tok", 13, req)
	require.Error(t, err)
	n, err := repo.ItemCount(ctx, 13)
	require.NoError(t, err)
	assert.Zero(t, n)

	created, err := repo.CreateDocumentItem(ctx, "tok", 13, req)
	require.NoError(t, err)
	assert.Equal(t, int64(13), created.DocumentID)

	items, err := repo.Items(ctx, 13)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(130), items[0].ID)
	assert.Equal(t, "2.5", items[0].Quantity.String())
}

func TestUpdateDocumentItemKeepsDocumentLink(t *testing.T) {
	defer gock.OffAll()
	env := newTestEnv(t)
	ctx := context.Background()
	repo := NewDocumentsRepository(env.cache, env.clients, nil)
	seedDocument(t, repo, draftDocument(14, "A-14"),
		model.DocumentItem{ID: 140, DocumentID: 14, NomenclatureID: 3, Quantity: decimal.NewFromInt(1), UnitID: 1})

	gock.New(backendURL).
		Put("/api/v1/documents/items/140$").
		Reply(http.StatusNotFound).
		JSON(map[string]string{"detail": "Item not found"})
	gock.New(backendURL).
		Put("/api/v1/documents/items/140$").
		Reply(http.StatusOK).
		JSON(map[string]interface{}{
			"id": 140, "nomenclature_id": 3, "quantity": 7, "unit_id": 1,
			"created_at": "2026-03-01T09:31:00",
		})

	req := api.DocumentItemRequest{NomenclatureID: 3, Quantity: decimal.NewFromInt(7), UnitID: 1}

	_, err := repo.UpdateDocumentItem(ctx, "tok", 140, req)
	require.Error(t, err)
	items, err := repo.Items(ctx, 14)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "1", items[0].Quantity.String())

	updated, err := repo.UpdateDocumentItem(ctx, "tok", 140, req)
	require.NoError(t, err)
	assert.Equal(t, int64(14), updated.DocumentID)

	items, err = repo.Items(ctx, 14)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "7", items[0].Quantity.String())
}

func TestDocumentLiveViews(t *testing.T) {
	defer gock.OffAll()
	env := newTestEnv(t)
	ctx := context.Background()
	repo := NewDocumentsRepository(env.cache, env.clients, nil)

	expense := draftDocument(21, "E-21")
	expense.DocumentType = model.DocumentTypeExpense
	expense.WarehouseID = 2
	posted := draftDocument(22, "A-22")
	posted.Status = model.DocumentStatusPosted
	seedDocument(t, repo, draftDocument(20, "A-20"), model.DocumentItem{ID: 200, DocumentID: 20})
	seedDocument(t, repo, expense)
	seedDocument(t, repo, posted)

	ids := func(docs []model.Document) []int64 {
		out := make([]int64, 0, len(docs))
		for _, d := range docs {
			out = append(out, d.ID)
		}
		return out
	}

	byType := repo.DocumentsByType(ctx, model.DocumentTypeReceipt)
	defer byType.Close()
	byWarehouse := repo.DocumentsByWarehouse(ctx, 2)
	defer byWarehouse.Close()
	byStatus := repo.DocumentsByStatus(ctx, model.DocumentStatusDraft)
	defer byStatus.Close()
	byBoth := repo.DocumentsByTypeAndWarehouse(ctx, model.DocumentTypeExpense, 2)
	defer byBoth.Close()
	items := repo.ItemsByDocument(ctx, 20)
	defer items.Close()

	assert.ElementsMatch(t, []int64{20, 22}, ids(receive(t, byType)))
	assert.Equal(t, []int64{21}, ids(receive(t, byWarehouse)))
	assert.ElementsMatch(t, []int64{20, 21}, ids(receive(t, byStatus)))
	assert.Equal(t, []int64{21}, ids(receive(t, byBoth)))
	require.Len(t, receive(t, items), 1)

	// Posting 20 drops it from the draft view and keeps it in the receipt view
	gock.New(backendURL).
		Patch("/api/v1/documents/20/post$").
		Reply(http.StatusOK).
		JSON(map[string]string{"message": "Document posted"})
	require.NoError(t, repo.PostDocument(ctx, "tok", 20))

	assert.Equal(t, []int64{21}, ids(receive(t, byStatus)))
	assert.ElementsMatch(t, []int64{20, 22}, ids(receive(t, byType)))

	gock.New(backendURL).
		Post("/api/v1/documents/20/items$").
		Reply(http.StatusOK).
		JSON(map[string]interface{}{
			"id": 201, "document_id": 20, "nomenclature_id": 4, "quantity": 1, "unit_id": 1,
			"created_at": "2026-03-01T09:40:00",
		})
	_, err := repo.CreateDocumentItem(ctx, "tok", 20, api.DocumentItemRequest{NomenclatureID: 4, Quantity: decimal.NewFromInt(1), UnitID: 1})
	require.NoError(t, err)

	lines := receive(t, items)
	require.Len(t, lines, 2)
	assert.Equal(t, int64(201), lines[1].ID)
}
