package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/AndrewKorobchuk/tsd/internal/viewmodel"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockCreateItem(id int64) {
	gock.New(backendURL).
		Post("/api/v1/documents/100/items$").
		Reply(http.StatusOK).
		JSON(map[string]interface{}{
			"id": id, "document_id": 100, "nomenclature_id": 5, "quantity": 1, "unit_id": 1,
			"created_at": "2026-03-01T09:30:00",
		})
}

func TestDraftWorkflow(t *testing.T) {
	defer gock.OffAll()
	s := newTestServer(t, defaultConnection())
	s.login(t)
	s.seedDirectories(t)

	rec := s.request(t, http.MethodPut, "/draft", map[string]interface{}{
		"warehouse_id": 1,
		"date":         "2026-03-02",
		"description":  "Morning delivery",
	})
	requireStatus(t, rec, http.StatusOK)
	state := decode[viewmodel.DocumentCreateState](t, rec)
	assert.Equal(t, viewmodel.StateEmpty, state.State)
	assert.Equal(t, "Main", state.Draft.WarehouseName)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), state.Draft.Date)

	requireStatus(t, s.request(t, http.MethodPost, "/draft/scan", map[string]string{"barcode": "4820000000011"}), http.StatusCreated)
	rec = s.request(t, http.MethodPost, "/draft/scan", map[string]string{"barcode": "4820000000011", "quantity": "2"})
	requireStatus(t, rec, http.StatusCreated)
	state = decode[viewmodel.DocumentCreateState](t, rec)
	assert.Equal(t, viewmodel.StateFilled, state.State)
	require.Len(t, state.Draft.Items, 1)
	assert.Equal(t, "3", state.Draft.Items[0].Quantity.String())

	rec = s.request(t, http.MethodPost, "/draft/items", map[string]interface{}{"nomenclature_id": 6, "quantity": "2.5"})
	requireStatus(t, rec, http.StatusCreated)
	state = decode[viewmodel.DocumentCreateState](t, rec)
	require.Len(t, state.Draft.Items, 2)
	assert.Equal(t, int64(2), state.Draft.Items[1].UnitID)
	assert.Equal(t, "kg", state.Draft.Items[1].UnitName)

	gock.New(backendURL).
		Post("/api/v1/documents/$").
		BodyString(`"document_number":"ВО-20260301-093000","warehouse_id":1,"date":"2026-03-02T00:00:00"`).
		Reply(http.StatusOK).
		JSON(map[string]interface{}{
			"id": 100, "document_type": "receipt", "document_number": "ВО-20260301-093000",
			"warehouse_id": 1, "date": "2026-03-02T00:00:00", "status": "draft",
			"created_at": "2026-03-01T09:30:00",
		})
	mockCreateItem(201)
	mockCreateItem(202)

	rec = s.request(t, http.MethodPost, "/draft/save", nil)
	requireStatus(t, rec, http.StatusCreated)
	state = decode[viewmodel.DocumentCreateState](t, rec)
	assert.Equal(t, viewmodel.StateSaved, state.State)
	require.NotNil(t, state.Document)
	assert.Equal(t, int64(100), state.Document.ID)
	assert.Equal(t, int64(201), state.Draft.Items[0].ItemID)
	assert.Equal(t, int64(202), state.Draft.Items[1].ItemID)
	assert.True(t, gock.IsDone())

	rec = s.request(t, http.MethodPost, "/draft/scan", map[string]string{"barcode": "4820000000011"})
	requireStatus(t, rec, http.StatusConflict)

	rec = s.request(t, http.MethodPost, "/draft/reset", nil)
	requireStatus(t, rec, http.StatusOK)
	state = decode[viewmodel.DocumentCreateState](t, rec)
	assert.Equal(t, viewmodel.StateEmpty, state.State)
	assert.Empty(t, state.Draft.Items)
}

func TestDraftSaveValidatesLocally(t *testing.T) {
	defer gock.OffAll()
	s := newTestServer(t, defaultConnection())
	s.login(t)

	gock.New(backendURL).Post("/api/v1/documents/$").Reply(http.StatusOK)

	rec := s.request(t, http.MethodPost, "/draft/save", nil)
	requireStatus(t, rec, http.StatusBadRequest)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "warehouse_id", body.Field)
	assert.Equal(t, "Select a warehouse", body.Description)
	assert.True(t, gock.IsPending())

	rec = s.request(t, http.MethodGet, "/draft", nil)
	assert.Equal(t, "Select a warehouse", decode[viewmodel.DocumentCreateState](t, rec).Error)
}

func TestDraftPartialSaveReportsItem(t *testing.T) {
	defer gock.OffAll()
	s := newTestServer(t, defaultConnection())
	s.login(t)
	s.seedDirectories(t)

	requireStatus(t, s.request(t, http.MethodPut, "/draft", map[string]interface{}{
		"warehouse_id": 1, "document_number": "T01-9",
	}), http.StatusOK)
	requireStatus(t, s.request(t, http.MethodPost, "/draft/items", map[string]interface{}{
		"nomenclature_id": 5, "unit_id": 1, "quantity": 1,
	}), http.StatusCreated)
	requireStatus(t, s.request(t, http.MethodPost, "/draft/items", map[string]interface{}{
		"nomenclature_id": 6, "unit_id": 2, "quantity": 3,
	}), http.StatusCreated)

	gock.New(backendURL).
		Post("/api/v1/documents/$").
		Reply(http.StatusOK).
		JSON(map[string]interface{}{
			"id": 100, "document_type": "receipt", "document_number": "T01-9",
			"warehouse_id": 1, "date": "2026-03-01T09:30:00", "status": "draft",
			"created_at": "2026-03-01T09:30:00",
		})
	mockCreateItem(201)
	gock.New(backendURL).
		Post("/api/v1/documents/100/items$").
		Reply(http.StatusUnprocessableEntity).
		JSON(map[string]string{"detail": "Unit not allowed"})

	rec := s.request(t, http.MethodPost, "/draft/save", nil)
	requireStatus(t, rec, http.StatusBadGateway)
	assert.Equal(t, "item 2 (Nails): Unit not allowed", decode[errorBody](t, rec).Description)

	// The header is on the server now
	rec = s.request(t, http.MethodPut, "/draft", map[string]interface{}{"document_number": "T01-10"})
	requireStatus(t, rec, http.StatusConflict)

	// The saved line cannot be edited, the failed one can
	requireStatus(t, s.request(t, http.MethodDelete, "/draft/items/0", nil), http.StatusConflict)
	rec = s.request(t, http.MethodPut, "/draft/items/1", map[string]interface{}{
		"nomenclature_id": 6, "unit_id": 1, "quantity": 3,
	})
	requireStatus(t, rec, http.StatusOK)
	state := decode[viewmodel.DocumentCreateState](t, rec)
	assert.Equal(t, viewmodel.StateFilled, state.State)
	assert.Equal(t, "pcs", state.Draft.Items[1].UnitName)

	mockCreateItem(202)
	rec = s.request(t, http.MethodPost, "/draft/save", nil)
	requireStatus(t, rec, http.StatusCreated)
	assert.Equal(t, viewmodel.StateSaved, decode[viewmodel.DocumentCreateState](t, rec).State)
	assert.True(t, gock.IsDone())
}

func TestDraftInputErrors(t *testing.T) {
	s := newTestServer(t, defaultConnection())
	s.seedDirectories(t)

	rec := s.request(t, http.MethodPut, "/draft", map[string]interface{}{"warehouse_id": 2})
	requireStatus(t, rec, http.StatusBadRequest)
	assert.Equal(t, "warehouse_id", decode[errorBody](t, rec).Field)

	rec = s.request(t, http.MethodPut, "/draft", map[string]interface{}{"date": "yesterday"})
	requireStatus(t, rec, http.StatusBadRequest)
	assert.Equal(t, "date", decode[errorBody](t, rec).Field)

	rec = s.request(t, http.MethodPost, "/draft/items", map[string]interface{}{"nomenclature_id": 5, "unit_id": 1, "quantity": 0})
	requireStatus(t, rec, http.StatusBadRequest)
	assert.Equal(t, "quantity", decode[errorBody](t, rec).Field)

	requireStatus(t, s.request(t, http.MethodDelete, "/draft/items/5", nil), http.StatusNotFound)
	requireStatus(t, s.request(t, http.MethodPut, "/draft/items/x", map[string]interface{}{}), http.StatusBadRequest)
	requireStatus(t, s.request(t, http.MethodPost, "/draft/items", `{"quantity":`), http.StatusBadRequest)
}

func TestUpdateDraftRejectsWholeHeader(t *testing.T) {
	s := newTestServer(t, defaultConnection())
	s.seedDirectories(t)

	rec := s.request(t, http.MethodPut, "/draft", map[string]interface{}{
		"document_number": "T01-5",
		"description":     "Evening delivery",
		"warehouse_id":    2,
	})
	requireStatus(t, rec, http.StatusBadRequest)
	assert.Equal(t, "warehouse_id", decode[errorBody](t, rec).Field)

	draft := decode[viewmodel.DocumentCreateState](t, s.request(t, http.MethodGet, "/draft", nil)).Draft
	assert.Empty(t, draft.Number)
	assert.Empty(t, draft.Description)

	rec = s.request(t, http.MethodPut, "/draft", map[string]interface{}{
		"document_number": "T01-5",
		"date":            "tomorrow",
	})
	requireStatus(t, rec, http.StatusBadRequest)
	assert.Empty(t, decode[viewmodel.DocumentCreateState](t, s.request(t, http.MethodGet, "/draft", nil)).Draft.Number)
}

func TestDraftItemsClear(t *testing.T) {
	s := newTestServer(t, defaultConnection())
	s.seedDirectories(t)

	requireStatus(t, s.request(t, http.MethodPost, "/draft/items", map[string]interface{}{"nomenclature_id": 5}), http.StatusCreated)
	requireStatus(t, s.request(t, http.MethodPut, "/draft", map[string]interface{}{"warehouse_id": 1}), http.StatusOK)
	assert.Equal(t, viewmodel.StateFilled, decode[viewmodel.DocumentCreateState](t, s.request(t, http.MethodGet, "/draft", nil)).State)

	rec := s.request(t, http.MethodDelete, "/draft/items", nil)
	requireStatus(t, rec, http.StatusOK)
	state := decode[viewmodel.DocumentCreateState](t, rec)
	assert.Equal(t, viewmodel.StateEmpty, state.State)
	assert.Empty(t, state.Draft.Items)
}

func TestGenerateNumberFallsBack(t *testing.T) {
	defer gock.OffAll()
	s := newTestServer(t, defaultConnection())
	s.login(t)

	gock.New(backendURL).
		Post("/api/v1/tsd-devices/next-document-number$").
		Reply(http.StatusServiceUnavailable).
		JSON(map[string]string{"detail": "maintenance"})

	rec := s.request(t, http.MethodPost, "/draft/number", nil)
	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, "ВО-20260301-093000", decode[map[string]string](t, rec)["document_number"])
	assert.Equal(t, "ВО-20260301-093000", decode[viewmodel.DocumentCreateState](t, s.request(t, http.MethodGet, "/draft", nil)).Draft.Number)
}
