package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/AndrewKorobchuk/tsd/internal/model"
	"github.com/AndrewKorobchuk/tsd/internal/viewmodel"
	"github.com/AndrewKorobchuk/tsd/pkg/api"
	"github.com/AndrewKorobchuk/tsd/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var dateLayouts = []string{
	api.DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// draftHeaderRequest changes only the fields that are present
type draftHeaderRequest struct {
	DocumentType   *model.DocumentType `json:"document_type"`
	DocumentNumber *string             `json:"document_number"`
	WarehouseID    *int64              `json:"warehouse_id"`
	Date           *string             `json:"date"`
	Description    *string             `json:"description"`
}

type draftItemRequest struct {
	NomenclatureID int64            `json:"nomenclature_id"`
	UnitID         int64            `json:"unit_id"`
	Quantity       decimal.Decimal  `json:"quantity"`
	Price          *decimal.Decimal `json:"price"`
	Total          *decimal.Decimal `json:"total"`
	Description    *string          `json:"description"`
}

type scanRequest struct {
	Barcode  string          `json:"barcode"`
	Quantity decimal.Decimal `json:"quantity"`
}

// GetDraft returns the draft being edited
func (h *Handler) GetDraft(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Draft.State())
}

// StreamDraft sends the draft as server-sent events whenever it changes
func (h *Handler) StreamDraft(c echo.Context) error {
	ch, cancel := h.Draft.Observe()
	return stream(c, "draft", ch, cancel)
}

// UpdateDraft edits the document header
func (h *Handler) UpdateDraft(c echo.Context) error {
	log := logger.FromContext(c)

	var req draftHeaderRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse draft header", zap.Error(err))
		return badRequest(c, "Could not parse request body")
	}

	// Parse everything before touching the draft
	update := viewmodel.HeaderUpdate{
		Type:        req.DocumentType,
		Number:      req.DocumentNumber,
		WarehouseID: req.WarehouseID,
		Description: req.Description,
	}
	if req.Date != nil {
		date, ok := parseDate(*req.Date)
		if !ok {
			return fail(c, &viewmodel.ValidationError{Field: "date", Message: "Invalid document date"})
		}
		update.Date = &date
	}

	if err := h.Draft.UpdateHeader(c.Request().Context(), update); err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, h.Draft.State())
}

// GenerateNumber fills the document number from the backend counter, or a
// local number when the backend cannot be reached.
func (h *Handler) GenerateNumber(c echo.Context) error {
	number, err := h.Draft.GenerateDocumentNumber(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"document_number": number})
}

// AddDraftItem adds a line. Without a unit the item's base unit is used.
func (h *Handler) AddDraftItem(c echo.Context) error {
	log := logger.FromContext(c)
	ctx := c.Request().Context()

	var req draftItemRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse draft item", zap.Error(err))
		return badRequest(c, "Could not parse request body")
	}

	// No unit means the item's base unit
	if req.UnitID == 0 {
		if _, err := h.Draft.AddItemByNomenclature(ctx, req.NomenclatureID, req.Quantity); err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusCreated, h.Draft.State())
	}

	if err := h.Draft.AddItem(ctx, h.draftItem(ctx, req)); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, h.Draft.State())
}

// ScanDraftItem adds the item behind a scanned barcode
func (h *Handler) ScanDraftItem(c echo.Context) error {
	log := logger.FromContext(c)

	var req scanRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse scan request", zap.Error(err))
		return badRequest(c, "Could not parse request body")
	}

	if _, err := h.Draft.AddItemByBarcode(c.Request().Context(), req.Barcode, req.Quantity); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, h.Draft.State())
}

// UpdateDraftItem replaces the line at the zero-based index
func (h *Handler) UpdateDraftItem(c echo.Context) error {
	log := logger.FromContext(c)
	ctx := c.Request().Context()

	index, err := itemIndex(c)
	if err != nil {
		return badRequest(c, "Item index must be a number")
	}

	var req draftItemRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse draft item", zap.Error(err))
		return badRequest(c, "Could not parse request body")
	}

	if err := h.Draft.UpdateItem(ctx, index, h.draftItem(ctx, req)); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, h.Draft.State())
}

// RemoveDraftItem drops the line at the zero-based index
func (h *Handler) RemoveDraftItem(c echo.Context) error {
	index, err := itemIndex(c)
	if err != nil {
		return badRequest(c, "Item index must be a number")
	}
	if err := h.Draft.RemoveItem(c.Request().Context(), index); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, h.Draft.State())
}

func (h *Handler) ClearDraftItems(c echo.Context) error {
	if err := h.Draft.ClearItems(c.Request().Context()); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, h.Draft.State())
}

// SaveDraft submits the draft to the backend
func (h *Handler) SaveDraft(c echo.Context) error {
	if _, err := h.Draft.Save(c.Request().Context()); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, h.Draft.State())
}

// ResetDraft discards the draft and starts a new one
func (h *Handler) ResetDraft(c echo.Context) error {
	if err := h.Draft.Reset(c.Request().Context()); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, h.Draft.State())
}

// draftItem builds a line from req with display names taken from the cache
func (h *Handler) draftItem(ctx context.Context, req draftItemRequest) viewmodel.DraftItem {
	item := viewmodel.DraftItem{
		NomenclatureID: req.NomenclatureID,
		UnitID:         req.UnitID,
		Quantity:       req.Quantity,
		Price:          req.Price,
		Total:          req.Total,
		Description:    req.Description,
	}
	if n, err := h.Nomenclature.ByID(ctx, req.NomenclatureID); err == nil && n != nil {
		item.NomenclatureName = n.Name
	}
	if u, err := h.Units.ByID(ctx, req.UnitID); err == nil && u != nil {
		item.UnitName = u.ShortName
	}
	return item
}

func itemIndex(c echo.Context) (int, error) {
	var index int
	err := echo.PathParamsBinder(c).MustInt("index", &index).BindError()
	return index, err
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
