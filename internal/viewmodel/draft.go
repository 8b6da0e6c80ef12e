package viewmodel

import (
	"fmt"
	"strings"
	"time"

	"github.com/AndrewKorobchuk/tsd/internal/model"
	"github.com/AndrewKorobchuk/tsd/pkg/api"

	"github.com/shopspring/decimal"
)

// Draft is a document being composed on the terminal
type Draft struct {
	Type          model.DocumentType `json:"document_type"`
	Number        string             `json:"document_number"`
	WarehouseID   int64              `json:"warehouse_id" validate:"gt=0"`
	WarehouseName string             `json:"warehouse_name,omitempty"`
	Date          time.Time          `json:"date"`
	Description   string             `json:"description,omitempty"`
	Items         []DraftItem        `json:"items" validate:"min=1"`
}

// DraftItem is one line of a draft. ItemID is set once the line exists on
// the server.
type DraftItem struct {
	ItemID           int64            `json:"item_id,omitempty"`
	NomenclatureID   int64            `json:"nomenclature_id" validate:"gt=0"`
	NomenclatureName string           `json:"nomenclature_name,omitempty"`
	UnitID           int64            `json:"unit_id" validate:"gt=0"`
	UnitName         string           `json:"unit_name,omitempty"`
	Barcode          string           `json:"barcode,omitempty"`
	Quantity         decimal.Decimal  `json:"quantity" validate:"gt=0"`
	Price            *decimal.Decimal `json:"price,omitempty" validate:"omitempty,gte=0"`
	Total            *decimal.Decimal `json:"total,omitempty" validate:"omitempty,gte=0"`
	Description      *string          `json:"description,omitempty"`
}

var draftMessages = map[string]string{
	"warehouse_id": "Select a warehouse",
	"items":        "Add at least one document item",
}

var itemMessages = map[string]string{
	"nomenclature_id": "Select a nomenclature item",
	"unit_id":         "Select a unit of measure",
	"quantity":        "Quantity must be greater than zero",
	"price":           "Price cannot be negative",
	"total":           "Total cannot be negative",
}

func newDraft(t model.DocumentType, now time.Time) Draft {
	return Draft{Type: t, Date: now, Items: []DraftItem{}}
}

func (d Draft) filled() bool {
	return d.WarehouseID > 0 && len(d.Items) > 0
}

func (d Draft) clone() Draft {
	d.Items = append([]DraftItem(nil), d.Items...)
	return d
}

func (d Draft) validate() error {
	if err := validateStruct(d, draftMessages); err != nil {
		return err
	}
	for i, item := range d.Items {
		if err := item.validate(); err != nil {
			if ve, ok := err.(*ValidationError); ok {
				return &ValidationError{
					Field:   fmt.Sprintf("items[%d].%s", i, ve.Field),
					Message: fmt.Sprintf("Item %d: %s", i+1, ve.Message),
				}
			}
			return err
		}
	}
	return nil
}

func (it DraftItem) validate() error {
	return validateStruct(it, itemMessages)
}

func (it DraftItem) persisted() bool {
	return it.ItemID != 0
}

func (d Draft) createRequest() api.DocumentCreateRequest {
	var desc *string
	if s := strings.TrimSpace(d.Description); s != "" {
		desc = &s
	}
	return api.DocumentCreateRequest{
		DocumentType:   d.Type,
		DocumentNumber: strings.TrimSpace(d.Number),
		WarehouseID:    d.WarehouseID,
		Date:           d.Date.Format(api.DateLayout),
		Status:         model.DocumentStatusDraft,
		Description:    desc,
	}
}

func (it DraftItem) request() api.DocumentItemRequest {
	total := it.Total
	if total == nil && it.Price != nil {
		t := it.Price.Mul(it.Quantity)
		total = &t
	}
	return api.DocumentItemRequest{
		NomenclatureID: it.NomenclatureID,
		Quantity:       it.Quantity,
		UnitID:         it.UnitID,
		Price:          it.Price,
		Total:          total,
		Description:    it.Description,
	}
}
