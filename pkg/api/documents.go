package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/AndrewKorobchuk/tsd/internal/model"

	"github.com/shopspring/decimal"
)

// DocumentFilter narrows the document list
type DocumentFilter struct {
	Skip         int
	Limit        int
	DocumentType model.DocumentType
	WarehouseID  int64
	Status       model.DocumentStatus
}

// DocumentCreateRequest creates a document header. Date uses the
// yyyy-MM-ddTHH:mm:ss layout.
type DocumentCreateRequest struct {
	DocumentType   model.DocumentType   `json:"document_type"`
	DocumentNumber string               `json:"document_number"`
	WarehouseID    int64                `json:"warehouse_id"`
	Date           string               `json:"date"`
	Status         model.DocumentStatus `json:"status"`
	Description    *string              `json:"description"`
}

// DocumentUpdateRequest replaces the editable header fields
type DocumentUpdateRequest struct {
	DocumentNumber string               `json:"document_number"`
	WarehouseID    int64                `json:"warehouse_id"`
	Date           string               `json:"date"`
	Status         model.DocumentStatus `json:"status"`
	Description    *string              `json:"description"`
}

// DocumentItemRequest creates or updates a document line
type DocumentItemRequest struct {
	NomenclatureID int64            `json:"nomenclature_id"`
	Quantity       decimal.Decimal  `json:"quantity"`
	UnitID         int64            `json:"unit_id"`
	Price          *decimal.Decimal `json:"price"`
	Total          *decimal.Decimal `json:"total"`
	Description    *string          `json:"description"`
}

// DateLayout is the document date format the backend accepts
const DateLayout = "2006-01-02T15:04:05"

func (c *Client) ListDocuments(ctx context.Context, token string, filter DocumentFilter) ([]model.Document, error) {
	q := ListParams{Skip: filter.Skip, Limit: filter.Limit}.values()
	q.Del("active_only")
	if filter.DocumentType != "" {
		q.Set("document_type", string(filter.DocumentType))
	}
	if filter.WarehouseID > 0 {
		q.Set("warehouse_id", strconv.FormatInt(filter.WarehouseID, 10))
	}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}

	var out []model.Document
	err := c.do(ctx, request{
		op:     "list_documents",
		method: http.MethodGet,
		path:   "documents/",
		query:  q,
		token:  token,
	}, &out)
	return out, err
}

// GetDocument returns a document together with its items
func (c *Client) GetDocument(ctx context.Context, token string, id int64) (*model.Document, error) {
	var out model.Document
	if err := c.getOne(ctx, "get_document", "documents/"+pathID(id), token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateDocument(ctx context.Context, token string, in DocumentCreateRequest) (*model.Document, error) {
	var out model.Document
	err := c.do(ctx, request{
		op:     "create_document",
		method: http.MethodPost,
		path:   "documents/",
		token:  token,
		body:   in,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateDocument(ctx context.Context, token string, id int64, in DocumentUpdateRequest) (*model.Document, error) {
	var out model.Document
	err := c.do(ctx, request{
		op:     "update_document",
		method: http.MethodPut,
		path:   "documents/" + pathID(id),
		token:  token,
		body:   in,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteDocument(ctx context.Context, token string, id int64) error {
	return c.do(ctx, request{
		op:     "delete_document",
		method: http.MethodDelete,
		path:   "documents/" + pathID(id),
		token:  token,
	}, nil)
}

// PostDocument moves a draft document to posted
func (c *Client) PostDocument(ctx context.Context, token string, id int64) error {
	return c.do(ctx, request{
		op:     "post_document",
		method: http.MethodPatch,
		path:   "documents/" + pathID(id) + "/post",
		token:  token,
	}, nil)
}

// CancelDocument moves a document to cancelled
func (c *Client) CancelDocument(ctx context.Context, token string, id int64) error {
	return c.do(ctx, request{
		op:     "cancel_document",
		method: http.MethodPatch,
		path:   "documents/" + pathID(id) + "/cancel",
		token:  token,
	}, nil)
}

func (c *Client) CreateDocumentItem(ctx context.Context, token string, documentID int64, in DocumentItemRequest) (*model.DocumentItem, error) {
	var out model.DocumentItem
	err := c.do(ctx, request{
		op:     "create_document_item",
		method: http.MethodPost,
		path:   "documents/" + pathID(documentID) + "/items",
		token:  token,
		body:   in,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateDocumentItem(ctx context.Context, token string, itemID int64, in DocumentItemRequest) (*model.DocumentItem, error) {
	var out model.DocumentItem
	err := c.do(ctx, request{
		op:     "update_document_item",
		method: http.MethodPut,
		path:   "documents/items/" + pathID(itemID),
		token:  token,
		body:   in,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteDocumentItem(ctx context.Context, token string, itemID int64) error {
	return c.do(ctx, request{
		op:     "delete_document_item",
		method: http.MethodDelete,
		path:   "documents/items/" + pathID(itemID),
		token:  token,
	}, nil)
}
