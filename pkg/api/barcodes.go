package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/AndrewKorobchuk/tsd/internal/model"
)

// BarcodeParams filters the barcode list
type BarcodeParams struct {
	ListParams
	NomenclatureID int64
}

// BarcodeRequest creates or updates a barcode
type BarcodeRequest struct {
	Barcode        string `json:"barcode"`
	NomenclatureID int64  `json:"nomenclature_id"`
	UnitID         int64  `json:"unit_id"`
	IsActive       bool   `json:"is_active"`
}

func (c *Client) ListBarcodes(ctx context.Context, token string, params BarcodeParams) ([]model.Barcode, error) {
	q := params.values()
	if params.NomenclatureID > 0 {
		q.Set("nomenclature_id", strconv.FormatInt(params.NomenclatureID, 10))
	}

	var out []model.Barcode
	err := c.do(ctx, request{
		op:     "list_barcodes",
		method: http.MethodGet,
		path:   "barcodes/",
		query:  q,
		token:  token,
	}, &out)
	return out, err
}

// SearchBarcodes performs a substring search over barcode values on the server
func (c *Client) SearchBarcodes(ctx context.Context, token, query string, limit int) ([]model.Barcode, error) {
	q := url.Values{}
	q.Set("q", query)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var out []model.Barcode
	err := c.do(ctx, request{
		op:     "search_barcodes",
		method: http.MethodGet,
		path:   "barcodes/search",
		query:  q,
		token:  token,
	}, &out)
	return out, err
}

// ScanBarcode resolves a scanned value to its active barcode record
func (c *Client) ScanBarcode(ctx context.Context, token, value string) (*model.Barcode, error) {
	var out model.Barcode
	if err := c.getOne(ctx, "scan_barcode", "barcodes/scan/"+url.PathEscape(value), token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetBarcode(ctx context.Context, token string, id int64) (*model.Barcode, error) {
	var out model.Barcode
	if err := c.getOne(ctx, "get_barcode", "barcodes/"+pathID(id), token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateBarcode(ctx context.Context, token string, in BarcodeRequest) (*model.Barcode, error) {
	var out model.Barcode
	err := c.do(ctx, request{
		op:     "create_barcode",
		method: http.MethodPost,
		path:   "barcodes/",
		token:  token,
		body:   in,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateBarcode(ctx context.Context, token string, id int64, in BarcodeRequest) (*model.Barcode, error) {
	var out model.Barcode
	err := c.do(ctx, request{
		op:     "update_barcode",
		method: http.MethodPut,
		path:   "barcodes/" + pathID(id),
		token:  token,
		body:   in,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteBarcode(ctx context.Context, token string, id int64) error {
	return c.do(ctx, request{
		op:     "delete_barcode",
		method: http.MethodDelete,
		path:   "barcodes/" + pathID(id),
		token:  token,
	}, nil)
}
