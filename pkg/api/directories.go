package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/AndrewKorobchuk/tsd/internal/model"
)

// NomenclatureParams filters the nomenclature list
type NomenclatureParams struct {
	ListParams
	CategoryID int64
}

func (c *Client) ListUnits(ctx context.Context, token string, params ListParams) ([]model.UnitOfMeasure, error) {
	var out []model.UnitOfMeasure
	err := c.do(ctx, request{
		op:     "list_units",
		method: http.MethodGet,
		path:   "units/",
		query:  params.values(),
		token:  token,
	}, &out)
	return out, err
}

func (c *Client) GetUnit(ctx context.Context, token string, id int64) (*model.UnitOfMeasure, error) {
	var out model.UnitOfMeasure
	if err := c.getOne(ctx, "get_unit", "units/"+pathID(id), token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetUnitByCode(ctx context.Context, token, code string) (*model.UnitOfMeasure, error) {
	var out model.UnitOfMeasure
	if err := c.getOne(ctx, "get_unit_by_code", "units/code/"+url.PathEscape(code), token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListCategories(ctx context.Context, token string, params ListParams) ([]model.NomenclatureCategory, error) {
	var out []model.NomenclatureCategory
	err := c.do(ctx, request{
		op:     "list_categories",
		method: http.MethodGet,
		path:   "nomenclature-categories/",
		query:  params.values(),
		token:  token,
	}, &out)
	return out, err
}

func (c *Client) GetCategory(ctx context.Context, token string, id int64) (*model.NomenclatureCategory, error) {
	var out model.NomenclatureCategory
	if err := c.getOne(ctx, "get_category", "nomenclature-categories/"+pathID(id), token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListNomenclature(ctx context.Context, token string, params NomenclatureParams) ([]model.Nomenclature, error) {
	q := params.values()
	if params.CategoryID > 0 {
		q.Set("category_id", strconv.FormatInt(params.CategoryID, 10))
	}

	var out []model.Nomenclature
	err := c.do(ctx, request{
		op:     "list_nomenclature",
		method: http.MethodGet,
		path:   "nomenclature/",
		query:  q,
		token:  token,
	}, &out)
	return out, err
}

func (c *Client) GetNomenclature(ctx context.Context, token string, id int64) (*model.Nomenclature, error) {
	var out model.Nomenclature
	if err := c.getOne(ctx, "get_nomenclature", "nomenclature/"+pathID(id), token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetNomenclatureByCode(ctx context.Context, token, code string) (*model.Nomenclature, error) {
	var out model.Nomenclature
	if err := c.getOne(ctx, "get_nomenclature_by_code", "nomenclature/code/"+url.PathEscape(code), token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListWarehouses(ctx context.Context, token string, params ListParams) ([]model.Warehouse, error) {
	var out []model.Warehouse
	err := c.do(ctx, request{
		op:     "list_warehouses",
		method: http.MethodGet,
		path:   "warehouses/",
		query:  params.values(),
		token:  token,
	}, &out)
	return out, err
}

func (c *Client) GetWarehouse(ctx context.Context, token string, id int64) (*model.Warehouse, error) {
	var out model.Warehouse
	if err := c.getOne(ctx, "get_warehouse", "warehouses/"+pathID(id), token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) getOne(ctx context.Context, op, path, token string, out interface{}) error {
	return c.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		path:   path,
		token:  token,
	}, out)
}
