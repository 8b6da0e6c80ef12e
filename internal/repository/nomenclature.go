package repository

import (
	"context"

	"github.com/AndrewKorobchuk/tsd/internal/cache"
	"github.com/AndrewKorobchuk/tsd/internal/model"
	"github.com/AndrewKorobchuk/tsd/pkg/api"

	"go.uber.org/zap"
)

// NomenclatureRepository serves stock-keeping items
type NomenclatureRepository struct {
	*directory[model.Nomenclature]
}

func NewNomenclatureRepository(store *cache.Store, clients ClientSource, log *zap.Logger) *NomenclatureRepository {
	return &NomenclatureRepository{&directory[model.Nomenclature]{
		entity:  "nomenclature",
		table:   cache.NewTable[model.Nomenclature](store),
		clients: clients,
		order:   "name",
		fetch: func(ctx context.Context, c *api.Client, token string) ([]model.Nomenclature, error) {
			return c.ListNomenclature(ctx, token, api.NomenclatureParams{ListParams: syncParams()})
		},
		log: orNop(log),
	}}
}

func (r *NomenclatureRepository) ByCode(ctx context.Context, code string) (*model.Nomenclature, error) {
	return r.table.First(ctx, cache.Eq("code", code))
}

// ActiveByCategory is a live view of the active items of one category
func (r *NomenclatureRepository) ActiveByCategory(ctx context.Context, categoryID int64) *cache.Subscription[model.Nomenclature] {
	return r.table.Watch(ctx, cache.Active(), cache.Eq("category_id", categoryID), cache.OrderBy(r.order))
}

// SearchActiveByCategory narrows ActiveByCategory to items containing query
func (r *NomenclatureRepository) SearchActiveByCategory(ctx context.Context, categoryID int64, query string) *cache.Subscription[model.Nomenclature] {
	return r.table.Watch(ctx,
		cache.Active(),
		cache.Eq("category_id", categoryID),
		cache.Search(query),
		cache.OrderBy(r.order),
	)
}

// ListActiveByCategory is the snapshot form of SearchActiveByCategory
func (r *NomenclatureRepository) ListActiveByCategory(ctx context.Context, categoryID int64, query string) ([]model.Nomenclature, error) {
	return r.table.Find(ctx,
		cache.Active(),
		cache.Eq("category_id", categoryID),
		cache.Search(query),
		cache.OrderBy(r.order),
	)
}

func (r *NomenclatureRepository) CountByCategory(ctx context.Context, categoryID int64) (int64, error) {
	return r.table.Count(ctx, cache.Eq("category_id", categoryID))
}
