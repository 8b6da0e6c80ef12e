package repository

import (
	"context"

	"github.com/AndrewKorobchuk/tsd/internal/cache"
	"github.com/AndrewKorobchuk/tsd/internal/model"
	"github.com/AndrewKorobchuk/tsd/pkg/api"

	"go.uber.org/zap"
)

// CategoriesRepository serves nomenclature categories
type CategoriesRepository struct {
	*directory[model.NomenclatureCategory]
}

func NewCategoriesRepository(store *cache.Store, clients ClientSource, log *zap.Logger) *CategoriesRepository {
	return &CategoriesRepository{&directory[model.NomenclatureCategory]{
		entity:  "categories",
		table:   cache.NewTable[model.NomenclatureCategory](store),
		clients: clients,
		order:   "name",
		fetch: func(ctx context.Context, c *api.Client, token string) ([]model.NomenclatureCategory, error) {
			return c.ListCategories(ctx, token, syncParams())
		},
		log: orNop(log),
	}}
}

func (r *CategoriesRepository) ByCode(ctx context.Context, code string) (*model.NomenclatureCategory, error) {
	return r.table.First(ctx, cache.Eq("code", code))
}
