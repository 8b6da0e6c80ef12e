package repository

import (
	"context"

	"github.com/AndrewKorobchuk/tsd/internal/cache"
	"github.com/AndrewKorobchuk/tsd/internal/model"
	"github.com/AndrewKorobchuk/tsd/pkg/api"

	"go.uber.org/zap"
)

// WarehousesRepository serves warehouses
type WarehousesRepository struct {
	*directory[model.Warehouse]
}

func NewWarehousesRepository(store *cache.Store, clients ClientSource, log *zap.Logger) *WarehousesRepository {
	return &WarehousesRepository{&directory[model.Warehouse]{
		entity:  "warehouses",
		table:   cache.NewTable[model.Warehouse](store),
		clients: clients,
		order:   "name",
		fetch: func(ctx context.Context, c *api.Client, token string) ([]model.Warehouse, error) {
			return c.ListWarehouses(ctx, token, syncParams())
		},
		log: orNop(log),
	}}
}

func (r *WarehousesRepository) ByCode(ctx context.Context, code string) (*model.Warehouse, error) {
	return r.table.First(ctx, cache.Eq("code", code))
}

func orNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
