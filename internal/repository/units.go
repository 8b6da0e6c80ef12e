package repository

import (
	"context"

	"github.com/AndrewKorobchuk/tsd/internal/cache"
	"github.com/AndrewKorobchuk/tsd/internal/model"
	"github.com/AndrewKorobchuk/tsd/pkg/api"

	"go.uber.org/zap"
)

// UnitsRepository serves units of measure
type UnitsRepository struct {
	*directory[model.UnitOfMeasure]
}

func NewUnitsRepository(store *cache.Store, clients ClientSource, log *zap.Logger) *UnitsRepository {
	return &UnitsRepository{&directory[model.UnitOfMeasure]{
		entity:  "units",
		table:   cache.NewTable[model.UnitOfMeasure](store),
		clients: clients,
		order:   "name",
		fetch: func(ctx context.Context, c *api.Client, token string) ([]model.UnitOfMeasure, error) {
			return c.ListUnits(ctx, token, syncParams())
		},
		log: orNop(log),
	}}
}

// ByCode returns the cached unit with code, or nil
func (r *UnitsRepository) ByCode(ctx context.Context, code string) (*model.UnitOfMeasure, error) {
	return r.table.First(ctx, cache.Eq("code", code))
}
