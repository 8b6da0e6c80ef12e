package viewmodel

import (
	"context"
	"testing"
	"time"

	"github.com/AndrewKorobchuk/tsd/internal/cache"
	"github.com/AndrewKorobchuk/tsd/internal/model"
	"github.com/AndrewKorobchuk/tsd/internal/repository"
	"github.com/AndrewKorobchuk/tsd/pkg/config"
	"github.com/AndrewKorobchuk/tsd/pkg/database"
	"github.com/AndrewKorobchuk/tsd/pkg/settings"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const backendURL = "http://backend.test:8001"

type testEnv struct {
	now      time.Time
	cache    *cache.Store
	settings *settings.Store
	clients  *repository.ClientProvider

	auth         *repository.AuthRepository
	units        *repository.UnitsRepository
	categories   *repository.CategoriesRepository
	nomenclature *repository.NomenclatureRepository
	warehouses   *repository.WarehousesRepository
	barcodes     *repository.BarcodesRepository
	documents    *repository.DocumentsRepository
	device       *repository.DeviceRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Cache:    config.CacheConfig{Driver: "sqlite", Path: ":memory:"},
		Database: config.DatabaseConfig{LogLevel: "silent"},
	}
	db, err := database.Open(cfg, zap.NewNop())
	require.NoError(t, err)

	env := &testEnv{now: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)}
	env.cache = cache.NewStore(db, zap.NewNop())
	env.settings = settings.NewStore(db,
		settings.ConnectionSettings{ServerURL: "backend.test", Port: "8001"},
		settings.WithClock(env.clock),
	)
	env.clients = repository.NewClientProvider(env.settings, 0, zap.NewNop())

	env.auth = repository.NewAuthRepository(env.settings, env.clients, nil)
	env.units = repository.NewUnitsRepository(env.cache, env.clients, nil)
	env.categories = repository.NewCategoriesRepository(env.cache, env.clients, nil)
	env.nomenclature = repository.NewNomenclatureRepository(env.cache, env.clients, nil)
	env.warehouses = repository.NewWarehousesRepository(env.cache, env.clients, nil)
	env.barcodes = repository.NewBarcodesRepository(env.cache, env.clients, nil)
	env.documents = repository.NewDocumentsRepository(env.cache, env.clients, nil)
	env.device = repository.NewDeviceRepository(env.settings, env.clients, config.DeviceConfig{
		InstallID: "abc123",
		Name:      "Zebra TC21",
		Model:     "TC21",
	}, nil)
	return env
}

func (e *testEnv) clock() time.Time {
	return e.now
}

// login stores a session valid for an hour without talking to the backend
func (e *testEnv) login(t *testing.T) {
	t.Helper()
	require.NoError(t, e.settings.SaveAuthData("tok", "ref", 3600))
	require.NoError(t, e.settings.SaveUserData(settings.UserData{ID: 42, Username: "operator"}))
}

// seedDirectories fills the cache with one warehouse, two units, two
// nomenclature items and their barcodes
func (e *testEnv) seedDirectories(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, cache.NewTable[model.Warehouse](e.cache).Replace(ctx, []model.Warehouse{
		{ID: 1, Code: "MAIN", Name: "Main", IsActive: true},
		{ID: 2, Code: "OLD", Name: "Closed", IsActive: false},
	}))
	require.NoError(t, cache.NewTable[model.UnitOfMeasure](e.cache).Replace(ctx, []model.UnitOfMeasure{
		{ID: 1, Code: "PCS", Name: "Piece", ShortName: "pcs", IsActive: true},
		{ID: 2, Code: "KG", Name: "Kilogram", ShortName: "kg", IsActive: true},
	}))
	require.NoError(t, cache.NewTable[model.Nomenclature](e.cache).Replace(ctx, []model.Nomenclature{
		{ID: 5, Code: "A-1", CategoryID: 1, Name: "Bolt M6", BaseUnitID: 1, IsActive: true},
		{ID: 6, Code: "A-2", CategoryID: 1, Name: "Nails", BaseUnitID: 2, IsActive: true},
	}))
	require.NoError(t, cache.NewTable[model.Barcode](e.cache).Replace(ctx, []model.Barcode{
		{ID: 1, Barcode: "4820000000011", NomenclatureID: 5, UnitID: 1, IsActive: true,
			NomenclatureName: strPtr("Bolt M6"), UnitShortName: strPtr("pcs")},
	}))
}

func (e *testEnv) createViewModel() *DocumentCreateViewModel {
	return NewDocumentCreateViewModel(DocumentCreateDeps{
		Documents:    e.documents,
		Numbers:      e.device,
		Barcodes:     e.barcodes,
		Nomenclature: e.nomenclature,
		Warehouses:   e.warehouses,
		Units:        e.units,
		Tokens:       e.auth,
	}, model.DocumentTypeReceipt, nil, WithCreateClock(e.clock))
}

func strPtr(s string) *string { return &s }
