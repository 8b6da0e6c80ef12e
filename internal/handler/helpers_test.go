package handler

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AndrewKorobchuk/tsd/internal/cache"
	"github.com/AndrewKorobchuk/tsd/internal/model"
	"github.com/AndrewKorobchuk/tsd/internal/repository"
	"github.com/AndrewKorobchuk/tsd/internal/viewmodel"
	"github.com/AndrewKorobchuk/tsd/pkg/config"
	"github.com/AndrewKorobchuk/tsd/pkg/database"
	"github.com/AndrewKorobchuk/tsd/pkg/settings"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const backendURL = "http://backend.test:8001"

type testServer struct {
	echo      *echo.Echo
	now       time.Time
	cache     *cache.Store
	settings  *settings.Store
	documents *viewmodel.DocumentsViewModel
}

func defaultConnection() settings.ConnectionSettings {
	return settings.ConnectionSettings{ServerURL: "backend.test", Port: "8001"}
}

func newTestServer(t *testing.T, defaults settings.ConnectionSettings) *testServer {
	t.Helper()

	cfg := &config.Config{
		Cache:    config.CacheConfig{Driver: "sqlite", Path: ":memory:"},
		Database: config.DatabaseConfig{LogLevel: "silent"},
	}
	db, err := database.Open(cfg, zap.NewNop())
	require.NoError(t, err)

	s := &testServer{now: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)}
	clock := func() time.Time { return s.now }

	s.cache = cache.NewStore(db, zap.NewNop())
	s.settings = settings.NewStore(db, defaults, settings.WithClock(clock))
	clients := repository.NewClientProvider(s.settings, 0, zap.NewNop())

	auth := repository.NewAuthRepository(s.settings, clients, nil)
	units := repository.NewUnitsRepository(s.cache, clients, nil)
	categories := repository.NewCategoriesRepository(s.cache, clients, nil)
	nomenclature := repository.NewNomenclatureRepository(s.cache, clients, nil)
	warehouses := repository.NewWarehousesRepository(s.cache, clients, nil)
	barcodes := repository.NewBarcodesRepository(s.cache, clients, nil)
	documents := repository.NewDocumentsRepository(s.cache, clients, nil)
	device := repository.NewDeviceRepository(s.settings, clients, config.DeviceConfig{
		InstallID: "abc123",
		Name:      "Zebra TC21",
		Model:     "TC21",
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	documentsVM := viewmodel.NewDocumentsViewModel(ctx, documents, auth, nil)
	s.documents = documentsVM
	t.Cleanup(func() {
		documentsVM.Close()
		cancel()
	})

	h := New(Deps{
		DB:         db,
		Connection: viewmodel.NewConnectionSettingsViewModel(s.settings, clients, nil),
		Login:      viewmodel.NewLoginViewModel(auth, nil),
		Device:     viewmodel.NewDeviceViewModel(device, auth, nil),
		Directories: viewmodel.NewDirectoriesViewModel(auth, []viewmodel.Directory{
			{Name: "units", Repo: units},
			{Name: "categories", Repo: categories},
			{Name: "nomenclature", Repo: nomenclature},
			{Name: "warehouses", Repo: warehouses},
			{Name: "barcodes", Repo: barcodes},
		}, nil),
		Documents: documentsVM,
		Counts:    viewmodel.NewDocumentCountsViewModel(documents, nil),
		Draft: viewmodel.NewDocumentCreateViewModel(viewmodel.DocumentCreateDeps{
			Documents:    documents,
			Numbers:      device,
			Barcodes:     barcodes,
			Nomenclature: nomenclature,
			Warehouses:   warehouses,
			Units:        units,
			Tokens:       auth,
		}, model.DocumentTypeReceipt, nil, viewmodel.WithCreateClock(clock)),
		Auth:          auth,
		Units:         units,
		Categories:    categories,
		Nomenclature:  nomenclature,
		Warehouses:    warehouses,
		Barcodes:      barcodes,
		DocumentStore: documents,
	})

	s.echo = echo.New()
	h.Register(s.echo)
	return s
}

// login stores a session valid for an hour without talking to the backend
func (s *testServer) login(t *testing.T) {
	t.Helper()
	require.NoError(t, s.settings.SaveAuthData("tok", "ref", 3600))
	require.NoError(t, s.settings.SaveUserData(settings.UserData{ID: 42, Username: "operator"}))
}

func (s *testServer) seedDirectories(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, cache.NewTable[model.Warehouse](s.cache).Replace(ctx, []model.Warehouse{
		{ID: 1, Code: "MAIN", Name: "Main", IsActive: true},
		{ID: 2, Code: "OLD", Name: "Closed", IsActive: false},
		{ID: 3, Code: "COLD", Name: "Cold store", IsActive: true},
	}))
	require.NoError(t, cache.NewTable[model.UnitOfMeasure](s.cache).Replace(ctx, []model.UnitOfMeasure{
		{ID: 1, Code: "PCS", Name: "Piece", ShortName: "pcs", IsActive: true},
		{ID: 2, Code: "KG", Name: "Kilogram", ShortName: "kg", IsActive: true},
	}))
	require.NoError(t, cache.NewTable[model.Nomenclature](s.cache).Replace(ctx, []model.Nomenclature{
		{ID: 5, Code: "A-1", CategoryID: 1, Name: "Bolt M6", BaseUnitID: 1, IsActive: true},
		{ID: 6, Code: "A-2", CategoryID: 2, Name: "Nails", BaseUnitID: 2, IsActive: true},
	}))
	nomenclatureName, unitName := "Bolt M6", "pcs"
	require.NoError(t, cache.NewTable[model.Barcode](s.cache).Replace(ctx, []model.Barcode{
		{ID: 1, Barcode: "4820000000011", NomenclatureID: 5, UnitID: 1, IsActive: true,
			NomenclatureName: &nomenclatureName, UnitShortName: &unitName},
	}))
}

// request sends body as JSON, or as is when it is a string
func (s *testServer) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		payload, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
	Field       string `json:"field"`
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
}
