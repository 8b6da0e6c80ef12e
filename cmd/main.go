package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AndrewKorobchuk/tsd/internal/cache"
	"github.com/AndrewKorobchuk/tsd/internal/handler"
	"github.com/AndrewKorobchuk/tsd/internal/middleware"
	"github.com/AndrewKorobchuk/tsd/internal/model"
	"github.com/AndrewKorobchuk/tsd/internal/repository"
	"github.com/AndrewKorobchuk/tsd/internal/viewmodel"
	"github.com/AndrewKorobchuk/tsd/pkg/config"
	"github.com/AndrewKorobchuk/tsd/pkg/database"
	"github.com/AndrewKorobchuk/tsd/pkg/logger"
	"github.com/AndrewKorobchuk/tsd/pkg/settings"
	"github.com/AndrewKorobchuk/tsd/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	hashKey := flag.String("hash-key", "", "Print the bcrypt hash for TERMINAL_ACCESS_KEY and exit")
	docType := flag.String("document-type", string(model.DocumentTypeReceipt), "Type of documents created on this terminal")
	flag.Parse()

	if *hashKey != "" {
		hashed, err := middleware.HashTerminalKey(*hashKey)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hash terminal key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hashed)
		return
	}

	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logger.InitLogger(cfg)
	log := logger.GetLogger()
	defer log.Sync()
	log.Info("Starting TSD terminal agent...",
		zap.String("environment", cfg.Server.Env),
		zap.String("cache_driver", cfg.Cache.Driver))

	// Opening the cache also migrates it
	if err := database.InitDB(cfg, log); err != nil {
		log.Fatal("Failed to initialize cache database", zap.Error(err))
	}
	db := database.GetDB()
	log.Info("Cache database ready")

	prometheus.InitMetrics(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := settings.NewStore(db, settings.ConnectionSettings{
		ServerURL: cfg.Backend.ServerURL,
		Port:      cfg.Backend.Port,
		APIKey:    cfg.Backend.APIKey,
	}, settings.WithLogger(log))
	cacheStore := cache.NewStore(db, log)
	clients := repository.NewClientProvider(store, cfg.Backend.Timeout, log)

	auth := repository.NewAuthRepository(store, clients, log)
	units := repository.NewUnitsRepository(cacheStore, clients, log)
	categories := repository.NewCategoriesRepository(cacheStore, clients, log)
	nomenclature := repository.NewNomenclatureRepository(cacheStore, clients, log)
	warehouses := repository.NewWarehousesRepository(cacheStore, clients, log)
	barcodes := repository.NewBarcodesRepository(cacheStore, clients, log)
	documents := repository.NewDocumentsRepository(cacheStore, clients, log)
	device := repository.NewDeviceRepository(store, clients, cfg.Device, log)

	documentsVM := viewmodel.NewDocumentsViewModel(ctx, documents, auth, log)
	defer documentsVM.Close()

	h := handler.New(handler.Deps{
		DB:         db,
		Connection: viewmodel.NewConnectionSettingsViewModel(store, clients, log),
		Login:      viewmodel.NewLoginViewModel(auth, log),
		Device:     viewmodel.NewDeviceViewModel(device, auth, log),
		Directories: viewmodel.NewDirectoriesViewModel(auth, []viewmodel.Directory{
			{Name: "units", Repo: units},
			{Name: "categories", Repo: categories},
			{Name: "nomenclature", Repo: nomenclature},
			{Name: "warehouses", Repo: warehouses},
			{Name: "barcodes", Repo: barcodes},
		}, log),
		Documents: documentsVM,
		Counts:    viewmodel.NewDocumentCountsViewModel(documents, log),
		Draft: viewmodel.NewDocumentCreateViewModel(viewmodel.DocumentCreateDeps{
			Documents:    documents,
			Numbers:      device,
			Barcodes:     barcodes,
			Nomenclature: nomenclature,
			Warehouses:   warehouses,
			Units:        units,
			Tokens:       auth,
		}, model.ParseDocumentType(*docType), log),
		Auth:          auth,
		Units:         units,
		Categories:    categories,
		Nomenclature:  nomenclature,
		Warehouses:    warehouses,
		Barcodes:      barcodes,
		DocumentStore: documents,
	})

	e := echo.New()
	e.HideBanner = true

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())
	e.Use(middleware.TerminalKeyMiddleware(cfg.Terminal.AccessKey, "/", "/health", "/metrics"))
	if cfg.Terminal.AccessKey == "" {
		log.Warn("TERMINAL_ACCESS_KEY is not set, the local API is open")
	}

	h.Register(e)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	go func() {
		log.Info("Starting server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
}
