package handler

import (
	"net/http"

	"github.com/AndrewKorobchuk/tsd/internal/repository"
	"github.com/AndrewKorobchuk/tsd/internal/viewmodel"
	"github.com/AndrewKorobchuk/tsd/prometheus"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// Deps are the view-models and repositories served over HTTP
type Deps struct {
	DB *gorm.DB

	Connection  *viewmodel.ConnectionSettingsViewModel
	Login       *viewmodel.LoginViewModel
	Device      *viewmodel.DeviceViewModel
	Directories *viewmodel.DirectoriesViewModel
	Documents   *viewmodel.DocumentsViewModel
	Counts      *viewmodel.DocumentCountsViewModel
	Draft       *viewmodel.DocumentCreateViewModel

	Auth          *repository.AuthRepository
	Units         *repository.UnitsRepository
	Categories    *repository.CategoriesRepository
	Nomenclature  *repository.NomenclatureRepository
	Warehouses    *repository.WarehousesRepository
	Barcodes      *repository.BarcodesRepository
	DocumentStore *repository.DocumentsRepository
}

// Handler is the local HTTP surface of the terminal
type Handler struct {
	Deps
}

func New(deps Deps) *Handler {
	return &Handler{Deps: deps}
}

// Register installs the JSON serializer and mounts every route on e
func (h *Handler) Register(e *echo.Echo) {
	e.JSONSerializer = JSONSerializer{}

	e.GET("/", h.Hello)
	e.GET("/health", h.HealthCheck)
	e.GET("/metrics", prometheus.HandlerFunc())

	s := e.Group("/settings")
	s.GET("/connection", h.GetConnection)
	s.PUT("/connection", h.SaveConnection)

	auth := e.Group("/auth")
	auth.POST("/login", h.LoginUser)
	auth.POST("/logout", h.LogoutUser)
	auth.GET("/session", h.Session)
	auth.GET("/me", h.Me)

	device := e.Group("/device")
	device.GET("", h.GetDevice)
	device.POST("/init", h.InitDevice)

	e.POST("/directories/sync", h.SyncDirectories)
	e.GET("/directories/stats", h.DirectoryStats)
	e.GET("/units", h.ListUnits)
	e.GET("/categories", h.ListCategories)
	e.GET("/nomenclature", h.ListNomenclature)
	e.GET("/warehouses", h.ListWarehouses)
	e.GET("/barcodes", h.ListBarcodes)
	e.GET("/barcodes/scan/:value", h.ScanBarcode)

	docs := e.Group("/documents")
	docs.GET("", h.ListDocuments)
	docs.PUT("/filter", h.SetDocumentFilter)
	docs.GET("/counts", h.DocumentCounts)
	docs.GET("/stream", h.StreamDocuments)
	docs.POST("/sync", h.SyncDocuments)
	docs.GET("/:id", h.GetDocument)
	docs.GET("/:id/items", h.DocumentItems)
	docs.POST("/:id/post", h.PostDocument)
	docs.POST("/:id/cancel", h.CancelDocument)
	docs.DELETE("/:id", h.DeleteDocument)

	draft := e.Group("/draft")
	draft.GET("", h.GetDraft)
	draft.PUT("", h.UpdateDraft)
	draft.GET("/stream", h.StreamDraft)
	draft.POST("/number", h.GenerateNumber)
	draft.POST("/items", h.AddDraftItem)
	draft.DELETE("/items", h.ClearDraftItems)
	draft.POST("/scan", h.ScanDraftItem)
	draft.PUT("/items/:index", h.UpdateDraftItem)
	draft.DELETE("/items/:index", h.RemoveDraftItem)
	draft.POST("/save", h.SaveDraft)
	draft.POST("/reset", h.ResetDraft)
}

// Hello returns a simple welcome message
func (h *Handler) Hello(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"message": "TSD terminal agent",
		"version": "1.0.0",
	})
}
