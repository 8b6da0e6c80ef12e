package handler

import (
	"net/http"
	"strings"

	"github.com/AndrewKorobchuk/tsd/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// SyncDirectories pulls every reference directory from the backend
func (h *Handler) SyncDirectories(c echo.Context) error {
	report, err := h.Directories.SyncAll(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// DirectoryStats returns row counts and last update times of the cache
func (h *Handler) DirectoryStats(c echo.Context) error {
	stats, err := h.Directories.Stats(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) ListUnits(c echo.Context) error {
	rows, err := h.Units.ListActive(c.Request().Context(), search(c))
	return list(c, rows, err)
}

func (h *Handler) ListCategories(c echo.Context) error {
	rows, err := h.Categories.ListActive(c.Request().Context(), search(c))
	return list(c, rows, err)
}

func (h *Handler) ListWarehouses(c echo.Context) error {
	rows, err := h.Warehouses.ListActive(c.Request().Context(), search(c))
	return list(c, rows, err)
}

// ListNomenclature lists active items, optionally within one category
func (h *Handler) ListNomenclature(c echo.Context) error {
	var categoryID int64
	if err := echo.QueryParamsBinder(c).Int64("category_id", &categoryID).BindError(); err != nil {
		return badRequest(c, "category_id must be a number")
	}

	ctx := c.Request().Context()
	if categoryID > 0 {
		rows, err := h.Nomenclature.ListActiveByCategory(ctx, categoryID, search(c))
		return list(c, rows, err)
	}
	rows, err := h.Nomenclature.ListActive(ctx, search(c))
	return list(c, rows, err)
}

// ListBarcodes lists active barcodes, optionally of one nomenclature item
func (h *Handler) ListBarcodes(c echo.Context) error {
	var nomenclatureID int64
	if err := echo.QueryParamsBinder(c).Int64("nomenclature_id", &nomenclatureID).BindError(); err != nil {
		return badRequest(c, "nomenclature_id must be a number")
	}

	ctx := c.Request().Context()
	if nomenclatureID > 0 {
		rows, err := h.Barcodes.ByNomenclature(ctx, nomenclatureID)
		return list(c, rows, err)
	}
	rows, err := h.Barcodes.ListActive(ctx, search(c))
	return list(c, rows, err)
}

// ScanBarcode resolves a scanned value. Cached barcodes resolve without a
// session; unknown values are looked up remotely with the stored token.
func (h *Handler) ScanBarcode(c echo.Context) error {
	log := logger.FromContext(c)

	token, err := h.Auth.AccessToken()
	if err != nil {
		log.Debug("Scanning without a session", zap.Error(err))
	}

	barcode, err := h.Barcodes.Lookup(c.Request().Context(), token, c.Param("value"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, barcode)
}

func search(c echo.Context) string {
	return strings.TrimSpace(c.QueryParam("search"))
}

func list[T any](c echo.Context, rows []T, err error) error {
	if err != nil {
		return fail(c, err)
	}
	if rows == nil {
		rows = []T{}
	}
	return c.JSON(http.StatusOK, rows)
}
