package handler

import (
	"net/http"

	"github.com/AndrewKorobchuk/tsd/pkg/logger"
	"github.com/AndrewKorobchuk/tsd/pkg/settings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type connectionResponse struct {
	settings.ConnectionSettings
	FullURL string `json:"full_url"`
}

// GetConnection returns the stored backend connection settings
func (h *Handler) GetConnection(c echo.Context) error {
	return c.JSON(http.StatusOK, connectionResponse{
		ConnectionSettings: h.Connection.Load(),
		FullURL:            h.Connection.FullURL(),
	})
}

// SaveConnection validates and stores new connection settings
func (h *Handler) SaveConnection(c echo.Context) error {
	log := logger.FromContext(c)

	var req settings.ConnectionSettings
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse connection settings", zap.Error(err))
		return badRequest(c, "Could not parse request body")
	}

	saved, err := h.Connection.Save(req)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, connectionResponse{
		ConnectionSettings: saved,
		FullURL:            saved.FullURL(),
	})
}
