package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// GetDevice returns the locally stored device identity
func (h *Handler) GetDevice(c echo.Context) error {
	state := h.Device.State()
	state.Info = h.Device.Info()
	return c.JSON(http.StatusOK, state)
}

// InitDevice registers the terminal with the backend once
func (h *Handler) InitDevice(c echo.Context) error {
	state, err := h.Device.Initialize(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, state)
}
