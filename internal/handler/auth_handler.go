package handler

import (
	"net/http"

	"github.com/AndrewKorobchuk/tsd/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// LoginUser runs the OAuth password login against the backend
func (h *Handler) LoginUser(c echo.Context) error {
	log := logger.FromContext(c)

	// Bind request body
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		return badRequest(c, "Could not parse request body")
	}

	if _, err := h.Login.Login(c.Request().Context(), req.Username, req.Password); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, h.Login.State())
}

// LogoutUser ends the local session
func (h *Handler) LogoutUser(c echo.Context) error {
	if err := h.Login.Logout(); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, h.Login.State())
}

// Session reports whether a valid session is stored
func (h *Handler) Session(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Login.Refresh())
}

// Me asks the backend who the current session belongs to
func (h *Handler) Me(c echo.Context) error {
	user, err := h.Auth.CurrentUser(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, user)
}
