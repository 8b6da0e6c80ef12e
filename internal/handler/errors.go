package handler

import (
	"errors"
	"net/http"

	"github.com/AndrewKorobchuk/tsd/internal/repository"
	"github.com/AndrewKorobchuk/tsd/internal/viewmodel"
	"github.com/AndrewKorobchuk/tsd/pkg/api"
	"github.com/AndrewKorobchuk/tsd/pkg/logger"
	"github.com/AndrewKorobchuk/tsd/pkg/settings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// classify maps an error to the response status and OAuth-style error code
func classify(err error) (int, string) {
	var validationErr *viewmodel.ValidationError
	var itemErr *viewmodel.ItemSaveError
	var httpErr *api.HTTPError
	var transportErr *api.TransportError
	var echoErr *echo.HTTPError

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, "invalid_request"
	case errors.As(err, &echoErr):
		return echoErr.Code, "invalid_request"
	case errors.Is(err, settings.ErrNotConfigured):
		return http.StatusPreconditionFailed, "not_configured"
	case errors.Is(err, repository.ErrTokenExpired):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, repository.ErrBarcodeNotFound),
		errors.Is(err, repository.ErrDocumentNotFound),
		errors.Is(err, viewmodel.ErrNoSuchItem):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, viewmodel.ErrSaving),
		errors.Is(err, viewmodel.ErrAlreadySaved),
		errors.Is(err, viewmodel.ErrHeaderPersisted),
		errors.Is(err, viewmodel.ErrItemPersisted):
		return http.StatusConflict, "conflict"
	case errors.As(err, &itemErr):
		return http.StatusBadGateway, "backend_error"
	case errors.As(err, &httpErr):
		if httpErr.StatusCode == http.StatusUnauthorized {
			return http.StatusUnauthorized, "unauthorized"
		}
		return http.StatusBadGateway, "backend_error"
	case errors.As(err, &transportErr):
		return http.StatusGatewayTimeout, "backend_unavailable"
	case errors.Is(err, api.ErrEmptyBody):
		return http.StatusBadGateway, "backend_error"
	}
	return http.StatusInternalServerError, "server_error"
}

// fail writes err as a JSON error response
func fail(c echo.Context, err error) error {
	log := logger.FromContext(c)
	status, code := classify(err)

	if status >= http.StatusInternalServerError {
		log.Error("Request failed", zap.Int("status", status), zap.Error(err))
	} else {
		log.Warn("Request rejected", zap.Int("status", status), zap.Error(err))
	}

	body := echo.Map{
		"error":             code,
		"error_description": describe(err),
	}
	var validationErr *viewmodel.ValidationError
	if errors.As(err, &validationErr) {
		body["field"] = validationErr.Field
	}
	return c.JSON(status, body)
}

func describe(err error) string {
	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		if msg, ok := echoErr.Message.(string); ok {
			return msg
		}
		return http.StatusText(echoErr.Code)
	}
	return viewmodel.Message(err)
}

func badRequest(c echo.Context, description string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{
		"error":             "invalid_request",
		"error_description": description,
	})
}
