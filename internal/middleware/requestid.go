package middleware

import (
	"strings"

	"github.com/AndrewKorobchuk/tsd/pkg/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const maxRequestIDLength = 64

// RequestIDMiddleware tags each request with an id. An inbound X-Request-ID
// is kept when it is short and printable.
func RequestIDMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := strings.TrimSpace(c.Request().Header.Get(logger.RequestIDKey))
		if !validRequestID(requestID) {
			requestID = uuid.NewString()
		}

		c.Request().Header.Set(logger.RequestIDKey, requestID)
		c.Response().Header().Set(logger.RequestIDKey, requestID)
		c.Set(logger.RequestIDKey, requestID)

		return next(c)
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, r := range id {
		if r < 0x21 || r > 0x7e {
			return false
		}
	}
	return true
}
