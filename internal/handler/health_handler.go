package handler

import (
	"net/http"
	"time"

	"github.com/AndrewKorobchuk/tsd/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// HealthCheck handles the health check endpoint
func (h *Handler) HealthCheck(c echo.Context) error {
	log := logger.FromContext(c)
	log.Debug("Health check requested")

	response := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	}

	// Check the cache database if requested
	if c.QueryParam("check") == "db" {
		sqlDB, err := h.DB.DB()
		if err != nil {
			log.Error("Database connection error", zap.Error(err))
			response["status"] = "error"
			response["db_status"] = "error"
			response["db_error"] = "Failed to get database connection"
			return c.JSON(http.StatusInternalServerError, response)
		}

		if err := sqlDB.PingContext(c.Request().Context()); err != nil {
			log.Error("Database ping error", zap.Error(err))
			response["status"] = "error"
			response["db_status"] = "error"
			response["db_error"] = "Failed to ping database"
			return c.JSON(http.StatusInternalServerError, response)
		}

		response["db_status"] = "ok"
	}

	return c.JSON(http.StatusOK, response)
}
