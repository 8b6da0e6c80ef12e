package logger

import (
	"fmt"
	"strings"
	"time"

	"github.com/AndrewKorobchuk/tsd/pkg/config"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.Logger

// quietPaths are polled by the terminal shell every few seconds
var quietPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// New builds a terminal logger from cfg. Every entry carries the device
// install ID and name so logs shipped from many terminals stay apart.
func New(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if cfg.Server.Env == "production" {
		zc = zap.NewProductionConfig()
		// Scanner bursts must not be sampled away
		zc.Sampling = nil
	}

	switch cfg.Log.Format {
	case "json":
		zc.Encoding = "json"
	case "console":
		zc.Encoding = "console"
	case "":
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Log.Format)
	}
	if zc.Encoding == "console" {
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		if cfg.Log.File != "" {
			// No escape codes in files
			zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		}
	}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level, err := zapcore.ParseLevel(strings.TrimSpace(cfg.Log.Level))
	if err != nil {
		level = zapcore.InfoLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	if cfg.Log.File != "" {
		zc.OutputPaths = append(zc.OutputPaths, cfg.Log.File)
	}

	var fields []zap.Field
	if cfg.Device.InstallID != "" {
		fields = append(fields, zap.String("install_id", cfg.Device.InstallID))
	}
	if cfg.Device.Name != "" {
		fields = append(fields, zap.String("device", cfg.Device.Name))
	}
	return zc.Build(zap.Fields(fields...))
}

// InitLogger builds the process logger and panics when cfg is unusable
func InitLogger(cfg *config.Config) {
	built, err := New(cfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log = built
	log.Info("Logger initialized",
		zap.String("level", log.Level().String()),
		zap.String("file", cfg.Log.File))
}

// GetLogger returns the process logger, or a production one before InitLogger
func GetLogger() *zap.Logger {
	if log == nil {
		var err error
		log, err = zap.NewProduction()
		if err != nil {
			panic("Failed to create fallback logger: " + err.Error())
		}
	}
	return log
}

// Middleware logs each request of the local API. Polled paths are logged at
// debug level unless they fail.
func Middleware(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			requestID := c.Request().Header.Get(RequestIDKey)
			if requestID == "" {
				requestID = c.Response().Header().Get(RequestIDKey)
			}

			ctxLogger := logger.With(zap.String("request_id", requestID))
			c.Set("logger", ctxLogger)

			// Make the request logger visible to view-models and repositories
			req := c.Request()
			c.SetRequest(req.WithContext(WithContext(req.Context(), ctxLogger)))

			err := next(c)
			if err != nil {
				// Let echo write the response so the logged status is the real one
				c.Error(err)
			}

			status := c.Response().Status
			fields := []zapcore.Field{
				zap.String("method", c.Request().Method),
				zap.String("route", c.Path()),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
			}

			switch {
			case err != nil && status >= 500:
				ctxLogger.Error("Local API request failed", append(fields, zap.Error(err))...)
			case err != nil:
				ctxLogger.Warn("Local API request rejected", append(fields, zap.Error(err))...)
			case quietPaths[c.Request().URL.Path]:
				ctxLogger.Debug("Local API request served", fields...)
			default:
				ctxLogger.Info("Local API request served", fields...)
			}

			return nil
		}
	}
}
