package middleware

import (
	"net/http"

	"github.com/AndrewKorobchuk/tsd/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// TerminalKeyHeader carries the shared key of the local HTTP surface
const TerminalKeyHeader = "X-Terminal-Key"

// TerminalKeyMiddleware rejects requests whose X-Terminal-Key does not match
// the bcrypt hash. An empty hash disables the check. Paths in open are
// always let through.
func TerminalKeyMiddleware(hash string, open ...string) echo.MiddlewareFunc {
	skip := make(map[string]bool, len(open))
	for _, p := range open {
		skip[p] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if hash == "" || skip[c.Path()] {
				return next(c)
			}

			log := logger.FromContext(c)

			key := c.Request().Header.Get(TerminalKeyHeader)
			if key == "" {
				log.Warn("Missing terminal key")
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error":             "unauthorized",
					"error_description": "Terminal key required",
				})
			}

			if !validateTerminalKey(hash, key) {
				log.Warn("Invalid terminal key", zap.String("remote_ip", c.RealIP()))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error":             "unauthorized",
					"error_description": "Invalid terminal key",
				})
			}

			return next(c)
		}
	}
}

// HashTerminalKey returns the bcrypt hash to put in TERMINAL_ACCESS_KEY
func HashTerminalKey(key string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func validateTerminalKey(hash, key string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}
