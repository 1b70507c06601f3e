package middleware

import (
	"time"

	"OrdreBook/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs every request at debug, 5xx at error and slow ones at warn.
func RequestLogging(l *logger.Logger, slow time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req, res := c.Request(), c.Response()
			latency := time.Since(start)
			fields := []logger.Field{
				logger.String("method", req.Method),
				logger.String("route", routeLabel(c)),
				logger.Int("status", res.Status),
				logger.Duration("duration_ms", latency),
				logger.Int64("bytes", res.Size),
			}
			switch {
			case res.Status >= 500:
				l.Error("http request failed", fields...)
			case slow > 0 && latency >= slow:
				l.Warn("http request slow", fields...)
			default:
				l.Debug("http request", fields...)
			}
			return nil
		}
	}
}
