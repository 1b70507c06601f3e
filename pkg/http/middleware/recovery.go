package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"OrdreBook/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Recover turns handler panics into a 500.
func Recover(l *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					l.Error("http handler panic",
						logger.String("panic", fmt.Sprint(r)),
						logger.String("route", routeLabel(c)),
						logger.String("stack", string(debug.Stack())),
					)
					err = c.JSON(http.StatusInternalServerError, map[string]interface{}{
						"status":  http.StatusInternalServerError,
						"message": "Internal Server Error",
					})
				}
			}()
			return next(c)
		}
	}
}
