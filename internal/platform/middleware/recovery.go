package middleware

import (
	"fmt"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/hmserr"
)

// Recovery returns middleware that converts a handler panic into a classified
// internal error, so clients receive the same {"error"} body as any other
// failure instead of a dropped connection. The panic value, stack, and the
// acting user are logged before the request is answered.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					var stack [4096]byte
					n := runtime.Stack(stack[:], false)

					rid, _ := c.Get("request_id").(string)
					evt := logger.Error().
						Str("request_id", rid).
						Str("method", c.Request().Method).
						Str("path", c.Request().URL.Path).
						Str("panic", fmt.Sprintf("%v", r)).
						Str("stack", string(stack[:n]))
					if uid, _ := c.Get("user_id").(string); uid != "" {
						evt = evt.Str("user_id", uid)
					}
					evt.Msg("panic recovered")

					err = hmserr.Internal(fmt.Errorf("panic: %v", r), "request handler panicked")
				}
			}()
			return next(c)
		}
	}
}
