package httpapi

import (
	"time"

	"github.com/labstack/echo/v4"

	"transhub/internal/logger"
)

// RequestLoggerMiddleware logs every HTTP request through the shared
// structured logger, the way the teacher's router does.
func RequestLoggerMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			latency := time.Since(start)
			status := res.Status

			fields := []any{
				"module", "httpapi", "action", "request", "resource", "http",
				"method", req.Method, "path", req.URL.Path, "status_code", status,
				"duration_ms", latency.Milliseconds(), "remote_ip", c.RealIP(),
				"correlation_id", c.Response().Header().Get(correlationHeader),
			}

			switch {
			case status >= 500:
				logger.Error("http request", append(fields, "result", "failed")...)
			case status >= 400:
				logger.Warn("http request", append(fields, "result", "failed")...)
			default:
				logger.Debug("http request", append(fields, "result", "ok")...)
			}

			return nil
		}
	}
}
