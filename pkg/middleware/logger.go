package middleware

import (
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/dahlia/pkg/context"
)

// Logger emits one structured line per admin API request. Runs after
// Context so the request ID is already on the context.
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()
			res := c.Response()
			start := time.Now()
			if err = next(c); err != nil {
				c.Error(err)
			}

			ctx := c.Request().Context()
			logger.WithContext(ctx).WithFields(map[string]any{
				"request_id":    appctx.GetRequestID(ctx),
				"method":        req.Method,
				"uri":           req.RequestURI,
				"route":         c.Path(),
				"status":        res.Status,
				"remote_ip":     c.RealIP(),
				"user_agent":    req.UserAgent(),
				"duration":      time.Since(start).String(),
				"response_size": res.Size,
			}).Info("Request")

			return nil
		}
	}
}
