package middleware

import (
	"github.com/Ramsey-B/thistle/pkg/reqctx"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Context copies request metadata onto the request context and echoes the
// request id back in the response.
func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			ctx := req.Context()
			ctx = reqctx.SetRequestID(ctx, requestID)
			ctx = reqctx.SetMethod(ctx, req.Method)
			ctx = reqctx.SetRoute(ctx, req.URL.Path)
			ctx = reqctx.SetRemoteIP(ctx, c.RealIP())

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
