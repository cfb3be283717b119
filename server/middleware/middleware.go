// Package middleware holds the echo middleware of the order notes API.
package middleware

import (
	"log/slog"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/ordernotes/server/auth"
	svcerrors "github.com/hrygo/ordernotes/server/internal/errors"
	"github.com/hrygo/ordernotes/server/internal/observability"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = echo.HeaderXRequestID

// RequestContext attaches an observability.RequestContext to every request,
// logs its outcome and records its latency.
func RequestContext(logger *slog.Logger, metrics *observability.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			route := c.Path()

			reqCtx := observability.NewRequestContext(logger, req.Header.Get(RequestIDHeader), route)
			if orderID, err := strconv.ParseInt(c.Param("id"), 10, 32); err == nil {
				reqCtx.OrderID = int32(orderID)
			}
			c.Response().Header().Set(RequestIDHeader, reqCtx.RequestID)
			c.SetRequest(req.WithContext(observability.WithRequestContext(req.Context(), reqCtx)))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			metrics.RecordRequest(route, strconv.Itoa(status), reqCtx.Duration())
			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.Int(observability.LogFieldStatus, status),
				slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()),
			}
			if err != nil {
				attrs = append(attrs, slog.String(observability.LogFieldErrorCode,
					string(svcerrors.GetCodeFromError(err, svcerrors.ErrCodeStoreError))))
			}
			if status >= 500 {
				reqCtx.Error("request failed", err, attrs...)
			} else {
				reqCtx.Debug("request completed", attrs...)
			}
			return nil
		}
	}
}

// Authenticate requires a valid bearer token. A nil manager disables it.
func Authenticate(tm *auth.TokenManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if tm == nil {
				return next(c)
			}
			token, err := auth.ExtractBearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return svcerrors.Unauthorized(err.Error())
			}
			claims, err := tm.ValidateToken(token)
			if err != nil {
				return svcerrors.Unauthorized(err.Error())
			}
			req := c.Request()
			c.SetRequest(req.WithContext(auth.WithClaims(req.Context(), claims)))
			return next(c)
		}
	}
}
