package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Structured log keys shared by the HTTP layer and the note service.
const (
	LogFieldRequestID = "request_id"
	LogFieldOrderID   = "order_id"
	LogFieldRoute     = "route"
	LogFieldDuration  = "duration_ms"
	LogFieldErrorCode = "error_code"
	LogFieldStatus    = "status"
)

// RequestContext carries the identity and timing of one API request.
// Every line logged through it is tagged with the request id and route,
// and with the order id once known.
type RequestContext struct {
	RequestID string
	OrderID   int32
	Route     string
	StartTime time.Time
	Logger    *slog.Logger
}

// NewRequestContext starts timing a request. An empty requestID is replaced
// by a random UUID and a nil logger by slog.Default.
func NewRequestContext(logger *slog.Logger, requestID, route string) *RequestContext {
	if logger == nil {
		logger = slog.Default()
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return &RequestContext{
		RequestID: requestID,
		Route:     route,
		StartTime: time.Now(),
		Logger:    logger,
	}
}

func (r *RequestContext) Debug(msg string, attrs ...slog.Attr) {
	r.log(slog.LevelDebug, msg, attrs)
}

func (r *RequestContext) Info(msg string, attrs ...slog.Attr) {
	r.log(slog.LevelInfo, msg, attrs)
}

func (r *RequestContext) Warn(msg string, attrs ...slog.Attr) {
	r.log(slog.LevelWarn, msg, attrs)
}

// Error logs msg at error level with err attached under "error".
func (r *RequestContext) Error(msg string, err error, attrs ...slog.Attr) {
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	r.log(slog.LevelError, msg, attrs)
}

// Duration returns the time elapsed since the request started.
func (r *RequestContext) Duration() time.Duration {
	return time.Since(r.StartTime)
}

func (r *RequestContext) DurationMs() int64 {
	return r.Duration().Milliseconds()
}

func (r *RequestContext) log(level slog.Level, msg string, attrs []slog.Attr) {
	r.Logger.LogAttrs(context.Background(), level, msg, append(r.attrs(), attrs...)...)
}

func (r *RequestContext) attrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String(LogFieldRequestID, r.RequestID),
		slog.String(LogFieldRoute, r.Route),
	}
	if r.OrderID > 0 {
		attrs = append(attrs, slog.Int64(LogFieldOrderID, int64(r.OrderID)))
	}
	return attrs
}

type requestContextKey struct{}

func WithRequestContext(ctx context.Context, reqCtx *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, reqCtx)
}

func FromContext(ctx context.Context) (*RequestContext, bool) {
	reqCtx, ok := ctx.Value(requestContextKey{}).(*RequestContext)
	return reqCtx, ok
}

// LoggerFromContext returns a logger tagged with the request attributes,
// or slog.Default outside a request.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	reqCtx, ok := FromContext(ctx)
	if !ok {
		return slog.Default()
	}
	var args []any
	for _, a := range reqCtx.attrs() {
		args = append(args, a)
	}
	return reqCtx.Logger.With(args...)
}
