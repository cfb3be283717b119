// Package v1 serves the order notes REST API under /api/v1.
package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"

	"github.com/hrygo/ordernotes/internal/profile"
	"github.com/hrygo/ordernotes/server/auth"
	svcerrors "github.com/hrygo/ordernotes/server/internal/errors"
	"github.com/hrygo/ordernotes/server/middleware"
	"github.com/hrygo/ordernotes/server/service/ordernote"
	"github.com/hrygo/ordernotes/server/stats"
	"github.com/hrygo/ordernotes/server/timezone"
)

type APIV1Service struct {
	Profile      *profile.Profile
	NoteService  *ordernote.Service
	Formatter    *timezone.Formatter
	TokenManager *auth.TokenManager
	RateLimiter  *middleware.RateLimiter
	Stats        *stats.Collector

	markdown goldmark.Markdown
}

func NewAPIV1Service(p *profile.Profile, noteService *ordernote.Service, formatter *timezone.Formatter) *APIV1Service {
	service := &APIV1Service{
		Profile:     p,
		NoteService: noteService,
		Formatter:   formatter,
		markdown:    goldmark.New(),
	}
	if p.IsAuthEnabled() {
		service.TokenManager = auth.NewTokenManager(p.Secret)
	}
	if p.RateLimit > 0 {
		burst := int(p.RateLimit * 2)
		service.RateLimiter = middleware.NewRateLimiter(p.RateLimit, burst)
	}
	return service
}

// RegisterRoutes mounts the API on echoServer.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	g := echoServer.Group("/api/v1",
		middleware.RateLimit(s.RateLimiter),
		middleware.Authenticate(s.TokenManager),
	)
	g.GET("/orders/previews", s.ListOrderNotePreviews)
	g.GET("/orders/:id/notes", s.ListOrderNotes)
	g.POST("/orders/:id/notes", s.CreateOrderNote)
	g.DELETE("/orders/:id/notes/:noteId", s.DeleteOrderNote)
	g.GET("/orders/:id/notes/feed", s.GetOrderNoteFeed)
	g.GET("/stats", s.GetNoteStats)
}

type NoteStatsResponse struct {
	stats.Stats
	Summary string `json:"summary"`
}

// GetNoteStats returns the last collected note statistics.
// GET /api/v1/stats
func (s *APIV1Service) GetNoteStats(c echo.Context) error {
	if s.Stats == nil {
		return echo.NewHTTPError(http.StatusNotFound, "stats are not collected")
	}
	current := s.Stats.GetStats()
	return c.JSON(http.StatusOK, &NoteStatsResponse{Stats: current, Summary: current.GetSummary()})
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HTTPErrorHandler writes service errors as ErrorResponse with a matching status.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		status int
		body   ErrorResponse
	)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		body = ErrorResponse{Code: http.StatusText(he.Code), Message: http.StatusText(he.Code)}
		if msg, ok := he.Message.(string); ok {
			body.Message = msg
		}
	} else {
		code := svcerrors.GetCodeFromError(err, svcerrors.ErrCodeStoreError)
		status = svcerrors.HTTPStatus(code)
		body = ErrorResponse{Code: string(code), Message: publicMessage(err)}
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, body)
	}
	if writeErr != nil {
		slog.Warn("failed to write error response", slog.String("error", writeErr.Error()))
	}
}

// publicMessage never exposes the cause of an error.
func publicMessage(err error) string {
	var svcErr *svcerrors.ServiceError
	if !errors.As(err, &svcErr) {
		return "internal error"
	}
	return svcErr.Message
}
