// Package server wires the store, the notes cache and the HTTP API together.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/netutil"

	"github.com/hrygo/ordernotes/internal/profile"
	"github.com/hrygo/ordernotes/server/internal/observability"
	"github.com/hrygo/ordernotes/server/middleware"
	apiv1 "github.com/hrygo/ordernotes/server/router/api/v1"
	"github.com/hrygo/ordernotes/server/service/ordernote"
	"github.com/hrygo/ordernotes/server/stats"
	"github.com/hrygo/ordernotes/server/timezone"
	"github.com/hrygo/ordernotes/store"
)

const cacheCleanupInterval = time.Minute

type Server struct {
	Profile *profile.Profile
	Store   *store.Store
	Cache   *ordernote.Cache
	Stats   *stats.Collector

	echoServer *echo.Echo
	registry   *prometheus.Registry
}

// NewServer builds the classifier, cache and routes from the profile.
func NewServer(ctx context.Context, p *profile.Profile, s *store.Store) (*Server, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	classifier, err := ordernote.NewClassifier(ordernote.WithRules(p.ClassifierRules...))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build note classifier")
	}
	cache := ordernote.NewCache(classifier,
		ordernote.WithTTL(p.CacheTTL),
		ordernote.WithMaxItems(p.CacheMaxItems),
		ordernote.WithCleanupInterval(cacheCleanupInterval),
		ordernote.WithMetrics(metrics),
	)
	formatter, err := timezone.NewFormatter(p.Timezone, p.DateFormat)
	if err != nil {
		cache.Close()
		return nil, err
	}

	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.HTTPErrorHandler = apiv1.HTTPErrorHandler
	echoServer.Use(echomiddleware.Recover())
	echoServer.Use(middleware.RequestContext(slog.Default(), metrics))

	srv := &Server{
		Profile:    p,
		Store:      s,
		Cache:      cache,
		Stats:      stats.NewCollector(s, classifier),
		echoServer: echoServer,
		registry:   registry,
	}

	echoServer.GET("/healthz", srv.healthz)
	echoServer.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	apiV1Service := apiv1.NewAPIV1Service(p, ordernote.NewService(s, cache), formatter)
	apiV1Service.Stats = srv.Stats
	apiV1Service.RegisterRoutes(echoServer)

	slog.DebugContext(ctx, "server configured",
		slog.Duration("cache_ttl", p.CacheTTL),
		slog.Int("classifier_rules", len(p.ClassifierRules)),
		slog.Bool("auth", p.IsAuthEnabled()))
	return srv, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}
	if n := s.Profile.MaxConnections; n > 0 {
		listener = netutil.LimitListener(listener, n)
	}
	s.echoServer.Listener = listener

	s.Stats.Start(ctx, stats.DefaultInterval)
	go func() {
		if err := s.echoServer.Start(address); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start echo server", slog.String("error", err.Error()))
		}
	}()
	slog.InfoContext(ctx, "ordernotes started", slog.String("address", address), slog.String("mode", s.Profile.Mode))
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	slog.Info("server shutting down")
	s.Stats.Stop()
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
	if err := s.Cache.Close(); err != nil {
		slog.Error("failed to close cache", slog.String("error", err.Error()))
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", slog.String("error", err.Error()))
	}
	slog.Info("ordernotes stopped properly")
}

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	CacheSize int    `json:"cache_size"`
}

func (s *Server) healthz(c echo.Context) error {
	if err := s.Store.GetDriver().GetDB().PingContext(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Version: s.Profile.Version})
	}
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Version: s.Profile.Version, CacheSize: s.Cache.Size()})
}
