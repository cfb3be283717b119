package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/ordernotes/internal/profile"
	"github.com/hrygo/ordernotes/store"
	teststore "github.com/hrygo/ordernotes/store/test"
)

func newTestingServer(ctx context.Context, t *testing.T) (*Server, *store.Store) {
	t.Helper()
	ts := teststore.NewTestingStore(ctx, t)
	p := &profile.Profile{Mode: "dev", Version: "test", Timezone: "UTC", DateFormat: profile.DefaultDateFormat, CacheTTL: profile.DefaultCacheTTL}
	srv, err := NewServer(ctx, p, ts)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Cache.Close() })
	return srv, ts
}

func TestServer_Healthz(t *testing.T) {
	ctx := context.Background()
	srv, _ := newTestingServer(ctx, t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test", resp.Version)
}

func TestServer_NotesAndMetrics(t *testing.T) {
	ctx := context.Background()
	srv, ts := newTestingServer(ctx, t)

	order, err := ts.CreateOrder(ctx, &store.Order{Number: "1001"})
	require.NoError(t, err)
	_, err = ts.CreateOrderNote(ctx, &store.OrderNote{OrderID: order.ID, Content: "Please ship ASAP"})
	require.NoError(t, err)

	path := "/api/v1/orders/" + strconv.Itoa(int(order.ID)) + "/notes"
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("X-Request-Id", "req-123")
		srv.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "req-123", rec.Header().Get("X-Request-Id"))
	}
	assert.Equal(t, 1, srv.Cache.Size())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `ordernotes_cache_lookups_total{result="hit"} 1`)
	assert.Contains(t, body, `ordernotes_cache_lookups_total{result="miss"} 1`)
	assert.Contains(t, body, "ordernotes_http_request_duration_seconds")
}

func TestServer_InvalidClassifierRule(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)
	p := &profile.Profile{Mode: "dev", Timezone: "UTC", ClassifierRules: []string{"content +"}}

	_, err := NewServer(ctx, p, ts)
	assert.Error(t, err)
}

func TestServer_Stats(t *testing.T) {
	ctx := context.Background()
	srv, ts := newTestingServer(ctx, t)

	order, err := ts.CreateOrder(ctx, &store.Order{Number: "1001"})
	require.NoError(t, err)
	_, err = ts.CreateOrderNote(ctx, &store.OrderNote{OrderID: order.ID, Content: "Payment received"})
	require.NoError(t, err)
	require.NoError(t, srv.Stats.Collect(ctx))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		TotalNotes  int64  `json:"total_notes"`
		SystemNotes int64  `json:"system_notes"`
		Summary     string `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.TotalNotes)
	assert.Equal(t, int64(1), resp.SystemNotes)
	assert.Contains(t, resp.Summary, "Order notes")
}

func TestServer_StartWithConnectionLimit(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)
	p := &profile.Profile{Mode: "dev", Version: "test", Addr: "127.0.0.1", Port: 0, Timezone: "UTC", MaxConnections: 2}
	srv, err := NewServer(ctx, p, ts)
	require.NoError(t, err)

	require.NoError(t, srv.Start(ctx))
	defer srv.Shutdown(ctx)

	resp, err := http.Get("http://" + srv.echoServer.Listener.Addr().String() + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
