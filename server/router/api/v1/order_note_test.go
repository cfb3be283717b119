package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/ordernotes/internal/profile"
	"github.com/hrygo/ordernotes/server/service/ordernote"
	"github.com/hrygo/ordernotes/server/timezone"
	"github.com/hrygo/ordernotes/store"
	teststore "github.com/hrygo/ordernotes/store/test"
)

var testNow = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

type testServer struct {
	echo    *echo.Echo
	service *APIV1Service
	store   *store.Store
}

func newTestServer(ctx context.Context, t *testing.T, p *profile.Profile) *testServer {
	t.Helper()
	ts := teststore.NewTestingStore(ctx, t)
	cache := ordernote.NewCache(ordernote.MustNewClassifier())
	t.Cleanup(func() { cache.Close() })

	formatter, err := timezone.NewFormatter("Europe/Kyiv", "")
	require.NoError(t, err)
	formatter = formatter.WithClock(func() time.Time { return testNow })

	service := NewAPIV1Service(p, ordernote.NewService(ts, cache), formatter)
	e := echo.New()
	e.HTTPErrorHandler = HTTPErrorHandler
	service.RegisterRoutes(e)
	return &testServer{echo: e, service: service, store: ts}
}

func (s *testServer) do(t *testing.T, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func seedOrder(ctx context.Context, t *testing.T, s *store.Store, notes ...*store.OrderNote) *store.Order {
	t.Helper()
	order, err := s.CreateOrder(ctx, &store.Order{Number: "1001"})
	require.NoError(t, err)
	for _, n := range notes {
		n.OrderID = order.ID
		_, err := s.CreateOrderNote(ctx, n)
		require.NoError(t, err)
	}
	return order
}

func TestListOrderNotes(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(ctx, t, &profile.Profile{})
	order := seedOrder(ctx, t, srv.store,
		&store.OrderNote{Content: "Please ship **ASAP**", IsCustomerNote: true, CreatedTs: testNow.Add(-3 * time.Hour).Unix()},
		&store.OrderNote{Content: "Order status changed from Processing to Completed.", CreatedTs: testNow.Add(-2 * time.Hour).Unix()},
		&store.OrderNote{Content: "Called the customer", AddedBy: "olena", CreatedTs: testNow.Add(-1 * time.Hour).Unix()},
	)
	path := "/api/v1/orders/" + itoa(order.ID) + "/notes"

	t.Run("Filtered", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp ListOrderNotesResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "filtered", resp.Filter)
		require.Len(t, resp.Notes, 2)

		admin := resp.Notes[0]
		assert.Equal(t, "Called the customer", admin.Content)
		assert.Equal(t, "Admin", admin.Author)
		assert.Equal(t, "admin", admin.Type)
		assert.Equal(t, "olena", admin.AddedBy)
		assert.Equal(t, "1 hour ago", admin.DateRelative)

		customer := resp.Notes[1]
		assert.Equal(t, "Customer", customer.Author)
		assert.Equal(t, "customer", customer.Type)
		// 09:00 UTC is 11:00 in Kyiv in winter.
		assert.Equal(t, "2026-01-15 11:00", customer.Date)
		assert.Equal(t, "<p>Please ship <strong>ASAP</strong></p>\n", customer.ContentHTML)
	})

	t.Run("AllWithLimit", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, path+"?filter=all&limit=2", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ListOrderNotesResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "all", resp.Filter)
		require.Len(t, resp.Notes, 2)
		assert.Equal(t, "Order status changed from Processing to Completed.", resp.Notes[1].Content)
	})

	t.Run("NoCache", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, path+"?nocache=1&limit=-1", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("BadRequests", func(t *testing.T) {
		for _, target := range []string{
			path + "?limit=abc",
			path + "?limit=0",
			path + "?filter=some",
			"/api/v1/orders/0/notes",
			"/api/v1/orders/abc/notes",
		} {
			rec := srv.do(t, http.MethodGet, target, "", nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, target)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "INVALID_ARGUMENT", resp.Code)
		}
	})

	t.Run("MissingOrder", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/api/v1/orders/9999/notes", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCreateAndDeleteOrderNote(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(ctx, t, &profile.Profile{})
	order := seedOrder(ctx, t, srv.store,
		&store.OrderNote{Content: "Please ship ASAP", CreatedTs: testNow.Add(-time.Hour).Unix()},
	)
	path := "/api/v1/orders/" + itoa(order.ID) + "/notes"

	// Warm the cache.
	rec := srv.do(t, http.MethodGet, path+"?limit=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodPost, path, `{"content":"Customer asked for a call","is_customer_note":true}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created OrderNote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Customer", created.Author)

	rec = srv.do(t, http.MethodGet, path+"?limit=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list ListOrderNotesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Notes, 1)
	assert.Equal(t, "Customer asked for a call", list.Notes[0].Content)

	rec = srv.do(t, http.MethodPost, path, `{"content":"   "}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodDelete, path+"/"+itoa(created.ID), "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = srv.do(t, http.MethodDelete, path+"/"+itoa(created.ID), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, http.MethodGet, path+"?limit=1", "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Notes, 1)
	assert.Equal(t, "Please ship ASAP", list.Notes[0].Content)
}

func TestListOrderNotePreviews(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(ctx, t, &profile.Profile{})
	withNote := seedOrder(ctx, t, srv.store,
		&store.OrderNote{Content: "Gift wrap, please", CreatedTs: 100},
		&store.OrderNote{Content: "Payment received", CreatedTs: 200},
	)
	systemOnly := seedOrder(ctx, t, srv.store, &store.OrderNote{Content: "Pending", CreatedTs: 100})

	rec := srv.do(t, http.MethodGet, "/api/v1/orders/previews?ids="+itoa(withNote.ID)+","+itoa(systemOnly.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ListOrderNotePreviewsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Previews, 2)
	require.NotNil(t, resp.Previews[itoa(withNote.ID)])
	assert.Equal(t, "Gift wrap, please", resp.Previews[itoa(withNote.ID)].Content)
	assert.Equal(t, "Gift wrap, please", resp.Previews[itoa(withNote.ID)].Excerpt)
	assert.Nil(t, resp.Previews[itoa(systemOnly.ID)])

	rec = srv.do(t, http.MethodGet, "/api/v1/orders/previews", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = srv.do(t, http.MethodGet, "/api/v1/orders/previews?ids=1,x", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderNoteFeed(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(ctx, t, &profile.Profile{})
	order := seedOrder(ctx, t, srv.store,
		&store.OrderNote{Content: "Please ship ASAP", CreatedTs: 100},
		&store.OrderNote{Content: "Payment received", CreatedTs: 200},
	)

	rec := srv.do(t, http.MethodGet, "/api/v1/orders/"+itoa(order.ID)+"/notes/feed", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "application/rss+xml")
	body := rec.Body.String()
	assert.Contains(t, body, "<rss")
	assert.Contains(t, body, "Please ship ASAP")
	assert.NotContains(t, body, "Payment received")
}

func TestAuthentication(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(ctx, t, &profile.Profile{Secret: "test-secret"})
	order := seedOrder(ctx, t, srv.store, &store.OrderNote{Content: "Please ship ASAP", CreatedTs: 100})
	path := "/api/v1/orders/" + itoa(order.ID) + "/notes"

	rec := srv.do(t, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodGet, path, "", map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := srv.service.TokenManager.GenerateToken("olena", time.Hour)
	require.NoError(t, err)
	header := map[string]string{"Authorization": "Bearer " + token}

	rec = srv.do(t, http.MethodGet, path, "", header)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodPost, path, `{"content":"Checked stock, all good"}`, header)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created OrderNote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "olena", created.AddedBy)
}

func TestRateLimit(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(ctx, t, &profile.Profile{RateLimit: 1})
	order := seedOrder(ctx, t, srv.store)
	path := "/api/v1/orders/" + itoa(order.ID) + "/notes"

	var limited bool
	for i := 0; i < 5; i++ {
		rec := srv.do(t, http.MethodGet, path, "", nil)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.True(t, limited)
}

func itoa(id int32) string {
	return strconv.Itoa(int(id))
}
