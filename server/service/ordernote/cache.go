package ordernote

import (
	"context"
	"log/slog"
	"time"

	"github.com/hrygo/ordernotes/server/internal/observability"
	svcerrors "github.com/hrygo/ordernotes/server/internal/errors"
	"github.com/hrygo/ordernotes/store"
	"github.com/hrygo/ordernotes/store/cache"
)

// DefaultTTL is how long a cached notes list is served before it is fetched again.
const DefaultTTL = 300 * time.Second

// FilterMode selects whether system notes are hidden.
type FilterMode int

const (
	// FilterModeFiltered returns only human-written notes.
	FilterModeFiltered FilterMode = iota
	// FilterModeAll returns every note as supplied.
	FilterModeAll
)

func (m FilterMode) String() string {
	switch m {
	case FilterModeFiltered:
		return "filtered"
	case FilterModeAll:
		return "all"
	default:
		return "unknown"
	}
}

// ParseFilterMode parses "filtered" or "all". An empty string means filtered.
func ParseFilterMode(s string) (FilterMode, error) {
	switch s {
	case "", "filtered":
		return FilterModeFiltered, nil
	case "all":
		return FilterModeAll, nil
	default:
		return 0, svcerrors.InvalidArgument("unknown filter mode %q", s)
	}
}

// CacheKey identifies one cached notes list.
type CacheKey struct {
	OrderID int32
	Limit   int
	Mode    FilterMode
}

// Supplier fetches up to limit notes of an order, newest first.
// A limit of store.UnlimitedNotes fetches all of them.
type Supplier func(ctx context.Context, orderID int32, limit int) ([]*store.OrderNote, error)

// Cache memoizes note lists per (order, limit, filter mode).
//
// Concurrent misses on the same key may each call the supplier; the last
// one to finish wins. Supplier errors are returned unchanged and never cached.
type Cache struct {
	classifier *Classifier
	metrics    *observability.Metrics

	entries *cache.Cache[CacheKey, []*store.OrderNote]
}

// CacheOption configures a Cache.
type CacheOption func(*cacheOptions)

type cacheOptions struct {
	ttl             time.Duration
	maxItems        int
	cleanupInterval time.Duration
	now             func() time.Time
	metrics         *observability.Metrics
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) CacheOption {
	return func(o *cacheOptions) { o.ttl = ttl }
}

// WithMaxItems bounds the number of cached lists.
func WithMaxItems(n int) CacheOption {
	return func(o *cacheOptions) { o.maxItems = n }
}

// WithCleanupInterval starts a background sweep of expired lists.
func WithCleanupInterval(d time.Duration) CacheOption {
	return func(o *cacheOptions) { o.cleanupInterval = d }
}

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) CacheOption {
	return func(o *cacheOptions) { o.now = now }
}

// WithMetrics records hits, misses, supplier calls and invalidations.
func WithMetrics(m *observability.Metrics) CacheOption {
	return func(o *cacheOptions) { o.metrics = m }
}

// NewCache creates a notes cache in front of classifier.
func NewCache(classifier *Classifier, opts ...CacheOption) *Cache {
	o := cacheOptions{ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ttl <= 0 {
		o.ttl = DefaultTTL
	}
	if classifier == nil {
		classifier = MustNewClassifier()
	}

	return &Cache{
		classifier: classifier,
		metrics:    o.metrics,
		entries: cache.New[CacheKey, []*store.OrderNote](cache.Config{
			DefaultTTL:      o.ttl,
			CleanupInterval: o.cleanupInterval,
			MaxItems:        o.maxItems,
			Now:             o.now,
		}),
	}
}

// Close stops the background cleanup, if any.
func (c *Cache) Close() error {
	return c.entries.Close()
}

// GetNotes returns the notes for the key, fetching them on a miss.
func (c *Cache) GetNotes(ctx context.Context, orderID int32, limit int, mode FilterMode, supplier Supplier) ([]*store.OrderNote, error) {
	key, err := newCacheKey(orderID, limit, mode)
	if err != nil {
		return nil, err
	}

	if notes, ok := c.entries.Get(key); ok {
		c.metrics.RecordCacheLookup(true)
		observability.LoggerFromContext(ctx).Debug("order notes cache hit",
			slog.Int64("order_id", int64(orderID)), slog.Int("limit", limit), slog.String("mode", mode.String()))
		return notes, nil
	}
	c.metrics.RecordCacheLookup(false)

	return c.fetchAndStore(ctx, key, supplier)
}

// BypassAndRefresh drops the cached list for the key and fetches it again.
func (c *Cache) BypassAndRefresh(ctx context.Context, orderID int32, limit int, mode FilterMode, supplier Supplier) ([]*store.OrderNote, error) {
	key, err := newCacheKey(orderID, limit, mode)
	if err != nil {
		return nil, err
	}
	c.entries.Delete(key)
	return c.fetchAndStore(ctx, key, supplier)
}

// Invalidate removes every cached list of the order, whatever its limit
// and mode. It is a no-op for an order with nothing cached. Callers writing
// notes must call it before reporting the write as done.
func (c *Cache) Invalidate(ctx context.Context, orderID int32) {
	removed := c.entries.DeleteFunc(func(key CacheKey) bool {
		return key.OrderID == orderID
	})

	c.metrics.RecordInvalidation(removed)
	observability.LoggerFromContext(ctx).Debug("order notes cache invalidated",
		slog.Int64("order_id", int64(orderID)), slog.Int("removed", removed))
}

// Size returns the number of cached lists.
func (c *Cache) Size() int {
	return c.entries.Size()
}

func (c *Cache) fetchAndStore(ctx context.Context, key CacheKey, supplier Supplier) ([]*store.OrderNote, error) {
	if supplier == nil {
		return nil, svcerrors.InvalidArgument("supplier is required")
	}

	// Classification needs the whole history; limiting first would keep
	// whatever happened to fall in the window.
	fetchLimit := key.Limit
	if key.Mode == FilterModeFiltered {
		fetchLimit = store.UnlimitedNotes
	}

	notes, err := supplier(ctx, key.OrderID, fetchLimit)
	c.metrics.RecordSupplierCall(err)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("failed to fetch order notes",
			slog.Int64("order_id", int64(key.OrderID)), slog.String("error", err.Error()))
		return nil, err
	}

	var result []*store.OrderNote
	if key.Mode == FilterModeFiltered {
		result = c.classifier.Filter(notes)
		if key.Limit > 0 && len(result) > key.Limit {
			result = result[:key.Limit:key.Limit]
		}
	} else {
		result = append(make([]*store.OrderNote, 0, len(notes)), notes...)
	}

	c.entries.Set(key, result)
	return result, nil
}

func newCacheKey(orderID int32, limit int, mode FilterMode) (CacheKey, error) {
	if orderID <= 0 {
		return CacheKey{}, svcerrors.InvalidArgument("order id must be positive, got %d", orderID)
	}
	if limit != store.UnlimitedNotes && limit <= 0 {
		return CacheKey{}, svcerrors.InvalidArgument("limit must be -1 or positive, got %d", limit)
	}
	if mode != FilterModeFiltered && mode != FilterModeAll {
		return CacheKey{}, svcerrors.InvalidArgument("unknown filter mode %d", int(mode))
	}
	return CacheKey{OrderID: orderID, Limit: limit, Mode: mode}, nil
}
