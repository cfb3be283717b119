package ordernote

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	svcerrors "github.com/hrygo/ordernotes/server/internal/errors"
	"github.com/hrygo/ordernotes/server/internal/observability"
	"github.com/hrygo/ordernotes/store"
)

const (
	// MaxNoteLength is the longest note content accepted, in characters.
	MaxNoteLength = 10000
	// DefaultListLimit is used by callers that do not pass a limit.
	DefaultListLimit = 10
	// MaxPreviewOrders bounds one bulk preview request.
	MaxPreviewOrders = 100

	previewConcurrency = 8
)

// Service reads and writes order notes through the cache.
type Service struct {
	Store *store.Store
	Cache *Cache
}

// NewService creates a Service.
func NewService(s *store.Store, cache *Cache) *Service {
	return &Service{Store: s, Cache: cache}
}

// ListNotes returns up to limit notes of the order, newest first.
// fresh bypasses the cached list and replaces it.
func (s *Service) ListNotes(ctx context.Context, orderID int32, limit int, mode FilterMode, fresh bool) ([]*store.OrderNote, error) {
	var (
		notes []*store.OrderNote
		err   error
	)
	if fresh {
		notes, err = s.Cache.BypassAndRefresh(ctx, orderID, limit, mode, s.supplyNotes)
	} else {
		notes, err = s.Cache.GetNotes(ctx, orderID, limit, mode, s.supplyNotes)
	}
	if err != nil {
		return nil, toServiceError(err)
	}
	return notes, nil
}

// Preview returns the newest human-written note of the order, or nil.
func (s *Service) Preview(ctx context.Context, orderID int32) (*store.OrderNote, error) {
	notes, err := s.ListNotes(ctx, orderID, 1, FilterModeFiltered, false)
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, nil
	}
	return notes[0], nil
}

// Previews returns the newest human-written note per order. Orders without
// one map to nil. Missing orders fail the whole request.
func (s *Service) Previews(ctx context.Context, orderIDs []int32) (map[int32]*store.OrderNote, error) {
	if len(orderIDs) > MaxPreviewOrders {
		return nil, svcerrors.InvalidArgument("at most %d orders per request, got %d", MaxPreviewOrders, len(orderIDs))
	}

	results := make([]*store.OrderNote, len(orderIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(previewConcurrency)
	for i, id := range orderIDs {
		g.Go(func() error {
			preview, err := s.Preview(gctx, id)
			if err != nil {
				return err
			}
			results[i] = preview
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	previews := make(map[int32]*store.OrderNote, len(orderIDs))
	for i, id := range orderIDs {
		previews[id] = results[i]
	}
	return previews, nil
}

// AddNote persists a note and invalidates the order's cached lists before returning.
func (s *Service) AddNote(ctx context.Context, create *store.OrderNote) (*store.OrderNote, error) {
	if create == nil {
		return nil, svcerrors.InvalidArgument("note is required")
	}
	if create.OrderID <= 0 {
		return nil, svcerrors.InvalidArgument("order id must be positive, got %d", create.OrderID)
	}
	content := strings.TrimSpace(create.Content)
	if content == "" {
		return nil, svcerrors.InvalidArgument("note content is empty")
	}
	if n := utf8.RuneCountInString(content); n > MaxNoteLength {
		return nil, svcerrors.InvalidArgument("note content is %d characters, limit is %d", n, MaxNoteLength)
	}

	note, err := s.Store.CreateOrderNote(ctx, &store.OrderNote{
		OrderID:        create.OrderID,
		Content:        content,
		IsCustomerNote: create.IsCustomerNote,
		AddedBy:        create.AddedBy,
		CreatedTs:      create.CreatedTs,
	})
	if err != nil {
		return nil, toServiceError(err)
	}

	s.Cache.Invalidate(ctx, note.OrderID)
	observability.LoggerFromContext(ctx).Info("order note added",
		slog.Int64("order_id", int64(note.OrderID)),
		slog.Int64("note_id", int64(note.ID)),
		slog.Bool("customer", note.IsCustomerNote))
	return note, nil
}

// DeleteNote removes a note of the order and invalidates the order's cached lists.
func (s *Service) DeleteNote(ctx context.Context, orderID, noteID int32) error {
	if orderID <= 0 || noteID <= 0 {
		return svcerrors.InvalidArgument("order id and note id must be positive")
	}
	if err := s.Store.DeleteOrderNote(ctx, &store.DeleteOrderNote{ID: noteID, OrderID: orderID}); err != nil {
		return toServiceError(err)
	}

	s.Cache.Invalidate(ctx, orderID)
	observability.LoggerFromContext(ctx).Info("order note deleted",
		slog.Int64("order_id", int64(orderID)), slog.Int64("note_id", int64(noteID)))
	return nil
}

// supplyNotes is the store-backed Supplier.
func (s *Service) supplyNotes(ctx context.Context, orderID int32, limit int) ([]*store.OrderNote, error) {
	return s.Store.ListOrderNotes(ctx, &store.FindOrderNote{OrderID: &orderID, Limit: limit})
}

// toServiceError maps store errors to API error codes. Errors that already
// carry a code pass through.
func toServiceError(err error) error {
	var svcErr *svcerrors.ServiceError
	if errors.As(err, &svcErr) {
		return err
	}
	switch {
	case errors.Is(err, store.ErrOrderNotFound):
		return svcerrors.NotFound("order not found", err)
	case errors.Is(err, store.ErrOrderNoteNotFound):
		return svcerrors.NotFound("order note not found", err)
	default:
		return svcerrors.StoreError("failed to access order notes", err)
	}
}
