package store

import (
	"context"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
)

// UnlimitedNotes asks ListOrderNotes for every note of an order.
const UnlimitedNotes = -1

var (
	// ErrOrderNotFound is returned when the requested order does not exist.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderNoteNotFound is returned when the requested note does not exist.
	ErrOrderNoteNotFound = errors.New("order note not found")
)

type Order struct {
	ID        int32
	Number    string
	CreatedTs int64
}

type FindOrder struct {
	ID *int32
}

// OrderNote is a timestamped text entry attached to an order.
// Notes are never modified once written.
type OrderNote struct {
	ID             int32
	UID            string
	OrderID        int32
	Content        string
	IsCustomerNote bool
	// AddedBy is the display name of the staff member who wrote the note, empty for system notes.
	AddedBy   string
	CreatedTs int64
}

type FindOrderNote struct {
	ID      *int32
	OrderID *int32
	// Limit caps the number of returned notes. UnlimitedNotes or 0 returns all of them.
	Limit int
}

type DeleteOrderNote struct {
	ID      int32
	OrderID int32
}

func (s *Store) CreateOrder(ctx context.Context, create *Order) (*Order, error) {
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	return s.driver.CreateOrder(ctx, create)
}

func (s *Store) ListOrders(ctx context.Context, find *FindOrder) ([]*Order, error) {
	list, err := s.driver.ListOrders(ctx, find)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list orders")
	}
	return list, nil
}

// GetOrder returns ErrOrderNotFound if there is no order with the given id.
func (s *Store) GetOrder(ctx context.Context, find *FindOrder) (*Order, error) {
	list, err := s.driver.ListOrders(ctx, find)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list orders")
	}
	if len(list) == 0 {
		return nil, ErrOrderNotFound
	}
	return list[0], nil
}

func (s *Store) CreateOrderNote(ctx context.Context, create *OrderNote) (*OrderNote, error) {
	if _, err := s.GetOrder(ctx, &FindOrder{ID: &create.OrderID}); err != nil {
		return nil, err
	}
	if create.UID == "" {
		create.UID = shortuuid.New()
	}
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	note, err := s.driver.CreateOrderNote(ctx, create)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create order note")
	}
	return note, nil
}

// ListOrderNotes returns the notes of an order, newest first.
// It returns ErrOrderNotFound when the order does not exist.
func (s *Store) ListOrderNotes(ctx context.Context, find *FindOrderNote) ([]*OrderNote, error) {
	if find.OrderID != nil {
		if _, err := s.GetOrder(ctx, &FindOrder{ID: find.OrderID}); err != nil {
			return nil, err
		}
	}
	list, err := s.driver.ListOrderNotes(ctx, find)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list order notes")
	}
	return list, nil
}

func (s *Store) DeleteOrderNote(ctx context.Context, delete *DeleteOrderNote) error {
	if err := s.driver.DeleteOrderNote(ctx, delete); err != nil {
		if errors.Is(err, ErrOrderNoteNotFound) {
			return err
		}
		return errors.Wrap(err, "failed to delete order note")
	}
	return nil
}
