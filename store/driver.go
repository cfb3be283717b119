package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// Order model related methods.
	CreateOrder(ctx context.Context, create *Order) (*Order, error)
	ListOrders(ctx context.Context, find *FindOrder) ([]*Order, error)

	// OrderNote model related methods.
	CreateOrderNote(ctx context.Context, create *OrderNote) (*OrderNote, error)
	ListOrderNotes(ctx context.Context, find *FindOrderNote) ([]*OrderNote, error)
	DeleteOrderNote(ctx context.Context, delete *DeleteOrderNote) error

	// SystemSetting model related methods.
	UpsertSystemSetting(ctx context.Context, upsert *SystemSetting) (*SystemSetting, error)
	ListSystemSettings(ctx context.Context, find *FindSystemSetting) ([]*SystemSetting, error)
}

// CheckDeleted returns notFound when a DELETE matched no rows.
func CheckDeleted(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
