package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/hrygo/ordernotes/store"
)

func (d *DB) CreateOrder(ctx context.Context, create *store.Order) (*store.Order, error) {
	fields := []string{"number", "created_ts"}
	args := []any{create.Number, create.CreatedTs}
	if create.ID != 0 {
		fields = append(fields, "id")
		args = append(args, create.ID)
	}

	stmt := `INSERT INTO shop_order (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return create, nil
}

func (d *DB) ListOrders(ctx context.Context, find *store.FindOrder) ([]*store.Order, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}

	rows, err := d.db.QueryContext(ctx, `SELECT id, number, created_ts FROM shop_order WHERE `+strings.Join(where, " AND ")+` ORDER BY id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Order, 0)
	for rows.Next() {
		o := &store.Order{}
		if err := rows.Scan(&o.ID, &o.Number, &o.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		list = append(list, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return list, nil
}

func (d *DB) CreateOrderNote(ctx context.Context, create *store.OrderNote) (*store.OrderNote, error) {
	fields := []string{"uid", "order_id", "content", "is_customer_note", "added_by", "created_ts"}
	args := []any{create.UID, create.OrderID, create.Content, create.IsCustomerNote, create.AddedBy, create.CreatedTs}

	stmt := `INSERT INTO order_note (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create order_note: %w", err)
	}
	return create, nil
}

func (d *DB) ListOrderNotes(ctx context.Context, find *store.FindOrderNote) ([]*store.OrderNote, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.OrderID; v != nil {
		where, args = append(where, "order_id = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `SELECT id, uid, order_id, content, is_customer_note, added_by, created_ts FROM order_note WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_ts DESC, id DESC`
	if find.Limit > 0 {
		query, args = query+" LIMIT "+placeholder(len(args)+1), append(args, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list order_notes: %w", err)
	}
	defer rows.Close()

	list := make([]*store.OrderNote, 0)
	for rows.Next() {
		n := &store.OrderNote{}
		if err := rows.Scan(&n.ID, &n.UID, &n.OrderID, &n.Content, &n.IsCustomerNote, &n.AddedBy, &n.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan order_note: %w", err)
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order_notes: %w", err)
	}
	return list, nil
}

func (d *DB) DeleteOrderNote(ctx context.Context, delete *store.DeleteOrderNote) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM order_note WHERE id = `+placeholder(1)+` AND order_id = `+placeholder(2), delete.ID, delete.OrderID)
	if err != nil {
		return fmt.Errorf("failed to delete order_note: %w", err)
	}
	return store.CheckDeleted(result, store.ErrOrderNoteNotFound)
}
