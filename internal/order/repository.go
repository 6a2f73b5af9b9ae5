package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// ListFilter narrows and paginates an order listing. Cursor is an exclusive
// upper bound on created_at; results come back newest first.
type ListFilter struct {
	CustomerID   string
	RestaurantID string
	Status       OrderStatus
	Limit        int
	Cursor       *time.Time
}

type Repository interface {
	// CreateOrder persists the order and its items in one transaction.
	// A non-nil event is appended to the outbox in the same transaction.
	CreateOrder(ctx context.Context, o *Order, event *OutboxEvent) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, f ListFilter) ([]Order, error)
	// UpdateStatuses records an order/payment status transition, optionally
	// appending an outbox event in the same transaction.
	UpdateStatuses(ctx context.Context, id uuid.UUID, status OrderStatus, payment PaymentStatus, event *OutboxEvent) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateOrder(ctx context.Context, o *Order, event *OutboxEvent) (err error) {
	if o.ID == uuid.Nil {
		genID, genErr := uuid.NewV4()
		if genErr != nil {
			return fmt.Errorf("repository: failed to generate order ID: %w", genErr)
		}
		o.ID = genID
	}

	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", o.ID).Msg("failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", o.ID).Msg("failed to rollback transaction")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
			}
		}
	}()

	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	queryOrder := `
		INSERT INTO orders (order_id, customer_id, restaurant_id, address_id, order_status, payment_status,
			payment_method, subtotal, tax, delivery_fee, total, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = tx.Exec(ctx, queryOrder,
		o.ID,
		o.CustomerID,
		o.RestaurantID,
		o.AddressID,
		string(o.Status),
		string(o.PaymentStatus),
		o.PaymentMethod,
		o.Subtotal,
		o.Tax,
		o.DeliveryFee,
		o.Total,
		o.Note,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}

	queryItem := `
		INSERT INTO order_items (order_item_id, order_id, item_id, item_name, unit_price, quantity, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for i := range o.Items {
		item := &o.Items[i]

		itemID, genErr := uuid.NewV4()
		if genErr != nil {
			return fmt.Errorf("repository: failed to generate order item ID: %w", genErr)
		}
		item.ID = itemID
		item.OrderID = o.ID

		_, err = tx.Exec(ctx, queryItem,
			item.ID,
			item.OrderID,
			item.ItemID,
			item.ItemName,
			item.UnitPrice,
			item.Quantity,
			item.LineTotal,
		)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order item for order %s: %w", o.ID, err)
		}
	}

	if event != nil {
		if err = appendOutboxEvent(ctx, tx, event); err != nil {
			return err
		}
	}

	return nil
}

func (r *postgresRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	queryOrder := `
		SELECT order_id, customer_id, restaurant_id, address_id, order_status, payment_status,
			payment_method, subtotal, tax, delivery_fee, total, note, created_at, updated_at
		FROM orders
		WHERE order_id = $1
	`

	var o Order
	err := r.db.QueryRow(ctx, queryOrder, id).Scan(
		&o.ID,
		&o.CustomerID,
		&o.RestaurantID,
		&o.AddressID,
		&o.Status,
		&o.PaymentStatus,
		&o.PaymentMethod,
		&o.Subtotal,
		&o.Tax,
		&o.DeliveryFee,
		&o.Total,
		&o.Note,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", id, err)
	}

	queryItems := `
		SELECT order_item_id, order_id, item_id, item_name, unit_price, quantity, line_total
		FROM order_items
		WHERE order_id = $1
	`

	rows, err := r.db.Query(ctx, queryItems, id)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items for order %s: %w", id, err)
	}
	defer rows.Close()

	items := make([]OrderItem, 0)
	for rows.Next() {
		var item OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ItemID,
			&item.ItemName,
			&item.UnitPrice,
			&item.Quantity,
			&item.LineTotal,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item for order %s: %w", id, err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items for order %s: %w", id, err)
	}

	o.Items = items

	return &o, nil
}

func (r *postgresRepository) ListOrders(ctx context.Context, f ListFilter) ([]Order, error) {
	query := `
		SELECT order_id, customer_id, restaurant_id, address_id, order_status, payment_status,
			payment_method, subtotal, tax, delivery_fee, total, note, created_at, updated_at
		FROM orders
		WHERE 1=1
	`
	args := make([]any, 0, 4)

	if f.CustomerID != "" {
		args = append(args, f.CustomerID)
		query += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}
	if f.RestaurantID != "" {
		args = append(args, f.RestaurantID)
		query += fmt.Sprintf(" AND restaurant_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(" AND order_status = $%d", len(args))
	}
	if f.Cursor != nil {
		args = append(args, *f.Cursor)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}

	args = append(args, f.Limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		var o Order
		err := rows.Scan(
			&o.ID,
			&o.CustomerID,
			&o.RestaurantID,
			&o.AddressID,
			&o.Status,
			&o.PaymentStatus,
			&o.PaymentMethod,
			&o.Subtotal,
			&o.Tax,
			&o.DeliveryFee,
			&o.Total,
			&o.Note,
			&o.CreatedAt,
			&o.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		o.Items = make([]OrderItem, 0)
		orders = append(orders, o)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	return orders, nil
}

func (r *postgresRepository) UpdateStatuses(ctx context.Context, id uuid.UUID, status OrderStatus, payment PaymentStatus, event *OutboxEvent) (err error) {
	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", id).Msg("failed to rollback status update")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				err = fmt.Errorf("repository: failed to commit status update: %w", commitErr)
			}
		}
	}()

	query := `
		UPDATE orders
		SET order_status = $1, payment_status = $2, updated_at = $3
		WHERE order_id = $4
	`
	cmdTag, err := tx.Exec(ctx, query, string(status), string(payment), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("repository: failed to update order statuses for %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		err = ErrOrderNotFound
		return err
	}

	if event != nil {
		if err = appendOutboxEvent(ctx, tx, event); err != nil {
			return err
		}
	}

	return nil
}

func appendOutboxEvent(ctx context.Context, tx pgx.Tx, event *OutboxEvent) error {
	if event.ID == uuid.Nil {
		genID, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate outbox event ID: %w", err)
		}
		event.ID = genID
	}

	query := `
		INSERT INTO outbox_events (event_id, aggregate_type, aggregate_id, event_type, payload, published, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
	`
	_, err := tx.Exec(ctx, query,
		event.ID,
		event.AggregateType,
		event.AggregateID,
		event.EventType,
		event.Payload,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("repository: failed to append outbox event %s: %w", event.EventType, err)
	}
	return nil
}
