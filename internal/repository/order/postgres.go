package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"partsmarket/internal/domain"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

const orderColumns = `
id::text, order_number, session_id, currency, payment_method,
parts_subtotal::text, labor_subtotal::text, subtotal::text, shipping_fee::text,
tax_amount::text, discount_amount::text, grand_total::text, total_savings::text,
promo_code, shipping_address, billing_address, notes, created_at`

// CreateOrder stores payload and returns the assigned order number. A replay
// of an existing idempotency key returns the original order when the payload
// matches it, and ErrKeyReused otherwise.
func (r *postgresRepo) CreateOrder(ctx context.Context, payload domain.OrderPayload) (*domain.OrderConfirmation, error) {
	conf, err := r.create(ctx, payload)
	if err != nil {
		var osErr *domain.OrderServiceError
		if errors.As(err, &osErr) {
			return nil, err
		}
		return nil, &domain.OrderServiceError{Kind: domain.OrderServiceRemote, Message: "persist order", Err: err}
	}
	return conf, nil
}

func (r *postgresRepo) create(ctx context.Context, payload domain.OrderPayload) (*domain.OrderConfirmation, error) {
	shipping, err := json.Marshal(payload.ShippingAddress)
	if err != nil {
		return nil, err
	}
	billing, err := json.Marshal(payload.BillingAddress)
	if err != nil {
		return nil, err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	p := payload.Pricing
	fp := fingerprint(payload)
	var (
		orderID string
		conf    domain.OrderConfirmation
	)
	err = tx.QueryRow(ctx, `
INSERT INTO orders (
	idempotency_key, session_id, currency, payment_method,
	parts_subtotal, labor_subtotal, subtotal, shipping_fee,
	tax_amount, discount_amount, grand_total, total_savings,
	promo_code, shipping_address, billing_address, notes, payload_fingerprint
)
VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8::numeric,
	$9::numeric, $10::numeric, $11::numeric, $12::numeric, $13, $14, $15, $16, $17)
ON CONFLICT (idempotency_key) DO NOTHING
RETURNING id::text, order_number, created_at
`,
		payload.IdempotencyKey, payload.SessionID, payload.Currency, string(payload.PaymentMethod),
		p.PartsSubtotal.String(), p.LaborSubtotal.String(), p.Subtotal.String(), p.ShippingFee.String(),
		p.TaxAmount.String(), p.DiscountAmount.String(), p.GrandTotal.String(), p.TotalSavings.String(),
		p.PromoCode, shipping, billing, payload.Notes, fp,
	).Scan(&orderID, &conf.OrderNumber, &conf.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.existing(ctx, tx, payload.IdempotencyKey, fp)
	}
	if err != nil {
		return nil, err
	}

	for i, item := range payload.Items {
		var original *string
		if item.OriginalPrice != nil {
			s := item.OriginalPrice.String()
			original = &s
		}
		var minutes *int
		var scheduled any
		if item.Schedule != nil {
			if item.Schedule.EstimatedMinutes > 0 {
				m := item.Schedule.EstimatedMinutes
				minutes = &m
			}
			if item.Schedule.ScheduledDate != nil {
				scheduled = *item.Schedule.ScheduledDate
			}
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO order_lines (
	order_id, position, line_item_id, kind, name, unit_price, quantity,
	original_price, shop_id, estimated_minutes, scheduled_date
)
VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8::numeric, $9, $10, $11)
`, orderID, i, item.ID, string(item.Kind), item.Name, item.UnitPrice.String(), item.Quantity,
			original, item.ShopID, minutes, scheduled); err != nil {
			return nil, fmt.Errorf("insert line %s: %w", item.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (r *postgresRepo) existing(ctx context.Context, tx pgx.Tx, key, fp string) (*domain.OrderConfirmation, error) {
	var (
		conf   domain.OrderConfirmation
		stored string
	)
	if err := tx.QueryRow(ctx, `
SELECT order_number, created_at, payload_fingerprint
FROM orders
WHERE idempotency_key = $1
`, key).Scan(&conf.OrderNumber, &conf.CreatedAt, &stored); err != nil {
		return nil, err
	}
	if stored != fp {
		return nil, ErrKeyReused
	}
	return &conf, nil
}

func (r *postgresRepo) GetByNumber(ctx context.Context, sessionID, number string) (*domain.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+`
FROM orders
WHERE session_id = $1 AND order_number = $2
`, sessionID, number)
	orderID, order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if order.Items, err = r.fetchLines(ctx, orderID); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *postgresRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+`
FROM orders
WHERE session_id = $1
ORDER BY created_at DESC
LIMIT $2
`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		ids    []string
		orders []domain.Order
	)
	for rows.Next() {
		id, order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, id := range ids {
		if orders[i].Items, err = r.fetchLines(ctx, id); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func scanOrder(row pgx.Row) (string, *domain.Order, error) {
	var (
		id                string
		order             domain.Order
		sessionID         string
		payment           string
		amounts           [8]string
		shipping, billing []byte
	)
	if err := row.Scan(
		&id,
		&order.Number,
		&sessionID,
		&order.Currency,
		&payment,
		&amounts[0], &amounts[1], &amounts[2], &amounts[3],
		&amounts[4], &amounts[5], &amounts[6], &amounts[7],
		&order.Pricing.PromoCode,
		&shipping,
		&billing,
		&order.Notes,
		&order.CreatedAt,
	); err != nil {
		return "", nil, err
	}
	order.PaymentMethod = domain.PaymentMethod(payment)

	targets := []*decimal.Decimal{
		&order.Pricing.PartsSubtotal, &order.Pricing.LaborSubtotal, &order.Pricing.Subtotal, &order.Pricing.ShippingFee,
		&order.Pricing.TaxAmount, &order.Pricing.DiscountAmount, &order.Pricing.GrandTotal, &order.Pricing.TotalSavings,
	}
	for i, raw := range amounts {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return "", nil, fmt.Errorf("parse amount %q: %w", raw, err)
		}
		*targets[i] = d
	}
	if err := json.Unmarshal(shipping, &order.ShippingAddress); err != nil {
		return "", nil, fmt.Errorf("decode shipping address: %w", err)
	}
	if err := json.Unmarshal(billing, &order.BillingAddress); err != nil {
		return "", nil, fmt.Errorf("decode billing address: %w", err)
	}
	return id, &order, nil
}

func (r *postgresRepo) fetchLines(ctx context.Context, orderID string) ([]domain.LineItem, error) {
	rows, err := r.pool.Query(ctx, `
SELECT line_item_id, kind, name, unit_price::text, quantity, original_price::text,
	shop_id, estimated_minutes, scheduled_date
FROM order_lines
WHERE order_id = $1
ORDER BY position ASC
`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.LineItem
	for rows.Next() {
		var (
			item      domain.LineItem
			kind      string
			unitPrice string
			original  *string
			minutes   *int
			scheduled *time.Time
		)
		if err := rows.Scan(
			&item.ID,
			&kind,
			&item.Name,
			&unitPrice,
			&item.Quantity,
			&original,
			&item.ShopID,
			&minutes,
			&scheduled,
		); err != nil {
			return nil, err
		}
		item.Kind = domain.LineItemKind(kind)
		if item.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return nil, fmt.Errorf("parse unit price: %w", err)
		}
		if original != nil {
			d, err := decimal.NewFromString(*original)
			if err != nil {
				return nil, fmt.Errorf("parse original price: %w", err)
			}
			item.OriginalPrice = &d
		}
		if minutes != nil || scheduled != nil {
			item.Schedule = &domain.LaborSchedule{ScheduledDate: scheduled}
			if minutes != nil {
				item.Schedule.EstimatedMinutes = *minutes
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
