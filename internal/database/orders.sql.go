// source: orders.sql

package database

import (
	"context"
	"time"

	"github.com/caixa-pos/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, code, session_id, status, cliente, items, total_cents, pagamento, pagamento_status, troco_cents, endereco, observacao, timestamps, created_by, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.Code,
		&i.SessionID,
		&i.Status,
		&i.Cliente,
		&i.Items,
		&i.TotalCents,
		&i.Pagamento,
		&i.PagamentoStatus,
		&i.TrocoCents,
		&i.Endereco,
		&i.Observacao,
		&i.Timestamps,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (
    id, code, session_id, status, cliente, items, total_cents,
    pagamento, pagamento_status, troco_cents, endereco, observacao,
    timestamps, created_by
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	ID              string                         `json:"id"`
	Code            string                         `json:"code"`
	SessionID       uuid.UUID                      `json:"session_id"`
	Status          enum.OrderStatus               `json:"status"`
	Cliente         string                         `json:"cliente"`
	Items           []OrderItem                    `json:"items"`
	TotalCents      int64                          `json:"total_cents"`
	Pagamento       enum.PaymentMethod             `json:"pagamento"`
	PagamentoStatus enum.PaymentStatus             `json:"pagamento_status"`
	TrocoCents      pgtype.Int8                    `json:"troco_cents"`
	Endereco        pgtype.Text                    `json:"endereco"`
	Observacao      pgtype.Text                    `json:"observacao"`
	Timestamps      map[enum.OrderStatus]time.Time `json:"timestamps"`
	CreatedBy       string                         `json:"created_by"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.ID,
		arg.Code,
		arg.SessionID,
		arg.Status,
		arg.Cliente,
		arg.Items,
		arg.TotalCents,
		arg.Pagamento,
		arg.PagamentoStatus,
		arg.TrocoCents,
		arg.Endereco,
		arg.Observacao,
		arg.Timestamps,
		arg.CreatedBy,
	)
	return scanOrder(row)
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
FOR NO KEY UPDATE`

func (q *Queries) GetOrderForUpdate(ctx context.Context, id string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + `
FROM orders
WHERE ($1::text IS NULL OR status = $1::text)
  AND ($2::uuid IS NULL OR session_id = $2::uuid)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`

type ListOrdersParams struct {
	Status    pgtype.Text `json:"status"`
	SessionID pgtype.UUID `json:"session_id"`
	Limit     int32       `json:"limit"`
	Offset    int32       `json:"offset"`
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.Status, arg.SessionID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders
SET status = $2,
    pagamento_status = CASE
        WHEN $2 = 'CANCELADO' AND pagamento_status = 'PENDENTE' THEN 'CANCELADO'
        ELSE pagamento_status
    END,
    timestamps = CASE
        WHEN timestamps ->> $2::text IS NULL THEN timestamps || jsonb_build_object($2::text, $4::text)
        ELSE timestamps
    END,
    updated_at = now()
WHERE id = $1 AND status = $3
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID             string           `json:"id"`
	Status         enum.OrderStatus `json:"status"`
	PreviousStatus enum.OrderStatus `json:"previous_status"`
	At             time.Time        `json:"at"`
}

// UpdateOrderStatus moves an order from PreviousStatus to Status. It returns
// pgx.ErrNoRows if the order is no longer in PreviousStatus. The timestamp
// for Status is recorded only the first time the order enters it.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderStatus,
		arg.ID,
		arg.Status,
		arg.PreviousStatus,
		arg.At.UTC().Format(time.RFC3339Nano),
	)
	return scanOrder(row)
}

const markOrderPaid = `-- name: MarkOrderPaid :one
UPDATE orders
SET pagamento = $2, pagamento_status = 'PAGO', updated_at = now()
WHERE id = $1 AND pagamento_status = 'PENDENTE' AND status <> 'CANCELADO'
RETURNING ` + orderColumns

type MarkOrderPaidParams struct {
	ID        string             `json:"id"`
	Pagamento enum.PaymentMethod `json:"pagamento"`
}

// MarkOrderPaid returns pgx.ErrNoRows when the order is already paid or
// cancelled.
func (q *Queries) MarkOrderPaid(ctx context.Context, arg MarkOrderPaidParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, markOrderPaid, arg.ID, arg.Pagamento))
}
