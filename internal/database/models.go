package database

import (
	"time"

	"github.com/caixa-pos/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Operator struct {
	ID        uuid.UUID         `json:"id"`
	AccessID  string            `json:"access_id"`
	Name      string            `json:"name"`
	Role      enum.OperatorRole `json:"role"`
	PinHash   string            `json:"-"`
	Active    bool              `json:"active"`
	CreatedAt time.Time         `json:"created_at"`
}

type CashSession struct {
	ID            uuid.UUID          `json:"id"`
	OpenedAt      time.Time          `json:"opened_at"`
	OpenedBy      string             `json:"opened_by"`
	BaseCents     int64              `json:"base_cents"`
	Paused        bool               `json:"paused"`
	VendasCents   int64              `json:"vendas_cents"`
	EntradasCents int64              `json:"entradas_cents"`
	SaidasCents   int64              `json:"saidas_cents"`
	VendasCount   int32              `json:"vendas_count"`
	ClosedAt      pgtype.Timestamptz `json:"closed_at"`
	ClosedBy      pgtype.Text        `json:"closed_by"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

type SessionPaymentTotal struct {
	SessionID  uuid.UUID          `json:"session_id"`
	Method     enum.PaymentMethod `json:"method"`
	TotalCents int64              `json:"total_cents"`
}

type SessionItemTotal struct {
	SessionID   uuid.UUID `json:"session_id"`
	ProductName string    `json:"product_name"`
	Quantity    int64     `json:"quantity"`
}

type SessionSale struct {
	OrderID    string             `json:"order_id"`
	SessionID  uuid.UUID          `json:"session_id"`
	Method     enum.PaymentMethod `json:"method"`
	ItemCount  int32              `json:"item_count"`
	TotalCents int64              `json:"total_cents"`
	Cliente    pgtype.Text        `json:"cliente"`
	RecordedAt time.Time          `json:"recorded_at"`
}

type CashMovement struct {
	ID          uuid.UUID         `json:"id"`
	RequestID   string            `json:"request_id"`
	SessionID   uuid.UUID         `json:"session_id"`
	Kind        enum.MovementKind `json:"kind"`
	ValueCents  int64             `json:"value_cents"`
	CreatedBy   string            `json:"created_by"`
	Description pgtype.Text       `json:"description"`
	CreatedAt   time.Time         `json:"created_at"`
}

// OrderItem is one line of the items JSONB column.
type OrderItem struct {
	Nome       string `json:"nome"`
	Quantidade int64  `json:"quantidade"`
	PrecoCents int64  `json:"precoCents"`
}

type Order struct {
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
	CreatedAt       time.Time                      `json:"created_at"`
	UpdatedAt       time.Time                      `json:"updated_at"`
}
