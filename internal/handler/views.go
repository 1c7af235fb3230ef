package handler

import (
	"time"

	"github.com/caixa-pos/api/internal/database"
	"github.com/caixa-pos/api/internal/enum"
	"github.com/caixa-pos/api/internal/money"
	"github.com/caixa-pos/api/internal/service"
	"github.com/google/uuid"
)

// --- Response types ---
//
// Amounts leave the API as decimal strings ("42.50").

type caixaResponse struct {
	Status  enum.SessionStatus `json:"status"`
	Session *sessionResponse   `json:"session"`
}

type sessionResponse struct {
	ID          uuid.UUID          `json:"id"`
	OpenedAt    time.Time          `json:"openedAt"`
	OpenedBy    string             `json:"openedBy"`
	Paused      bool               `json:"paused"`
	ClosedAt    *time.Time         `json:"closedAt"`
	ClosedBy    string             `json:"closedBy,omitempty"`
	Base        string             `json:"base"`
	Totals      totalsResponse     `json:"totals"`
	Saldo       string             `json:"saldo"`
	VendasCount int                `json:"vendasCount"`
	Items       map[string]int64   `json:"items"`
	Entradas    []movementResponse `json:"entradas"`
	Saidas      []movementResponse `json:"saidas"`
	Completos   []completoResponse `json:"completos"`
}

type totalsResponse struct {
	Vendas       string            `json:"vendas"`
	Entradas     string            `json:"entradas"`
	Saidas       string            `json:"saidas"`
	PorPagamento map[string]string `json:"porPagamento"`
}

type movementResponse struct {
	At    time.Time `json:"at"`
	Value string    `json:"value"`
	By    string    `json:"by"`
	Desc  string    `json:"desc,omitempty"`
}

type completoResponse struct {
	OrderID   string             `json:"orderId"`
	At        time.Time          `json:"at"`
	ItemCount int                `json:"itemCount"`
	Total     string             `json:"total"`
	Cliente   string             `json:"cliente,omitempty"`
	Method    enum.PaymentMethod `json:"method"`
}

type sessionSummaryResponse struct {
	ID          uuid.UUID      `json:"id"`
	OpenedAt    time.Time      `json:"openedAt"`
	OpenedBy    string         `json:"openedBy"`
	ClosedAt    time.Time      `json:"closedAt"`
	ClosedBy    string         `json:"closedBy"`
	Base        string         `json:"base"`
	Totals      totalsResponse `json:"totals"`
	VendasCount int            `json:"vendasCount"`
	Saldo       string         `json:"saldo"`
}

type orderItemResponse struct {
	Nome       string `json:"nome"`
	Quantidade int64  `json:"quantidade"`
	Preco      string `json:"preco"`
	Subtotal   string `json:"subtotal"`
}

type orderResponse struct {
	ID              string                         `json:"id"`
	Code            string                         `json:"code"`
	SessionID       uuid.UUID                      `json:"sessionId"`
	Status          enum.OrderStatus               `json:"status"`
	Cliente         string                         `json:"cliente"`
	Itens           []orderItemResponse            `json:"itens"`
	Total           string                         `json:"total"`
	Pagamento       enum.PaymentMethod             `json:"pagamento"`
	PagamentoStatus enum.PaymentStatus             `json:"pagamentoStatus"`
	Troco           *string                        `json:"troco"`
	Endereco        *string                        `json:"endereco"`
	Observacao      *string                        `json:"observacao"`
	Timestamps      map[enum.OrderStatus]time.Time `json:"timestamps"`
	CreatedBy       string                         `json:"createdBy"`
	CreatedAt       time.Time                      `json:"createdAt"`
	UpdatedAt       time.Time                      `json:"updatedAt"`
}

// trackingResponse is what a customer sees: no items, no money.
type trackingResponse struct {
	ID         string                         `json:"id"`
	Status     enum.OrderStatus               `json:"status"`
	Timestamps map[enum.OrderStatus]time.Time `json:"timestamps"`
}

// --- Converters ---

func toCaixaResponse(s *service.CashSession) caixaResponse {
	if s == nil {
		return caixaResponse{Status: enum.SessionStatusFechado}
	}
	view := toSessionResponse(s)
	return caixaResponse{Status: s.Status(), Session: &view}
}

func toSessionResponse(s *service.CashSession) sessionResponse {
	resp := sessionResponse{
		ID:          s.ID,
		OpenedAt:    s.OpenedAt,
		OpenedBy:    s.OpenedBy,
		Paused:      s.Paused,
		ClosedAt:    s.ClosedAt,
		ClosedBy:    s.ClosedBy,
		Base:        s.Base.String(),
		Totals:      toTotalsResponse(s.Totals),
		Saldo:       s.Balance().String(),
		VendasCount: s.VendasCount,
		Items:       s.Items,
		Entradas:    toMovementResponses(s.Entradas),
		Saidas:      toMovementResponses(s.Saidas),
		Completos:   make([]completoResponse, 0, len(s.Completos)),
	}
	if resp.Items == nil {
		resp.Items = map[string]int64{}
	}
	for _, c := range s.Completos {
		resp.Completos = append(resp.Completos, completoResponse{
			OrderID:   c.OrderID,
			At:        c.At,
			ItemCount: c.ItemCount,
			Total:     c.Total.String(),
			Cliente:   c.Cliente,
			Method:    c.Method,
		})
	}
	return resp
}

func toTotalsResponse(t service.Totals) totalsResponse {
	por := make(map[string]string, len(enum.SettlementMethods))
	for _, m := range enum.SettlementMethods {
		por[string(m)] = t.PorPagamento[m].String()
	}
	return totalsResponse{
		Vendas:       t.Vendas.String(),
		Entradas:     t.Entradas.String(),
		Saidas:       t.Saidas.String(),
		PorPagamento: por,
	}
}

func toMovementResponses(ms []service.Movement) []movementResponse {
	out := make([]movementResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, movementResponse{At: m.At, Value: m.Value.String(), By: m.By, Desc: m.Desc})
	}
	return out
}

func toSessionSummaryResponse(s service.SessionSummary) sessionSummaryResponse {
	return sessionSummaryResponse{
		ID:          s.ID,
		OpenedAt:    s.OpenedAt,
		OpenedBy:    s.OpenedBy,
		ClosedAt:    s.ClosedAt,
		ClosedBy:    s.ClosedBy,
		Base:        s.Base.String(),
		Totals:      toTotalsResponse(s.Totals),
		VendasCount: s.VendasCount,
		Saldo:       s.Balance.String(),
	}
}

func dbOrderToResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		Code:            o.Code,
		SessionID:       o.SessionID,
		Status:          o.Status,
		Cliente:         o.Cliente,
		Itens:           make([]orderItemResponse, 0, len(o.Items)),
		Total:           money.Cents(o.TotalCents).String(),
		Pagamento:       o.Pagamento,
		PagamentoStatus: o.PagamentoStatus,
		Timestamps:      o.Timestamps,
		CreatedBy:       o.CreatedBy,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, it := range o.Items {
		preco := money.Cents(it.PrecoCents)
		resp.Itens = append(resp.Itens, orderItemResponse{
			Nome:       it.Nome,
			Quantidade: it.Quantidade,
			Preco:      preco.String(),
			Subtotal:   preco.Mul(it.Quantidade).String(),
		})
	}
	if o.TrocoCents.Valid {
		v := money.Cents(o.TrocoCents.Int64).String()
		resp.Troco = &v
	}
	if o.Endereco.Valid {
		resp.Endereco = &o.Endereco.String
	}
	if o.Observacao.Valid {
		resp.Observacao = &o.Observacao.String
	}
	return resp
}

// --- Notifications ---

// viewNotifier converts service payloads into the same JSON shapes the HTTP
// API returns before handing them to the next notifier.
type viewNotifier struct {
	next service.Notifier
}

// NewViewNotifier wraps next so websocket clients receive API views.
func NewViewNotifier(next service.Notifier) service.Notifier {
	return viewNotifier{next: next}
}

func (n viewNotifier) Notify(topic, eventType string, payload any) {
	switch p := payload.(type) {
	case *service.CashSession:
		payload = toCaixaResponse(p)
	case database.Order:
		payload = dbOrderToResponse(p)
	}
	n.next.Notify(topic, eventType, payload)
}
