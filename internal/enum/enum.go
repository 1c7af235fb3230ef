package enum

import "fmt"

// ── Group A: State machines (CHECK constrained in DB) ──

// OrderStatus is the lifecycle state of a pedido.
type OrderStatus string

const (
	OrderStatusEmAguardo OrderStatus = "EM_AGUARDO"
	OrderStatusEmPreparo OrderStatus = "EM_PREPARO"
	OrderStatusPronto    OrderStatus = "PRONTO"
	OrderStatusEmRota    OrderStatus = "EM_ROTA"
	OrderStatusCompleto  OrderStatus = "COMPLETO"
	OrderStatusCancelado OrderStatus = "CANCELADO"
)

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusEmAguardo,
	OrderStatusEmPreparo,
	OrderStatusPronto,
	OrderStatusEmRota,
	OrderStatusCompleto,
	OrderStatusCancelado,
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusEmAguardo, OrderStatusEmPreparo, OrderStatusPronto,
		OrderStatusEmRota, OrderStatusCompleto, OrderStatusCancelado:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusCompleto, OrderStatusCancelado:
		return true
	case OrderStatusEmAguardo, OrderStatusEmPreparo, OrderStatusPronto, OrderStatusEmRota:
		return false
	}
	return false
}

// PendingOrderStatuses are the non-terminal statuses that block closing a session.
var PendingOrderStatuses = []OrderStatus{
	OrderStatusEmAguardo,
	OrderStatusEmPreparo,
	OrderStatusPronto,
	OrderStatusEmRota,
}

// ParseOrderStatus validates a status received at the boundary.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid order status %q", s)
	}
	return st, nil
}

// PaymentStatus tracks whether a pedido has been paid.
type PaymentStatus string

const (
	PaymentStatusPendente  PaymentStatus = "PENDENTE"
	PaymentStatusPago      PaymentStatus = "PAGO"
	PaymentStatusCancelado PaymentStatus = "CANCELADO"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPendente, PaymentStatusPago, PaymentStatusCancelado:
		return true
	}
	return false
}

// SessionStatus is the externally visible state of the register.
// It is derived, never stored: FECHADO means no unsealed session exists.
type SessionStatus string

const (
	SessionStatusAberto  SessionStatus = "ABERTO"
	SessionStatusPausado SessionStatus = "PAUSADO"
	SessionStatusFechado SessionStatus = "FECHADO"
)

// ── Group B: Payment methods (CHECK constrained in DB) ──

// PaymentMethod is how a pedido was (or will be) paid.
type PaymentMethod string

const (
	PaymentMethodPendente PaymentMethod = "PENDENTE"
	PaymentMethodDinheiro PaymentMethod = "DINHEIRO"
	PaymentMethodCartao   PaymentMethod = "CARTAO"
	PaymentMethodPix      PaymentMethod = "PIX"
	PaymentMethodOnline   PaymentMethod = "ONLINE"
)

// SettlementMethods are the methods a sale can be recorded under.
var SettlementMethods = []PaymentMethod{
	PaymentMethodDinheiro,
	PaymentMethodCartao,
	PaymentMethodPix,
	PaymentMethodOnline,
}

// Valid reports whether m is a known method, PENDENTE included.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodPendente, PaymentMethodDinheiro, PaymentMethodCartao,
		PaymentMethodPix, PaymentMethodOnline:
		return true
	}
	return false
}

// Settles reports whether a sale may be recorded under m.
func (m PaymentMethod) Settles() bool {
	switch m {
	case PaymentMethodDinheiro, PaymentMethodCartao, PaymentMethodPix, PaymentMethodOnline:
		return true
	case PaymentMethodPendente:
		return false
	}
	return false
}

// ── Group C: Ledger movements ──

// MovementKind distinguishes manual cash-in from cash-out.
type MovementKind string

const (
	MovementEntrada MovementKind = "ENTRADA"
	MovementSaida   MovementKind = "SAIDA"
)

// ── Group D: Operators (CHECK constrained in DB) ──

// OperatorRole is the permission level attached to an access id.
type OperatorRole string

const (
	RoleAdmin      OperatorRole = "ADMIN"
	RoleGerente    OperatorRole = "GERENTE"
	RoleCaixa      OperatorRole = "CAIXA"
	RoleCozinha    OperatorRole = "COZINHA"
	RoleEntregador OperatorRole = "ENTREGADOR"
)

// Valid reports whether r is a known role.
func (r OperatorRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleGerente, RoleCaixa, RoleCozinha, RoleEntregador:
		return true
	}
	return false
}

// CashRoles may operate the register and confirm payments.
var CashRoles = []OperatorRole{RoleAdmin, RoleGerente, RoleCaixa}
