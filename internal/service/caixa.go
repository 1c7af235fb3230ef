package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caixa-pos/api/internal/database"
	"github.com/caixa-pos/api/internal/enum"
	"github.com/caixa-pos/api/internal/money"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CashSession is the assembled view of one caixa: the session row plus its
// per-method totals, item tally, movements and completed sales.
type CashSession struct {
	ID          uuid.UUID
	OpenedAt    time.Time
	OpenedBy    string
	Base        money.Cents
	Paused      bool
	ClosedAt    *time.Time
	ClosedBy    string
	Totals      Totals
	VendasCount int
	Items       map[string]int64
	Entradas    []Movement
	Saidas      []Movement
	Completos   []Completo
}

type Totals struct {
	Vendas       money.Cents
	Entradas     money.Cents
	Saidas       money.Cents
	PorPagamento map[enum.PaymentMethod]money.Cents
}

// Movement is a manual entrada or saida.
type Movement struct {
	At    time.Time
	Value money.Cents
	By    string
	Desc  string
}

// Completo is a sale recorded against the session.
type Completo struct {
	OrderID   string
	At        time.Time
	ItemCount int
	Total     money.Cents
	Cliente   string
	Method    enum.PaymentMethod
}

// Balance is base + vendas + entradas - saidas. It may be negative.
func (s *CashSession) Balance() money.Cents {
	return s.Base.Add(s.Totals.Vendas).Add(s.Totals.Entradas).Sub(s.Totals.Saidas)
}

// Status derives ABERTO / PAUSADO / FECHADO.
func (s *CashSession) Status() enum.SessionStatus {
	switch {
	case s == nil || s.ClosedAt != nil:
		return enum.SessionStatusFechado
	case s.Paused:
		return enum.SessionStatusPausado
	default:
		return enum.SessionStatusAberto
	}
}

// sessionReader is the read side shared by every store that needs to
// return an assembled CashSession.
type sessionReader interface {
	GetActiveCashSession(ctx context.Context) (database.CashSession, error)
	GetCashSession(ctx context.Context, id uuid.UUID) (database.CashSession, error)
	ListSessionPaymentTotals(ctx context.Context, sessionID uuid.UUID) ([]database.SessionPaymentTotal, error)
	ListSessionItemTotals(ctx context.Context, sessionID uuid.UUID) ([]database.SessionItemTotal, error)
	ListSessionSales(ctx context.Context, sessionID uuid.UUID) ([]database.SessionSale, error)
	ListCashMovements(ctx context.Context, sessionID uuid.UUID) ([]database.CashMovement, error)
}

// loadActive returns the open session, or ErrNoActiveSession.
func loadActive(ctx context.Context, store sessionReader) (*CashSession, error) {
	row, err := store.GetActiveCashSession(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveSession
		}
		return nil, storageErr("get active session", err)
	}
	return assembleSession(ctx, store, row)
}

func loadSession(ctx context.Context, store sessionReader, id uuid.UUID) (*CashSession, error) {
	row, err := store.GetCashSession(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, storageErr("get session", err)
	}
	return assembleSession(ctx, store, row)
}

func assembleSession(ctx context.Context, store sessionReader, row database.CashSession) (*CashSession, error) {
	s := sessionFromRow(row)

	totals, err := store.ListSessionPaymentTotals(ctx, row.ID)
	if err != nil {
		return nil, storageErr("list payment totals", err)
	}
	for _, t := range totals {
		s.Totals.PorPagamento[t.Method] = money.Cents(t.TotalCents)
	}

	items, err := store.ListSessionItemTotals(ctx, row.ID)
	if err != nil {
		return nil, storageErr("list item totals", err)
	}
	for _, it := range items {
		s.Items[it.ProductName] = it.Quantity
	}

	sales, err := store.ListSessionSales(ctx, row.ID)
	if err != nil {
		return nil, storageErr("list sales", err)
	}
	s.Completos = make([]Completo, 0, len(sales))
	for _, sale := range sales {
		s.Completos = append(s.Completos, Completo{
			OrderID:   sale.OrderID,
			At:        sale.RecordedAt,
			ItemCount: int(sale.ItemCount),
			Total:     money.Cents(sale.TotalCents),
			Cliente:   sale.Cliente.String,
			Method:    sale.Method,
		})
	}

	movements, err := store.ListCashMovements(ctx, row.ID)
	if err != nil {
		return nil, storageErr("list movements", err)
	}
	s.Entradas = []Movement{}
	s.Saidas = []Movement{}
	for _, m := range movements {
		mv := Movement{At: m.CreatedAt, Value: money.Cents(m.ValueCents), By: m.CreatedBy, Desc: m.Description.String}
		switch m.Kind {
		case enum.MovementEntrada:
			s.Entradas = append(s.Entradas, mv)
		case enum.MovementSaida:
			s.Saidas = append(s.Saidas, mv)
		default:
			return nil, fmt.Errorf("movement %s: unknown kind %q", m.ID, m.Kind)
		}
	}
	return s, nil
}

func sessionFromRow(row database.CashSession) *CashSession {
	s := &CashSession{
		ID:          row.ID,
		OpenedAt:    row.OpenedAt,
		OpenedBy:    row.OpenedBy,
		Base:        money.Cents(row.BaseCents),
		Paused:      row.Paused,
		VendasCount: int(row.VendasCount),
		Totals: Totals{
			Vendas:       money.Cents(row.VendasCents),
			Entradas:     money.Cents(row.EntradasCents),
			Saidas:       money.Cents(row.SaidasCents),
			PorPagamento: make(map[enum.PaymentMethod]money.Cents, len(enum.SettlementMethods)),
		},
		Items: map[string]int64{},
	}
	if row.ClosedAt.Valid {
		t := row.ClosedAt.Time
		s.ClosedAt = &t
		s.ClosedBy = row.ClosedBy.String
	}
	return s
}
