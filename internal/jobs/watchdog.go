package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caixa-pos/api/internal/database"
	"github.com/caixa-pos/api/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// WatchdogStore defines the DB methods needed by the session watchdog.
// Satisfied by *database.Queries; narrow interface for testability.
type WatchdogStore interface {
	GetActiveCashSession(ctx context.Context) (database.CashSession, error)
	CountPendingOrdersBySession(ctx context.Context, sessionID uuid.UUID) (int64, error)
}

// Alert reasons.
const (
	ReasonLongOpen      = "sessao_longa"
	ReasonPendingOrders = "pedidos_pendentes"
)

// Alert is the payload of a caixa.alerta event.
type Alert struct {
	SessionID uuid.UUID `json:"sessionId"`
	Reason    string    `json:"reason"`
	OpenedAt  time.Time `json:"openedAt"`
	OpenHours float64   `json:"openHours"`
	Pending   int64     `json:"pending"`
}

// SessionWatchdog warns terminals when the caixa has been open longer than
// maxAge. The alert is advisory: it never closes or mutates the session.
type SessionWatchdog struct {
	store    WatchdogStore
	notifier service.Notifier
	maxAge   time.Duration
	now      func() time.Time
}

// NewSessionWatchdog creates a new SessionWatchdog.
func NewSessionWatchdog(store WatchdogStore, notifier service.Notifier, maxAge time.Duration) *SessionWatchdog {
	if notifier == nil {
		notifier = service.NopNotifier{}
	}
	return &SessionWatchdog{store: store, notifier: notifier, maxAge: maxAge, now: time.Now}
}

func (w *SessionWatchdog) Name() string { return "session-watchdog" }

// Run checks the open session once.
func (w *SessionWatchdog) Run(ctx context.Context) error {
	row, err := w.store.GetActiveCashSession(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("get active session: %w", err)
	}

	age := w.now().Sub(row.OpenedAt)
	if age < w.maxAge {
		return nil
	}

	pending, err := w.store.CountPendingOrdersBySession(ctx, row.ID)
	if err != nil {
		return fmt.Errorf("count pending orders: %w", err)
	}

	alert := Alert{
		SessionID: row.ID,
		Reason:    ReasonLongOpen,
		OpenedAt:  row.OpenedAt,
		OpenHours: float64(age.Round(time.Minute)) / float64(time.Hour),
		Pending:   pending,
	}
	if pending > 0 {
		alert.Reason = ReasonPendingOrders
	}

	log.Warn().
		Str("session_id", row.ID.String()).
		Dur("age", age).
		Int64("pending", pending).
		Msg("caixa open too long")
	w.notifier.Notify(service.TopicCaixa, service.EventCaixaAlerta, alert)
	return nil
}
