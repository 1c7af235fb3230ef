package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/caixa-pos/api/internal/database"
	"github.com/caixa-pos/api/internal/money"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

const cashSessionsOneOpen = "cash_sessions_one_open"

// SessionStore defines the DB methods needed by the session lifecycle.
// Satisfied by *database.Queries; narrow interface for testability.
type SessionStore interface {
	sessionReader
	CreateCashSession(ctx context.Context, arg database.CreateCashSessionParams) (database.CashSession, error)
	GetActiveCashSessionForUpdate(ctx context.Context) (database.CashSession, error)
	SetCashSessionPaused(ctx context.Context, paused bool) (database.CashSession, error)
	CloseCashSession(ctx context.Context, arg database.CloseCashSessionParams) (database.CashSession, error)
	CountPendingOrdersBySession(ctx context.Context, sessionID uuid.UUID) (int64, error)
	ListClosedCashSessions(ctx context.Context, arg database.ListClosedCashSessionsParams) ([]database.CashSession, error)
}

// NewSessionStore creates a SessionStore from a DBTX (pool or tx).
type NewSessionStore func(db database.DBTX) SessionStore

// SessionService opens, pauses, resumes and closes the caixa. There is no
// cached "current" session: every call reads the database.
type SessionService struct {
	db       DB
	newStore NewSessionStore
	notifier Notifier
}

// NewSessionService creates a new SessionService.
func NewSessionService(db DB, newStore NewSessionStore, notifier Notifier) *SessionService {
	return &SessionService{db: db, newStore: newStore, notifier: orNop(notifier)}
}

// Open starts a new session with the given starting cash.
func (s *SessionService) Open(ctx context.Context, base money.Cents, by string) (*CashSession, error) {
	if base.IsNegative() {
		return nil, ErrInvalidBase
	}
	if strings.TrimSpace(by) == "" {
		return nil, ErrInvalidOperator
	}

	store := s.newStore(s.db)
	row, err := store.CreateCashSession(ctx, database.CreateCashSessionParams{
		ID:        uuid.New(),
		OpenedBy:  by,
		BaseCents: base.Int64(),
	})
	if err != nil {
		if isUniqueViolation(err, cashSessionsOneOpen) {
			return nil, ErrSessionAlreadyOpen
		}
		return nil, storageErr("create session", err)
	}

	session, err := assembleSession(ctx, store, row)
	if err != nil {
		return nil, err
	}
	log.Info().Str("session_id", row.ID.String()).Str("by", by).Int64("base_cents", base.Int64()).Msg("caixa opened")
	s.notifier.Notify(TopicCaixa, EventCaixaUpdated, session)
	return session, nil
}

// Pause marks the open session paused. New orders are refused while paused.
func (s *SessionService) Pause(ctx context.Context, by string) (*CashSession, error) {
	return s.setPaused(ctx, true, by)
}

// Resume clears the pause flag.
func (s *SessionService) Resume(ctx context.Context, by string) (*CashSession, error) {
	return s.setPaused(ctx, false, by)
}

func (s *SessionService) setPaused(ctx context.Context, paused bool, by string) (*CashSession, error) {
	store := s.newStore(s.db)
	row, err := store.SetCashSessionPaused(ctx, paused)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, storageErr("set paused", err)
		}
		// Classify: no session at all, or already in the requested state.
		if _, err := store.GetActiveCashSession(ctx); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrNoActiveSession
			}
			return nil, storageErr("get active session", err)
		}
		if paused {
			return nil, ErrAlreadyPaused
		}
		return nil, ErrNotPaused
	}

	session, err := assembleSession(ctx, store, row)
	if err != nil {
		return nil, err
	}
	log.Info().Str("session_id", row.ID.String()).Str("by", by).Bool("paused", paused).Msg("caixa pause changed")
	s.notifier.Notify(TopicCaixa, EventCaixaUpdated, session)
	return session, nil
}

// Close seals the open session. It fails with ErrPendingOrders while any
// order bound to the session is not COMPLETO or CANCELADO.
func (s *SessionService) Close(ctx context.Context, by string) (*CashSession, error) {
	if strings.TrimSpace(by) == "" {
		return nil, ErrInvalidOperator
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, storageErr("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	active, err := store.GetActiveCashSessionForUpdate(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveSession
		}
		return nil, storageErr("lock active session", err)
	}

	pending, err := store.CountPendingOrdersBySession(ctx, active.ID)
	if err != nil {
		return nil, storageErr("count pending orders", err)
	}
	if pending > 0 {
		log.Info().Str("session_id", active.ID.String()).Int64("pending", pending).Msg("close refused")
		return nil, ErrPendingOrders
	}

	row, err := store.CloseCashSession(ctx, database.CloseCashSessionParams{ID: active.ID, ClosedBy: by})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveSession
		}
		return nil, storageErr("close session", err)
	}

	session, err := assembleSession(ctx, store, row)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storageErr("commit tx", err)
	}

	log.Info().
		Str("session_id", row.ID.String()).
		Str("by", by).
		Int64("vendas_cents", session.Totals.Vendas.Int64()).
		Int64("balance_cents", session.Balance().Int64()).
		Msg("caixa closed")
	s.notifier.Notify(TopicCaixa, EventCaixaUpdated, session)
	return session, nil
}

// GetActive returns the open (or paused) session, or ErrNoActiveSession.
func (s *SessionService) GetActive(ctx context.Context) (*CashSession, error) {
	return loadActive(ctx, s.newStore(s.db))
}

// Get returns any session by id, sealed or not.
func (s *SessionService) Get(ctx context.Context, id uuid.UUID) (*CashSession, error) {
	return loadSession(ctx, s.newStore(s.db), id)
}

// SessionSummary is a closed session without its child collections.
type SessionSummary struct {
	ID          uuid.UUID
	OpenedAt    time.Time
	OpenedBy    string
	ClosedAt    time.Time
	ClosedBy    string
	Base        money.Cents
	Totals      Totals
	VendasCount int
	Balance     money.Cents
}

// ListClosed returns sealed sessions, most recently closed first.
func (s *SessionService) ListClosed(ctx context.Context, limit, offset int32) ([]SessionSummary, error) {
	rows, err := s.newStore(s.db).ListClosedCashSessions(ctx, database.ListClosedCashSessionsParams{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, storageErr("list closed sessions", err)
	}
	out := make([]SessionSummary, 0, len(rows))
	for _, row := range rows {
		cs := sessionFromRow(row)
		out = append(out, SessionSummary{
			ID:          cs.ID,
			OpenedAt:    cs.OpenedAt,
			OpenedBy:    cs.OpenedBy,
			ClosedAt:    row.ClosedAt.Time,
			ClosedBy:    cs.ClosedBy,
			Base:        cs.Base,
			Totals:      cs.Totals,
			VendasCount: cs.VendasCount,
			Balance:     cs.Balance(),
		})
	}
	return out, nil
}
