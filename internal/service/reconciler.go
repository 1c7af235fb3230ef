package service

import (
	"context"
	"errors"
	"time"

	"github.com/caixa-pos/api/internal/database"
	"github.com/caixa-pos/api/internal/enum"
	"github.com/rs/zerolog/log"
)

// ConfirmResult is the outcome of a payment confirmation.
type ConfirmResult struct {
	Order database.Order
	// Session is the caixa after the sale was recorded. Nil when the order
	// was already paid.
	Session     *CashSession
	AlreadyPaid bool
}

// Reconciler marks orders paid and records the sale against the open
// session, both in one transaction.
type Reconciler struct {
	db       DB
	newStore NewOrderStore
	notifier Notifier
	retry    RetryPolicy
	now      func() time.Time
}

// NewReconciler creates a new Reconciler.
func NewReconciler(db DB, newStore NewOrderStore, notifier Notifier, retry RetryPolicy) *Reconciler {
	return &Reconciler{
		db:       db,
		newStore: newStore,
		notifier: orNop(notifier),
		retry:    retry,
		now:      time.Now,
	}
}

// Confirm is idempotent: confirming an already paid order returns it with
// AlreadyPaid set and leaves the ledger untouched. If no session is open
// nothing is written.
func (r *Reconciler) Confirm(ctx context.Context, orderID string, method enum.PaymentMethod, by string) (*ConfirmResult, error) {
	if !method.Settles() {
		return nil, ErrInvalidMethod
	}

	var res *ConfirmResult
	err := retryStorage(ctx, r.retry, "confirm payment", func() error {
		out, err := r.confirmTx(ctx, orderID, method)
		if err != nil {
			return err
		}
		res = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.AlreadyPaid {
		log.Info().Str("order_id", orderID).Str("by", by).Msg("payment already confirmed")
		return res, nil
	}

	log.Info().
		Str("order_id", orderID).
		Str("session_id", res.Session.ID.String()).
		Str("method", string(method)).
		Int64("total_cents", res.Order.TotalCents).
		Str("by", by).
		Msg("payment confirmed")
	r.notifier.Notify(TopicPedidos, EventPedidoUpdated, res.Order)
	r.notifier.Notify(TopicCaixa, EventCaixaUpdated, res.Session)
	return res, nil
}

func (r *Reconciler) confirmTx(ctx context.Context, orderID string, method enum.PaymentMethod) (*ConfirmResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, storageErr("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := r.newStore(tx)

	order, err := confirmPayment(ctx, store, orderID, method)
	if err != nil {
		if errors.Is(err, ErrAlreadyPaid) {
			return &ConfirmResult{Order: order, AlreadyPaid: true}, nil
		}
		return nil, err
	}

	active, err := loadActive(ctx, store)
	if err != nil {
		return nil, err
	}

	err = recordSale(ctx, store, active.ID, saleFromOrder(order, r.now()))
	if err != nil && !errors.Is(err, ErrAlreadyRecorded) {
		return nil, err
	}

	session, err := loadSession(ctx, store, active.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storageErr("commit tx", err)
	}
	return &ConfirmResult{Order: order, Session: session}, nil
}
