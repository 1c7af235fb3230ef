package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Error classes. Every error returned by this package matches exactly one
// of these with errors.Is, which is what the HTTP layer maps to a status.
var (
	ErrValidation = errors.New("validation error")
	ErrAuth       = errors.New("not authorized")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
	ErrStorage    = errors.New("storage unavailable")
)

// kindError is a sentinel that also matches its class.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string        { return e.msg }
func (e *kindError) Is(target error) bool { return target == e.kind }

func newError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Session errors.
var (
	ErrSessionAlreadyOpen = newError(ErrConflict, "already open")
	ErrNoActiveSession    = newError(ErrConflict, "no active session")
	ErrSessionPaused      = newError(ErrConflict, "session is paused")
	ErrAlreadyPaused      = newError(ErrConflict, "session already paused")
	ErrNotPaused          = newError(ErrConflict, "session is not paused")
	ErrSessionClosed      = newError(ErrConflict, "session closed")
	ErrPendingOrders      = newError(ErrConflict, "pending orders")
	ErrSessionNotFound    = newError(ErrNotFound, "session not found")
	ErrInvalidBase        = newError(ErrValidation, "base must be >= 0")
	ErrInvalidAmount      = newError(ErrValidation, "value must be > 0")
	ErrInvalidOperator    = newError(ErrValidation, "operator is required")
	ErrRequestIDReused    = newError(ErrConflict, "request id already used for a different movement")
)

// Order errors.
var (
	ErrOrderNotFound     = newError(ErrNotFound, "order not found")
	ErrInvalidTransition = newError(ErrConflict, "invalid status transition")
	ErrAlreadyTerminal   = newError(ErrConflict, "order already finalized")
	ErrEmptyItems        = newError(ErrValidation, "itens are required")
	ErrInvalidItemName   = newError(ErrValidation, "item nome is required")
	ErrInvalidQuantity   = newError(ErrValidation, "quantidade must be > 0")
	ErrInvalidPrice      = newError(ErrValidation, "preco must be >= 0")
	ErrQuantityTooLarge  = newError(ErrValidation, "quantidade exceeds limit")
	ErrPriceTooLarge     = newError(ErrValidation, "preco exceeds limit")
	ErrTooManyUnits      = newError(ErrValidation, "order has too many units")
	ErrTotalOutOfRange   = newError(ErrValidation, "order total out of range")
	ErrInvalidMethod     = newError(ErrValidation, "invalid payment method")
	ErrInvalidStatus     = newError(ErrValidation, "invalid order status")
	ErrInvalidTroco      = newError(ErrValidation, "troco must be >= 0")
	ErrInvalidCode       = newError(ErrNotFound, "order not found")
)

// ErrInvalidPin is returned by the PIN gate for an unknown PIN or a PIN
// whose operator lacks the required role. The two are indistinguishable
// to the caller.
var ErrInvalidPin = newError(ErrAuth, "invalid pin")

// Outcomes that callers treat as success. They carry no class.
var (
	ErrAlreadyPaid     = errors.New("order already paid")
	ErrAlreadyRecorded = errors.New("sale already recorded")
)

// storageErr wraps a database error, tagging it ErrStorage when the failure
// is transient and the whole operation may be retried.
func storageErr(op string, err error) error {
	if isTransient(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case len(pgErr.Code) == 5 && pgErr.Code[:2] == "08":
			return true
		case pgErr.Code == "40001", pgErr.Code == "40P01":
			return true
		}
	}
	return false
}

// isUniqueViolation reports a 23505 on the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}
