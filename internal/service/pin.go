package service

import (
	"context"
	"strings"

	"github.com/caixa-pos/api/internal/auth"
	"github.com/caixa-pos/api/internal/database"
	"github.com/caixa-pos/api/internal/enum"
)

// OperatorStore defines the DB methods needed by the PIN gate.
// Satisfied by *database.Queries; narrow interface for testability.
type OperatorStore interface {
	ListActiveOperatorsByRoles(ctx context.Context, roles []string) ([]database.Operator, error)
}

// PinGate authorizes privileged caixa actions by PIN alone. The operator
// whose PIN matches becomes the actor recorded by the ledger.
type PinGate struct {
	store  OperatorStore
	verify func(pin, hash string) bool
}

// NewPinGate creates a new PinGate.
func NewPinGate(store OperatorStore) *PinGate {
	return &PinGate{store: store, verify: auth.VerifyPin}
}

// Authorize returns the active operator with one of roles whose PIN matches.
// PINs are bcrypt hashed with per-hash salts, so every candidate is checked.
func (g *PinGate) Authorize(ctx context.Context, pin string, roles ...enum.OperatorRole) (database.Operator, error) {
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return database.Operator{}, ErrInvalidPin
	}
	if len(roles) == 0 {
		roles = enum.CashRoles
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}

	ops, err := g.store.ListActiveOperatorsByRoles(ctx, names)
	if err != nil {
		return database.Operator{}, storageErr("list operators", err)
	}
	for _, op := range ops {
		if g.verify(pin, op.PinHash) {
			return op, nil
		}
	}
	return database.Operator{}, ErrInvalidPin
}
