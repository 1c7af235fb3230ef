// source: operators.sql

package database

import (
	"context"

	"github.com/caixa-pos/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const operatorColumns = `id, access_id, name, role, pin_hash, active, created_at`

const getOperatorByAccessID = `-- name: GetOperatorByAccessID :one
SELECT ` + operatorColumns + `
FROM operators
WHERE access_id = $1 AND active = true`

func (q *Queries) GetOperatorByAccessID(ctx context.Context, accessID string) (Operator, error) {
	row := q.db.QueryRow(ctx, getOperatorByAccessID, accessID)
	var i Operator
	err := row.Scan(
		&i.ID,
		&i.AccessID,
		&i.Name,
		&i.Role,
		&i.PinHash,
		&i.Active,
		&i.CreatedAt,
	)
	return i, err
}

const getOperatorByID = `-- name: GetOperatorByID :one
SELECT ` + operatorColumns + `
FROM operators
WHERE id = $1 AND active = true`

func (q *Queries) GetOperatorByID(ctx context.Context, id uuid.UUID) (Operator, error) {
	row := q.db.QueryRow(ctx, getOperatorByID, id)
	var i Operator
	err := row.Scan(
		&i.ID,
		&i.AccessID,
		&i.Name,
		&i.Role,
		&i.PinHash,
		&i.Active,
		&i.CreatedAt,
	)
	return i, err
}

const listActiveOperatorsByRoles = `-- name: ListActiveOperatorsByRoles :many
SELECT ` + operatorColumns + `
FROM operators
WHERE active = true AND role = ANY($1::text[])
ORDER BY access_id`

func (q *Queries) ListActiveOperatorsByRoles(ctx context.Context, roles []string) ([]Operator, error) {
	rows, err := q.db.Query(ctx, listActiveOperatorsByRoles, roles)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Operator{}
	for rows.Next() {
		var i Operator
		if err := rows.Scan(
			&i.ID,
			&i.AccessID,
			&i.Name,
			&i.Role,
			&i.PinHash,
			&i.Active,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertOperator = `-- name: UpsertOperator :one
INSERT INTO operators (access_id, name, role, pin_hash)
VALUES ($1, $2, $3, $4)
ON CONFLICT (access_id)
DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role, pin_hash = EXCLUDED.pin_hash, active = true
RETURNING ` + operatorColumns

type UpsertOperatorParams struct {
	AccessID string            `json:"access_id"`
	Name     string            `json:"name"`
	Role     enum.OperatorRole `json:"role"`
	PinHash  string            `json:"pin_hash"`
}

func (q *Queries) UpsertOperator(ctx context.Context, arg UpsertOperatorParams) (Operator, error) {
	row := q.db.QueryRow(ctx, upsertOperator, arg.AccessID, arg.Name, arg.Role, arg.PinHash)
	var i Operator
	err := row.Scan(
		&i.ID,
		&i.AccessID,
		&i.Name,
		&i.Role,
		&i.PinHash,
		&i.Active,
		&i.CreatedAt,
	)
	return i, err
}

const listOperators = `-- name: ListOperators :many
SELECT ` + operatorColumns + `
FROM operators
WHERE active = true
ORDER BY access_id`

func (q *Queries) ListOperators(ctx context.Context) ([]Operator, error) {
	rows, err := q.db.Query(ctx, listOperators)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Operator{}
	for rows.Next() {
		var i Operator
		if err := rows.Scan(
			&i.ID,
			&i.AccessID,
			&i.Name,
			&i.Role,
			&i.PinHash,
			&i.Active,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createOperator = `-- name: CreateOperator :one
INSERT INTO operators (access_id, name, role, pin_hash)
VALUES ($1, $2, $3, $4)
RETURNING ` + operatorColumns

type CreateOperatorParams struct {
	AccessID string            `json:"access_id"`
	Name     string            `json:"name"`
	Role     enum.OperatorRole `json:"role"`
	PinHash  string            `json:"pin_hash"`
}

func (q *Queries) CreateOperator(ctx context.Context, arg CreateOperatorParams) (Operator, error) {
	row := q.db.QueryRow(ctx, createOperator, arg.AccessID, arg.Name, arg.Role, arg.PinHash)
	var i Operator
	err := row.Scan(
		&i.ID,
		&i.AccessID,
		&i.Name,
		&i.Role,
		&i.PinHash,
		&i.Active,
		&i.CreatedAt,
	)
	return i, err
}

const updateOperator = `-- name: UpdateOperator :one
UPDATE operators
SET name = $2, role = $3, pin_hash = COALESCE($4, pin_hash)
WHERE id = $1 AND active = true
RETURNING ` + operatorColumns

type UpdateOperatorParams struct {
	ID      uuid.UUID         `json:"id"`
	Name    string            `json:"name"`
	Role    enum.OperatorRole `json:"role"`
	PinHash pgtype.Text       `json:"pin_hash"`
}

func (q *Queries) UpdateOperator(ctx context.Context, arg UpdateOperatorParams) (Operator, error) {
	row := q.db.QueryRow(ctx, updateOperator, arg.ID, arg.Name, arg.Role, arg.PinHash)
	var i Operator
	err := row.Scan(
		&i.ID,
		&i.AccessID,
		&i.Name,
		&i.Role,
		&i.PinHash,
		&i.Active,
		&i.CreatedAt,
	)
	return i, err
}

const deactivateOperator = `-- name: DeactivateOperator :one
UPDATE operators SET active = false
WHERE id = $1 AND active = true
RETURNING id`

func (q *Queries) DeactivateOperator(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, deactivateOperator, id)
	var deleted uuid.UUID
	err := row.Scan(&deleted)
	return deleted, err
}
