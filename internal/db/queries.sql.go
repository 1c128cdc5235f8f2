package db

import (
	"context"

	"github.com/google/uuid"
)

const getUser = `-- name: GetUser :one
SELECT id, name FROM users
WHERE id = $1
`

func (q *Queries) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx, getUser, id)
	var i User
	err := row.Scan(&i.ID, &i.Name)
	return i, err
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT u.id, u.name FROM users u
JOIN auth a ON a.user_id = u.id
WHERE a.email = $1
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, getUserByEmail, email)
	var i User
	err := row.Scan(&i.ID, &i.Name)
	return i, err
}

const listReferralsByReferrer = `-- name: ListReferralsByReferrer :many
SELECT u.id, u.name FROM refer r
JOIN users u ON u.id = r.id_referred
WHERE r.id_referrer = $1
ORDER BY u.name, u.id
`

func (q *Queries) ListReferralsByReferrer(ctx context.Context, idReferrer uuid.UUID) ([]User, error) {
	rows, err := q.db.Query(ctx, listReferralsByReferrer, idReferrer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		var i User
		if err := rows.Scan(&i.ID, &i.Name); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createReferral = `-- name: CreateReferral :one
INSERT INTO refer (id_referrer, id_referred)
VALUES ($1, $2)
ON CONFLICT (id_referred) DO NOTHING
RETURNING id, id_referrer, id_referred
`

// CreateReferral returns pgx.ErrNoRows when the referred user already has a referrer.

type CreateReferralParams struct {
	IDReferrer uuid.UUID `json:"id_referrer"`
	IDReferred uuid.UUID `json:"id_referred"`
}

func (q *Queries) CreateReferral(ctx context.Context, arg CreateReferralParams) (Refer, error) {
	row := q.db.QueryRow(ctx, createReferral, arg.IDReferrer, arg.IDReferred)
	var i Refer
	err := row.Scan(&i.ID, &i.IDReferrer, &i.IDReferred)
	return i, err
}
