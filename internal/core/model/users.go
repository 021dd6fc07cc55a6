package model

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
)

// ObjectUser is the registry name of the user account object.
const ObjectUser = "auth.user"

type userRow struct {
	ID           int64     `db:"id"`
	Login        string    `db:"login"`
	PasswordHash string    `db:"password_hash"`
	Active       bool      `db:"active"`
	Admin        bool      `db:"admin"`
	CreatedAt    time.Time `db:"created_at"`
}

func (u userRow) record() Record {
	return Record{
		"id":            u.ID,
		"login":         u.Login,
		"password_hash": u.PasswordHash,
		"active":        u.Active,
		"admin":         u.Admin,
		"created_at":    u.CreatedAt,
	}
}

// Users accesses the users table. The natural key is the login.
type Users struct {
	q Querier
}

// NewUsers creates the accessor bound to q.
func NewUsers(q Querier) *Users {
	return &Users{q: q}
}

// Search returns users matching filters. Filterable fields: login, active, admin.
func (u *Users) Search(ctx context.Context, filters []Filter) ([]Record, error) {
	q := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("id", "login", "password_hash", "active", "admin", "created_at").
		From("users").
		OrderBy("login")

	q, err := applyFilters(q, filters, map[string]bool{"login": true, "active": true, "admin": true})
	if err != nil {
		return nil, err
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build search: %w", err)
	}

	var rows []userRow
	if err := pgxscan.Select(ctx, u.q, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}

	records := make([]Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.record())
	}
	return records, nil
}

// Read returns the user with the given login, or ErrNotFound.
func (u *Users) Read(ctx context.Context, login string) (Record, error) {
	var r userRow
	err := pgxscan.Get(ctx, u.q, &r, `
		SELECT id, login, password_hash, active, admin, created_at
		FROM users
		WHERE login = $1
	`, login)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("%w: %s %s", ErrNotFound, ObjectUser, login)
		}
		return nil, fmt.Errorf("read users: %w", err)
	}
	return r.record(), nil
}

// Write upserts a user by login. Writable fields: password_hash, active,
// admin. Omitted fields keep their stored value on existing rows; new rows
// get active=true, admin=false.
func (u *Users) Write(ctx context.Context, login string, values Record) error {
	hash, _ := values["password_hash"].(string)

	var active, admin *bool
	if v, ok := values["active"].(bool); ok {
		active = &v
	}
	if v, ok := values["admin"].(bool); ok {
		admin = &v
	}

	_, err := u.q.Exec(ctx, `
		INSERT INTO users (login, password_hash, active, admin, created_at)
		VALUES ($1, $2, COALESCE($3, true), COALESCE($4, false), now())
		ON CONFLICT (login) DO UPDATE
		SET password_hash = COALESCE(NULLIF(EXCLUDED.password_hash, ''), users.password_hash),
		    active = COALESCE($3, users.active),
		    admin = COALESCE($4, users.admin)
	`, login, hash, active, admin)
	if err != nil {
		return fmt.Errorf("write users: %w", err)
	}
	return nil
}

// Delete removes the user with the given login.
func (u *Users) Delete(ctx context.Context, login string) error {
	_, err := u.q.Exec(ctx, `DELETE FROM users WHERE login = $1`, login)
	if err != nil {
		return fmt.Errorf("delete users: %w", err)
	}
	return nil
}

var _ Accessor = (*Users)(nil)
