package users

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Upsert(ctx context.Context, user User) (User, error) {
	const query = `
INSERT INTO users (email, name, plan, permissions, created_at, updated_at)
VALUES ($1, $2, $3, string_to_array($4, ','), now(), now())
ON CONFLICT (email) DO UPDATE SET
  name = EXCLUDED.name,
  plan = EXCLUDED.plan,
  permissions = EXCLUDED.permissions,
  updated_at = now()
RETURNING id, created_at, updated_at`
	err := r.DB.QueryRowContext(ctx, query,
		user.Email,
		user.Name,
		user.Plan,
		strings.Join(user.Permissions, ","),
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (r *PGRepo) GetByID(ctx context.Context, userID int64) (User, error) {
	const query = `
SELECT id, email, name, plan, array_to_string(permissions, ','), created_at, updated_at
FROM users
WHERE id = $1 AND deleted_at IS NULL
LIMIT 1`
	var user User
	var permissions string
	err := r.DB.QueryRowContext(ctx, query, userID).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Plan,
		&permissions,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	user.Permissions = splitPermissions(permissions)
	return user, nil
}

func splitPermissions(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
