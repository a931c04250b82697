package users

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("user not found")

type Repo interface {
	// Upsert inserts or updates the user keyed by email and returns the stored row.
	Upsert(ctx context.Context, user User) (User, error)
	GetByID(ctx context.Context, userID int64) (User, error)
}
