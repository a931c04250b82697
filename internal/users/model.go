package users

import (
	"slices"
	"time"
)

// Permissions granted to users.
const (
	PermissionGeneral = "general"
	PermissionManager = "manager"
	PermissionAdmin   = "admin"
)

type User struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Plan        string     `json:"plan"`
	Permissions []string   `json:"permissions"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
}

// Identity is the authenticated caller as seen by request handlers.
type Identity struct {
	ID          int64
	Permissions []string
}

// Has reports whether the identity holds permission.
func (i Identity) Has(permission string) bool {
	return slices.Contains(i.Permissions, permission)
}
