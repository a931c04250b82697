package projects

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicateTask means a live project was already committed for the same (user, task).
	ErrDuplicateTask = errors.New("project already committed for task")
)

// Project is a committed idea analysis owned by one user.
type Project struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"userId"`
	TaskID       string     `json:"taskId,omitempty"`
	Name         string     `json:"name"`
	IndustryPath string     `json:"industryPath"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
}
