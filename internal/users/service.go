package users

import (
	"context"
	"errors"
	"strings"
)

type Service struct {
	Repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// Register stores a user, granting the general permission when none is given.
func (s *Service) Register(ctx context.Context, user User) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	user.Email = strings.TrimSpace(user.Email)
	if user.Email == "" {
		return User{}, errors.New("user email is required")
	}
	if user.Plan == "" {
		user.Plan = "free"
	}
	if len(user.Permissions) == 0 {
		user.Permissions = []string{PermissionGeneral}
	}
	return s.Repo.Upsert(ctx, user)
}

func (s *Service) GetByID(ctx context.Context, userID int64) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	if userID <= 0 {
		return User{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, userID)
}

// Resolve maps an authenticated user id to the caller identity.
func (s *Service) Resolve(ctx context.Context, userID int64) (Identity, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return Identity{}, err
	}
	return Identity{ID: user.ID, Permissions: append([]string(nil), user.Permissions...)}, nil
}
