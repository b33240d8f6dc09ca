package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/thegupta1694/capstone/models"
	"github.com/thegupta1694/capstone/repositories"
)

const (
	defaultDirectoryLimit = 20
	maxDirectoryLimit     = 100
)

// UserDirectoryService lets callers look up accounts by name, mainly so a
// team leader can find the student id to invite.
type UserDirectoryService interface {
	ListUsers(ctx context.Context, principal models.Principal, filter models.UserFilter) ([]*models.User, error)
}

type userDirectoryService struct {
	userRepo repositories.UserRepository
}

func NewUserDirectoryService(userRepo repositories.UserRepository) UserDirectoryService {
	return &userDirectoryService{userRepo: userRepo}
}

// ListUsers returns students only to non-admin callers.
func (s *userDirectoryService) ListUsers(ctx context.Context, principal models.Principal, filter models.UserFilter) ([]*models.User, error) {
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidationFailed, *filter.Role)
	}
	if !models.IsAdmin(principal) {
		student := models.RoleStudent
		filter.Role = &student
	}
	filter.Search = strings.TrimSpace(filter.Search)
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultDirectoryLimit
	case filter.Limit > maxDirectoryLimit:
		filter.Limit = maxDirectoryLimit
	}

	users, err := s.userRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, nil
}
