package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/thegupta1694/capstone/models"
	"github.com/thegupta1694/capstone/repositories"
)

type UserService interface {
	GetProfile(ctx context.Context, principal models.Principal) (*Profile, error)
	UpdateProfile(ctx context.Context, principal models.Principal, input UpdateProfileInput) (*models.User, error)
}

// Profile is the caller's own account with their role-specific record.
type Profile struct {
	User      *models.User             `json:"user"`
	Professor *models.ProfessorProfile `json:"professor,omitempty"`
	Team      *models.Team             `json:"team,omitempty"`
}

// UpdateProfileInput carries a partial update; nil fields stay untouched.
type UpdateProfileInput struct {
	Email       *string `json:"email"`
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	PhoneNumber *string `json:"phone_number"`
	Department  *string `json:"department"`
}

type userService struct {
	store  repositories.Store
	logger *slog.Logger
}

func NewUserService(store repositories.Store, logger *slog.Logger) UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &userService{store: store, logger: logger}
}

func (s *userService) GetProfile(ctx context.Context, principal models.Principal) (*Profile, error) {
	user, err := s.store.Users().GetByID(ctx, principal.UserID())
	if err != nil {
		return nil, translateRepoError(err)
	}
	user.PasswordHash = ""
	profile := &Profile{User: user}

	switch p := principal.(type) {
	case models.TeacherPrincipal:
		professor, err := s.store.Professors().GetByUserID(ctx, p.ProfessorID())
		if err != nil {
			return nil, translateRepoError(err)
		}
		profile.Professor = professor
	case models.StudentPrincipal:
		team, err := activeTeamOf(ctx, s.store, p.UserID())
		switch {
		case err == nil:
			profile.Team = team
		case !errors.Is(err, ErrNoActiveTeam):
			return nil, err
		}
	}
	return profile, nil
}

func (s *userService) UpdateProfile(ctx context.Context, principal models.Principal, input UpdateProfileInput) (*models.User, error) {
	var user *models.User
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		var err error
		user, err = tx.Users().GetByIDForUpdate(ctx, principal.UserID())
		if err != nil {
			return translateRepoError(err)
		}
		if err := applyProfileUpdate(user, input); err != nil {
			return err
		}
		return translateRepoError(tx.Users().Update(ctx, user))
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "profile updated", slog.Int("user_id", user.ID))
	user.PasswordHash = ""
	return user, nil
}

func applyProfileUpdate(user *models.User, input UpdateProfileInput) error {
	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if _, err := mail.ParseAddress(email); err != nil {
			return fmt.Errorf("%w: invalid email address", ErrValidationFailed)
		}
		user.Email = email
	}
	if input.FirstName != nil {
		user.FirstName = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		user.LastName = strings.TrimSpace(*input.LastName)
	}
	if input.PhoneNumber != nil {
		user.PhoneNumber = trimmedOrNil(input.PhoneNumber)
	}
	if input.Department != nil {
		user.Department = trimmedOrNil(input.Department)
	}
	return nil
}
