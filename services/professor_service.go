package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/thegupta1694/capstone/models"
	"github.com/thegupta1694/capstone/repositories"
)

// ProfessorOrderingFields are the accepted values of ?ordering= on the
// professor directory.
var ProfessorOrderingFields = []string{"first_name", "last_name", "total_slots", "filled_slots"}

type ProfessorService interface {
	ListProfessors(ctx context.Context, filter models.ProfessorFilter) ([]*models.ProfessorProfile, error)
	GetProfessor(ctx context.Context, professorID int) (*models.ProfessorProfile, error)
	UpdateProfessor(ctx context.Context, principal models.Principal, professorID int, input UpdateProfessorInput) (*models.ProfessorProfile, error)
}

type UpdateProfessorInput struct {
	ResearchDomains *string `json:"research_domains"`
	Bio             *string `json:"bio"`
	TotalSlots      *int    `json:"total_slots"`
}

type professorService struct {
	store  repositories.Store
	logger *slog.Logger
}

func NewProfessorService(store repositories.Store, logger *slog.Logger) ProfessorService {
	if logger == nil {
		logger = slog.Default()
	}
	return &professorService{store: store, logger: logger}
}

func (s *professorService) ListProfessors(ctx context.Context, filter models.ProfessorFilter) ([]*models.ProfessorProfile, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Department = strings.TrimSpace(filter.Department)
	profiles, err := s.store.Professors().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list professors: %w", err)
	}
	return profiles, nil
}

func (s *professorService) GetProfessor(ctx context.Context, professorID int) (*models.ProfessorProfile, error) {
	profile, err := s.store.Professors().GetByUserID(ctx, professorID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return profile, nil
}

// UpdateProfessor lets a teacher edit their own profile and an admin edit any.
func (s *professorService) UpdateProfessor(ctx context.Context, principal models.Principal, professorID int, input UpdateProfessorInput) (*models.ProfessorProfile, error) {
	switch p := principal.(type) {
	case models.AdminPrincipal:
	case models.TeacherPrincipal:
		if p.ProfessorID() != professorID {
			return nil, fmt.Errorf("%w: teachers can only edit their own profile", ErrPermissionDenied)
		}
	default:
		return nil, fmt.Errorf("%w: only teachers and admins edit professor profiles", ErrRoleViolation)
	}

	var profile *models.ProfessorProfile
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		var err error
		profile, err = tx.Professors().GetByUserIDForUpdate(ctx, professorID)
		if err != nil {
			return translateRepoError(err)
		}
		if input.ResearchDomains != nil {
			profile.ResearchDomains = strings.TrimSpace(*input.ResearchDomains)
		}
		if input.Bio != nil {
			profile.Bio = trimmedOrNil(input.Bio)
		}
		if input.TotalSlots != nil {
			if err := profile.SetTotalSlots(*input.TotalSlots); err != nil {
				if errors.Is(err, models.ErrInvalidTotalSlots) {
					return fmt.Errorf("%w: %v", ErrValidationFailed, err)
				}
				return err
			}
		}
		return translateRepoError(tx.Professors().Update(ctx, profile))
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "professor profile updated",
		slog.Int("professor_id", professorID), slog.Int("total_slots", profile.TotalSlots), slog.Int("updated_by", principal.UserID()))
	return profile, nil
}
