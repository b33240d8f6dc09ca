package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/thegupta1694/capstone/metrics"
	"github.com/thegupta1694/capstone/models"
	"github.com/thegupta1694/capstone/repositories"
	"github.com/thegupta1694/capstone/storage"
)

const maxApplicationMessageLength = 2000

// ApplicationOrderingFields are the accepted values of ?ordering= on the
// application list.
var ApplicationOrderingFields = []string{"submitted_at", "responded_at"}

// ApplicationLedger records a team's bids for professor supervision.
type ApplicationLedger interface {
	Submit(ctx context.Context, principal models.Principal, professorID int, message *string) (*models.Application, error)
	Respond(ctx context.Context, principal models.Principal, applicationID int, decision models.ApplicationStatus, response *string) (*models.Application, error)
	Withdraw(ctx context.Context, principal models.Principal, applicationID int) (*models.Application, error)
	Get(ctx context.Context, principal models.Principal, applicationID int) (*models.Application, error)
	List(ctx context.Context, principal models.Principal, filter models.ApplicationFilter) ([]*models.Application, error)
}

type applicationLedger struct {
	store       repositories.Store
	coordinator AllocationCoordinator
	uploader    storage.FileUploader
	logger      *slog.Logger
}

func NewApplicationLedger(
	store repositories.Store,
	coordinator AllocationCoordinator,
	uploader storage.FileUploader,
	logger *slog.Logger,
) ApplicationLedger {
	if logger == nil {
		logger = slog.Default()
	}
	return &applicationLedger{
		store:       store,
		coordinator: coordinator,
		uploader:    uploader,
		logger:      logger,
	}
}

func (s *applicationLedger) Submit(ctx context.Context, principal models.Principal, professorID int, message *string) (*models.Application, error) {
	if _, ok := principal.(models.StudentPrincipal); !ok {
		return nil, fmt.Errorf("%w: only students submit applications", ErrRoleViolation)
	}
	message = trimmedOrNil(message)
	if message != nil && utf8.RuneCountInString(*message) > maxApplicationMessageLength {
		return nil, fmt.Errorf("%w: message exceeds %d characters", ErrValidationFailed, maxApplicationMessageLength)
	}
	userID := principal.UserID()

	var app *models.Application
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		team, err := activeTeamOf(ctx, tx, userID)
		if err != nil {
			return err
		}
		// team -> professor lock order
		if _, err := tx.Teams().GetByIDForUpdate(ctx, team.ID); err != nil {
			return translateRepoError(err)
		}
		member, err := isAcceptedMember(ctx, tx, team.ID, userID)
		if err != nil {
			return err
		}
		if !member {
			return fmt.Errorf("%w: user %d", ErrNoActiveTeam, userID)
		}

		professor, err := tx.Professors().GetByUserIDForUpdate(ctx, professorID)
		if err != nil {
			return translateRepoError(err)
		}

		pending, err := tx.Applications().CountPendingByTeam(ctx, team.ID)
		if err != nil {
			return err
		}
		if pending >= models.MaxPendingApplications {
			return fmt.Errorf("%w: %d pending", ErrTooManyPending, pending)
		}
		if !professor.CanAccept() {
			return ErrNoSlots
		}
		exists, err := tx.Applications().Exists(ctx, team.ID, professorID)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateApplication
		}

		app = &models.Application{
			TeamID:      team.ID,
			ProfessorID: professorID,
			Status:      models.ApplicationPending,
			Message:     message,
		}
		if err := tx.Applications().Create(ctx, app); err != nil {
			return translateRepoError(err)
		}
		app.Team = team
		app.Professor = professor
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ApplicationTransitions.WithLabelValues(string(models.ApplicationPending)).Inc()
	s.logger.InfoContext(ctx, "application submitted",
		slog.Int("application_id", app.ID), slog.Int("team_id", app.TeamID), slog.Int("professor_id", professorID))
	return app, nil
}

func (s *applicationLedger) Respond(ctx context.Context, principal models.Principal, applicationID int, decision models.ApplicationStatus, response *string) (*models.Application, error) {
	if _, ok := principal.(models.StudentPrincipal); ok {
		return nil, fmt.Errorf("%w: students cannot answer applications", ErrRoleViolation)
	}
	switch decision {
	case models.ApplicationAccepted:
		return s.coordinator.Accept(ctx, principal, applicationID, response)
	case models.ApplicationRejected:
	default:
		return nil, fmt.Errorf("%w: decision must be accepted or rejected", ErrValidationFailed)
	}

	response = trimmedOrNil(response)
	var app *models.Application
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		current, err := tx.Applications().GetByID(ctx, applicationID)
		if err != nil {
			return translateRepoError(err)
		}
		if err := authorizeResponder(principal, current.ProfessorID); err != nil {
			return err
		}
		if _, err := tx.Teams().GetByIDForUpdate(ctx, current.TeamID); err != nil {
			return translateRepoError(err)
		}
		app, err = tx.Applications().GetByIDForUpdate(ctx, applicationID)
		if err != nil {
			return translateRepoError(err)
		}
		if app.Status != models.ApplicationPending {
			return fmt.Errorf("%w: application %d is %s", ErrNotPending, app.ID, app.Status)
		}
		if err := app.Resolve(models.ApplicationRejected, response, nowUTC()); err != nil {
			return fmt.Errorf("%w: %v", ErrNotPending, err)
		}
		return translateRepoError(tx.Applications().UpdateResolution(ctx, app))
	})
	if err != nil {
		return nil, err
	}

	metrics.ApplicationTransitions.WithLabelValues(string(models.ApplicationRejected)).Inc()
	s.logger.InfoContext(ctx, "application rejected",
		slog.Int("application_id", app.ID), slog.Int("team_id", app.TeamID), slog.Int("professor_id", app.ProfessorID))
	return app, nil
}

func (s *applicationLedger) Withdraw(ctx context.Context, principal models.Principal, applicationID int) (*models.Application, error) {
	if _, ok := principal.(models.TeacherPrincipal); ok {
		return nil, fmt.Errorf("%w: teachers cannot withdraw applications", ErrPermissionDenied)
	}

	var app *models.Application
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		current, err := tx.Applications().GetByID(ctx, applicationID)
		if err != nil {
			return translateRepoError(err)
		}
		if _, err := tx.Teams().GetByIDForUpdate(ctx, current.TeamID); err != nil {
			return translateRepoError(err)
		}
		if !models.IsAdmin(principal) {
			member, err := isAcceptedMember(ctx, tx, current.TeamID, principal.UserID())
			if err != nil {
				return err
			}
			if !member {
				return fmt.Errorf("%w: only members of the applying team can withdraw", ErrPermissionDenied)
			}
		}
		app, err = tx.Applications().GetByIDForUpdate(ctx, applicationID)
		if err != nil {
			return translateRepoError(err)
		}
		if app.Status != models.ApplicationPending {
			return fmt.Errorf("%w: application %d is %s", ErrNotPending, app.ID, app.Status)
		}
		if err := app.Resolve(models.ApplicationWithdrawn, nil, nowUTC()); err != nil {
			return fmt.Errorf("%w: %v", ErrNotPending, err)
		}
		return translateRepoError(tx.Applications().UpdateResolution(ctx, app))
	})
	if err != nil {
		return nil, err
	}

	metrics.ApplicationTransitions.WithLabelValues(string(models.ApplicationWithdrawn)).Inc()
	s.logger.InfoContext(ctx, "application withdrawn",
		slog.Int("application_id", app.ID), slog.Int("team_id", app.TeamID), slog.Int("withdrawn_by", principal.UserID()))
	return app, nil
}

// Get hides applications outside the caller's scope behind ErrApplicationNotFound.
func (s *applicationLedger) Get(ctx context.Context, principal models.Principal, applicationID int) (*models.Application, error) {
	app, err := s.store.Applications().GetByID(ctx, applicationID)
	if err != nil {
		return nil, translateRepoError(err)
	}

	switch p := principal.(type) {
	case models.StudentPrincipal:
		member, err := isAcceptedMember(ctx, s.store, app.TeamID, p.UserID())
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, ErrApplicationNotFound
		}
	case models.TeacherPrincipal:
		if app.ProfessorID != p.ProfessorID() {
			return nil, ErrApplicationNotFound
		}
	case models.AdminPrincipal:
	default:
		return nil, ErrRoleViolation
	}

	team, err := s.store.Teams().GetByID(ctx, app.TeamID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	populateTeamLogoURL(team, s.uploader)
	professor, err := s.store.Professors().GetByUserID(ctx, app.ProfessorID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	app.Team = team
	app.Professor = professor
	return app, nil
}

// List scopes the filter to the principal: students see their team's
// applications, teachers those addressed to them, admins everything.
func (s *applicationLedger) List(ctx context.Context, principal models.Principal, filter models.ApplicationFilter) ([]*models.Application, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidationFailed, *filter.Status)
	}

	switch p := principal.(type) {
	case models.StudentPrincipal:
		team, err := activeTeamOf(ctx, s.store, p.UserID())
		if err != nil {
			if errors.Is(err, ErrNoActiveTeam) {
				return []*models.Application{}, nil
			}
			return nil, err
		}
		filter.TeamID = &team.ID
	case models.TeacherPrincipal:
		professorID := p.ProfessorID()
		filter.ProfessorID = &professorID
	case models.AdminPrincipal:
	default:
		return nil, ErrRoleViolation
	}

	apps, err := s.store.Applications().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	for _, a := range apps {
		populateTeamLogoURL(a.Team, s.uploader)
	}
	return apps, nil
}
