package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/thegupta1694/capstone/metrics"
	"github.com/thegupta1694/capstone/models"
	"github.com/thegupta1694/capstone/repositories"
)

// AllocationCoordinator moves an application into accepted. It is the only
// operation that changes an application, its siblings and a slot account in
// one transaction.
type AllocationCoordinator interface {
	Accept(ctx context.Context, principal models.Principal, applicationID int, response *string) (*models.Application, error)
}

type allocationCoordinator struct {
	store  repositories.Store
	logger *slog.Logger
}

func NewAllocationCoordinator(store repositories.Store, logger *slog.Logger) AllocationCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &allocationCoordinator{store: store, logger: logger}
}

// Accept locks team, professor and application in that order, so two
// acceptances for the same team or the same professor run one after another.
func (c *allocationCoordinator) Accept(ctx context.Context, principal models.Principal, applicationID int, response *string) (*models.Application, error) {
	if _, ok := principal.(models.StudentPrincipal); ok {
		return nil, fmt.Errorf("%w: students cannot answer applications", ErrRoleViolation)
	}
	response = trimmedOrNil(response)

	var (
		accepted  *models.Application
		withdrawn int64
		slots     *models.ProfessorProfile
	)
	err := c.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		current, err := tx.Applications().GetByID(ctx, applicationID)
		if err != nil {
			return translateRepoError(err)
		}
		if err := authorizeResponder(principal, current.ProfessorID); err != nil {
			return err
		}

		team, err := tx.Teams().GetByIDForUpdate(ctx, current.TeamID)
		if err != nil {
			return translateRepoError(err)
		}
		professor, err := tx.Professors().GetByUserIDForUpdate(ctx, current.ProfessorID)
		if err != nil {
			return translateRepoError(err)
		}
		app, err := tx.Applications().GetByIDForUpdate(ctx, applicationID)
		if err != nil {
			return translateRepoError(err)
		}

		if app.Status != models.ApplicationPending {
			return fmt.Errorf("%w: application %d is %s", ErrNotPending, app.ID, app.Status)
		}
		if !professor.CanAccept() {
			return fmt.Errorf("%w: %d of %d filled", ErrNoSlots, professor.FilledSlots, professor.TotalSlots)
		}

		now := nowUTC()
		if err := app.Resolve(models.ApplicationAccepted, response, now); err != nil {
			return fmt.Errorf("%w: %v", ErrNotPending, err)
		}
		if err := tx.Applications().UpdateResolution(ctx, app); err != nil {
			return translateRepoError(err)
		}

		withdrawn, err = tx.Applications().WithdrawPendingByTeam(ctx, team.ID, app.ID, now)
		if err != nil {
			return err
		}

		if err := professor.ReserveOne(); err != nil {
			if errors.Is(err, models.ErrSlotsExhausted) {
				return fmt.Errorf("%w: %v", ErrNoSlots, err)
			}
			return err
		}
		if err := tx.Professors().Update(ctx, professor); err != nil {
			if errors.Is(err, repositories.ErrProfessorSlotsInvalid) {
				return ErrNoSlots
			}
			return translateRepoError(err)
		}

		app.Team = team
		app.Professor = professor
		accepted = app
		slots = professor
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ApplicationTransitions.WithLabelValues(string(models.ApplicationAccepted)).Inc()
	if withdrawn > 0 {
		metrics.ApplicationTransitions.WithLabelValues(string(models.ApplicationWithdrawn)).Add(float64(withdrawn))
	}
	metrics.SlotReservations.Inc()
	c.logger.InfoContext(ctx, "application accepted",
		slog.Int("application_id", accepted.ID),
		slog.Int("team_id", accepted.TeamID),
		slog.Int("professor_id", accepted.ProfessorID),
		slog.Int64("withdrawn_siblings", withdrawn),
		slog.Int("filled_slots", slots.FilledSlots),
		slog.Int("total_slots", slots.TotalSlots),
	)
	return accepted, nil
}

// authorizeResponder allows the teacher owning the profile and admins.
func authorizeResponder(principal models.Principal, professorID int) error {
	switch p := principal.(type) {
	case models.AdminPrincipal:
		return nil
	case models.TeacherPrincipal:
		if p.ProfessorID() != professorID {
			return fmt.Errorf("%w: application is addressed to another professor", ErrPermissionDenied)
		}
		return nil
	default:
		return fmt.Errorf("%w: only teachers and admins answer applications", ErrRoleViolation)
	}
}
