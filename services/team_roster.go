package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/thegupta1694/capstone/metrics"
	"github.com/thegupta1694/capstone/models"
	"github.com/thegupta1694/capstone/repositories"
	"github.com/thegupta1694/capstone/storage"
)

// TeamRoster owns team membership: creation, invitations and departures.
type TeamRoster interface {
	CreateTeam(ctx context.Context, principal models.Principal, name string) (*models.Team, error)
	Invite(ctx context.Context, principal models.Principal, teamID, targetUserID int) (*models.TeamMembership, error)
	Respond(ctx context.Context, principal models.Principal, membershipID int, decision models.MembershipStatus) (*models.TeamMembership, error)
	Leave(ctx context.Context, principal models.Principal) error
	RemoveMember(ctx context.Context, principal models.Principal, membershipID int) error
	DeleteTeam(ctx context.Context, principal models.Principal, teamID int) error

	ActiveTeamOf(ctx context.Context, userID int) (*models.Team, error)
	MyTeam(ctx context.Context, principal models.Principal) (*models.Team, error)
	GetTeam(ctx context.Context, principal models.Principal, teamID int) (*models.Team, error)
	ListTeams(ctx context.Context, principal models.Principal) ([]*models.Team, error)
	MyInvitations(ctx context.Context, principal models.Principal) ([]*models.TeamMembership, error)
	UploadLogo(ctx context.Context, principal models.Principal, teamID int, contentType string, reader io.Reader) (*models.Team, error)
}

type teamRoster struct {
	store    repositories.Store
	uploader storage.FileUploader
	logger   *slog.Logger
}

// NewTeamRoster builds the roster service. uploader may be nil, in which case
// logo uploads fail with ErrFeatureUnavailable.
func NewTeamRoster(store repositories.Store, uploader storage.FileUploader, logger *slog.Logger) TeamRoster {
	if logger == nil {
		logger = slog.Default()
	}
	return &teamRoster{store: store, uploader: uploader, logger: logger}
}

func (s *teamRoster) CreateTeam(ctx context.Context, principal models.Principal, name string) (*models.Team, error) {
	if _, ok := principal.(models.StudentPrincipal); !ok {
		return nil, fmt.Errorf("%w: only students create teams", ErrRoleViolation)
	}
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > models.MaxTeamNameLength {
		return nil, fmt.Errorf("%w: team name must be 1..%d characters", ErrValidationFailed, models.MaxTeamNameLength)
	}
	userID := principal.UserID()

	var team *models.Team
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		if _, err := tx.Users().GetByIDForUpdate(ctx, userID); err != nil {
			return translateRepoError(err)
		}

		taken, err := tx.Teams().ExistsByName(ctx, name)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}

		if _, err := tx.Teams().GetByLeaderID(ctx, userID); err == nil {
			return ErrAlreadyLeader
		} else if !errors.Is(err, repositories.ErrTeamNotFound) {
			return err
		}

		if _, err := tx.Memberships().GetAcceptedByUser(ctx, userID); err == nil {
			return ErrAlreadyMember
		} else if !errors.Is(err, repositories.ErrMembershipNotFound) {
			return err
		}

		team = &models.Team{Name: name, LeaderID: userID}
		if err := tx.Teams().Create(ctx, team); err != nil {
			return translateRepoError(err)
		}

		now := nowUTC()
		leader := &models.TeamMembership{
			TeamID:      team.ID,
			UserID:      userID,
			Status:      models.MembershipAccepted,
			RespondedAt: &now,
		}
		if err := tx.Memberships().Create(ctx, leader); err != nil {
			return translateRepoError(err)
		}
		leader.IsLeader = true
		team.Members = []*models.TeamMembership{leader}
		team.SetMemberCount(1)
		team.SetCallerFlags(userID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "team created", slog.Int("team_id", team.ID), slog.Int("leader_id", userID))
	return team, nil
}

func (s *teamRoster) Invite(ctx context.Context, principal models.Principal, teamID, targetUserID int) (*models.TeamMembership, error) {
	var invitation *models.TeamMembership
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		team, err := tx.Teams().GetByIDForUpdate(ctx, teamID)
		if err != nil {
			return translateRepoError(err)
		}
		if team.LeaderID != principal.UserID() {
			return fmt.Errorf("%w: only the team leader can invite", ErrPermissionDenied)
		}

		target, err := tx.Users().GetByIDForUpdate(ctx, targetUserID)
		if err != nil {
			return translateRepoError(err)
		}
		if target.Role != models.RoleStudent {
			return fmt.Errorf("%w: only students can be invited", ErrRoleViolation)
		}

		accepted, err := tx.Memberships().CountAccepted(ctx, teamID)
		if err != nil {
			return err
		}
		if models.IsTeamFull(accepted) {
			return ErrTeamFull
		}

		if _, err := tx.Memberships().GetAcceptedByUser(ctx, targetUserID); err == nil {
			return ErrAlreadyMember
		} else if !errors.Is(err, repositories.ErrMembershipNotFound) {
			return err
		}

		now := nowUTC()
		existing, err := tx.Memberships().GetByTeamAndUser(ctx, teamID, targetUserID)
		switch {
		case err == nil && existing.Status == models.MembershipPending:
			return ErrDuplicateInvite
		case err == nil:
			if err := tx.Memberships().Reopen(ctx, existing.ID, now); err != nil {
				return translateRepoError(err)
			}
			existing.Status = models.MembershipPending
			existing.InvitedAt = now
			existing.RespondedAt = nil
			invitation = existing
			return nil
		case !errors.Is(err, repositories.ErrMembershipNotFound):
			return err
		}

		invitation = &models.TeamMembership{TeamID: teamID, UserID: targetUserID, Status: models.MembershipPending}
		if err := tx.Memberships().Create(ctx, invitation); err != nil {
			if errors.Is(err, repositories.ErrMembershipConflict) {
				return ErrDuplicateInvite
			}
			return translateRepoError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.MembershipTransitions.WithLabelValues(string(models.MembershipPending)).Inc()
	s.logger.InfoContext(ctx, "team invitation sent",
		slog.Int("team_id", teamID), slog.Int("user_id", targetUserID), slog.Int("membership_id", invitation.ID))
	return invitation, nil
}

func (s *teamRoster) Respond(ctx context.Context, principal models.Principal, membershipID int, decision models.MembershipStatus) (*models.TeamMembership, error) {
	if !decision.IsDecision() {
		return nil, fmt.Errorf("%w: decision must be accepted or rejected", ErrValidationFailed)
	}
	userID := principal.UserID()

	var membership *models.TeamMembership
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		m, err := tx.Memberships().GetByID(ctx, membershipID)
		if err != nil {
			return translateRepoError(err)
		}
		if m.UserID != userID {
			return fmt.Errorf("%w: invitation belongs to another user", ErrPermissionDenied)
		}

		// team -> user lock order
		if _, err := tx.Teams().GetByIDForUpdate(ctx, m.TeamID); err != nil {
			return translateRepoError(err)
		}
		if _, err := tx.Users().GetByIDForUpdate(ctx, userID); err != nil {
			return translateRepoError(err)
		}
		m, err = tx.Memberships().GetByID(ctx, membershipID)
		if err != nil {
			return translateRepoError(err)
		}
		if m.Status != models.MembershipPending {
			return fmt.Errorf("%w: invitation is %s", ErrNotPending, m.Status)
		}

		if decision == models.MembershipAccepted {
			if _, err := tx.Memberships().GetAcceptedByUser(ctx, userID); err == nil {
				return ErrAlreadyMember
			} else if !errors.Is(err, repositories.ErrMembershipNotFound) {
				return err
			}
			accepted, err := tx.Memberships().CountAccepted(ctx, m.TeamID)
			if err != nil {
				return err
			}
			if models.IsTeamFull(accepted) {
				return ErrTeamFull
			}
		}

		if err := m.Resolve(decision, nowUTC()); err != nil {
			return fmt.Errorf("%w: %v", ErrNotPending, err)
		}
		if err := tx.Memberships().UpdateStatus(ctx, m.ID, m.Status, m.RespondedAt); err != nil {
			return translateRepoError(err)
		}
		membership = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.MembershipTransitions.WithLabelValues(string(decision)).Inc()
	s.logger.InfoContext(ctx, "team invitation answered",
		slog.Int("team_id", membership.TeamID), slog.Int("user_id", userID), slog.String("decision", string(decision)))
	return membership, nil
}

func (s *teamRoster) Leave(ctx context.Context, principal models.Principal) error {
	userID := principal.UserID()
	var teamID int
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		m, err := tx.Memberships().GetAcceptedByUser(ctx, userID)
		if err != nil {
			if errors.Is(err, repositories.ErrMembershipNotFound) {
				return fmt.Errorf("%w: user %d", ErrNoActiveTeam, userID)
			}
			return err
		}
		team, err := tx.Teams().GetByIDForUpdate(ctx, m.TeamID)
		if err != nil {
			return translateRepoError(err)
		}
		if team.LeaderID == userID {
			return ErrLeaderCannotLeave
		}
		teamID = team.ID
		return translateRepoError(tx.Memberships().Delete(ctx, m.ID))
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "member left team", slog.Int("team_id", teamID), slog.Int("user_id", userID))
	return nil
}

func (s *teamRoster) RemoveMember(ctx context.Context, principal models.Principal, membershipID int) error {
	var removed *models.TeamMembership
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		m, err := tx.Memberships().GetByID(ctx, membershipID)
		if err != nil {
			return translateRepoError(err)
		}
		team, err := tx.Teams().GetByIDForUpdate(ctx, m.TeamID)
		if err != nil {
			return translateRepoError(err)
		}
		if !models.IsAdmin(principal) && team.LeaderID != principal.UserID() {
			return fmt.Errorf("%w: only the team leader or an admin can remove members", ErrPermissionDenied)
		}
		if m.UserID == team.LeaderID {
			return ErrCannotRemoveLeader
		}
		removed = m
		return translateRepoError(tx.Memberships().Delete(ctx, m.ID))
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "member removed from team",
		slog.Int("team_id", removed.TeamID), slog.Int("user_id", removed.UserID), slog.Int("removed_by", principal.UserID()))
	return nil
}

// DeleteTeam drops the team with its memberships and applications. Slots
// reserved by an accepted application stay filled.
func (s *teamRoster) DeleteTeam(ctx context.Context, principal models.Principal, teamID int) error {
	var logoKey *string
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		team, err := tx.Teams().GetByIDForUpdate(ctx, teamID)
		if err != nil {
			return translateRepoError(err)
		}
		if !models.IsAdmin(principal) && team.LeaderID != principal.UserID() {
			return fmt.Errorf("%w: only the team leader or an admin can delete the team", ErrPermissionDenied)
		}

		accepted := models.ApplicationAccepted
		held, err := tx.Applications().List(ctx, models.ApplicationFilter{TeamID: &teamID, Status: &accepted})
		if err != nil {
			return err
		}
		for _, a := range held {
			s.logger.WarnContext(ctx, "deleting team that holds a professor slot; slot stays reserved",
				slog.Int("team_id", teamID), slog.Int("professor_id", a.ProfessorID), slog.Int("application_id", a.ID))
		}

		logoKey = team.LogoKey
		return translateRepoError(tx.Teams().Delete(ctx, teamID))
	})
	if err != nil {
		return err
	}

	if logoKey != nil && s.uploader != nil {
		if delErr := s.uploader.Delete(ctx, *logoKey); delErr != nil {
			s.logger.WarnContext(ctx, "failed to delete team logo", slog.Int("team_id", teamID), slog.Any("error", delErr))
		}
	}
	s.logger.InfoContext(ctx, "team deleted", slog.Int("team_id", teamID), slog.Int("deleted_by", principal.UserID()))
	return nil
}

func (s *teamRoster) ActiveTeamOf(ctx context.Context, userID int) (*models.Team, error) {
	return activeTeamOf(ctx, s.store, userID)
}

func (s *teamRoster) MyTeam(ctx context.Context, principal models.Principal) (*models.Team, error) {
	team, err := activeTeamOf(ctx, s.store, principal.UserID())
	if err != nil {
		return nil, err
	}
	if err := s.populateTeam(ctx, team, principal); err != nil {
		return nil, err
	}
	return team, nil
}

func (s *teamRoster) GetTeam(ctx context.Context, principal models.Principal, teamID int) (*models.Team, error) {
	if _, ok := principal.(models.StudentPrincipal); ok {
		member, err := isAcceptedMember(ctx, s.store, teamID, principal.UserID())
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, fmt.Errorf("%w: students can only view their own team", ErrPermissionDenied)
		}
	}
	team, err := s.store.Teams().GetByID(ctx, teamID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if err := s.populateTeam(ctx, team, principal); err != nil {
		return nil, err
	}
	return team, nil
}

func (s *teamRoster) ListTeams(ctx context.Context, principal models.Principal) ([]*models.Team, error) {
	if _, ok := principal.(models.StudentPrincipal); ok {
		return nil, fmt.Errorf("%w: students cannot browse teams", ErrPermissionDenied)
	}
	teams, err := s.store.Teams().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	for _, team := range teams {
		if err := s.populateTeam(ctx, team, principal); err != nil {
			return nil, err
		}
	}
	return teams, nil
}

func (s *teamRoster) MyInvitations(ctx context.Context, principal models.Principal) ([]*models.TeamMembership, error) {
	invitations, err := s.store.Memberships().ListPendingByUser(ctx, principal.UserID())
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	for _, inv := range invitations {
		populateTeamLogoURL(inv.Team, s.uploader)
	}
	return invitations, nil
}

func (s *teamRoster) UploadLogo(ctx context.Context, principal models.Principal, teamID int, contentType string, reader io.Reader) (*models.Team, error) {
	if s.uploader == nil {
		return nil, fmt.Errorf("%w: logo storage", ErrFeatureUnavailable)
	}
	team, err := s.store.Teams().GetByID(ctx, teamID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if team.LeaderID != principal.UserID() {
		return nil, fmt.Errorf("%w: only the team leader can change the logo", ErrPermissionDenied)
	}
	ext, err := GetExtensionFromContentType(contentType)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("teams/%d/logo_%d%s", teamID, nowUTC().UnixNano(), ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, reader); err != nil {
		return nil, fmt.Errorf("failed to upload team logo: %w", err)
	}
	if err := s.store.Teams().UpdateLogo(ctx, teamID, &key); err != nil {
		if delErr := s.uploader.Delete(ctx, key); delErr != nil {
			s.logger.WarnContext(ctx, "failed to clean up uploaded logo", slog.String("key", key), slog.Any("error", delErr))
		}
		return nil, translateRepoError(err)
	}
	if team.LogoKey != nil && *team.LogoKey != key {
		if delErr := s.uploader.Delete(ctx, *team.LogoKey); delErr != nil {
			s.logger.WarnContext(ctx, "failed to delete previous team logo", slog.String("key", *team.LogoKey), slog.Any("error", delErr))
		}
	}

	team.LogoKey = &key
	if err := s.populateTeam(ctx, team, principal); err != nil {
		return nil, err
	}
	return team, nil
}

// populateTeam fills members, leader and the derived roster fields as seen
// by principal.
func (s *teamRoster) populateTeam(ctx context.Context, team *models.Team, principal models.Principal) error {
	memberships, err := s.store.Memberships().ListByTeam(ctx, team.ID)
	if err != nil {
		return fmt.Errorf("failed to list members of team %d: %w", team.ID, err)
	}
	accepted := 0
	for _, m := range memberships {
		if m.Status == models.MembershipAccepted {
			accepted++
		}
		if m.UserID == team.LeaderID {
			m.IsLeader = true
			team.Leader = m.User
		}
	}
	team.Members = memberships
	team.SetMemberCount(accepted)
	team.SetCallerFlags(principal.UserID())
	populateTeamLogoURL(team, s.uploader)
	return nil
}
