package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/thegupta1694/capstone/models"
)

var (
	ErrMembershipNotFound = errors.New("team membership not found")
	ErrMembershipConflict = errors.New("team membership conflict: user already linked to this team")
	ErrMembershipInvalid  = errors.New("team membership team or user invalid")
)

const membershipColumns = `m.id, m.team_id, m.user_id, m.status, m.invited_at, m.responded_at`

type postgresMembershipRepository struct {
	db SQLExecutor
}

func NewPostgresMembershipRepository(db SQLExecutor) MembershipRepository {
	return &postgresMembershipRepository{db: db}
}

func (r *postgresMembershipRepository) Create(ctx context.Context, m *models.TeamMembership) error {
	query := `
		INSERT INTO team_memberships (team_id, user_id, status, responded_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, invited_at`

	err := r.db.QueryRowContext(ctx, query, m.TeamID, m.UserID, m.Status, m.RespondedAt).
		Scan(&m.ID, &m.InvitedAt)
	if err != nil {
		if code, constraint, ok := pqConstraint(err); ok {
			switch code {
			case pqUniqueViolation:
				if constraint == "team_memberships_team_id_user_id_key" {
					return ErrMembershipConflict
				}
				if constraint == "uniq_accepted_membership_per_user" {
					return ErrMembershipConflict
				}
			case pqForeignKeyViolation:
				return ErrMembershipInvalid
			}
		}
		return fmt.Errorf("failed to create membership: %w", err)
	}
	return nil
}

func (r *postgresMembershipRepository) GetByID(ctx context.Context, id int) (*models.TeamMembership, error) {
	return r.findOne(ctx, `SELECT `+membershipColumns+` FROM team_memberships m WHERE m.id = $1`, id)
}

func (r *postgresMembershipRepository) GetByTeamAndUser(ctx context.Context, teamID, userID int) (*models.TeamMembership, error) {
	return r.findOne(ctx, `SELECT `+membershipColumns+` FROM team_memberships m WHERE m.team_id = $1 AND m.user_id = $2`, teamID, userID)
}

func (r *postgresMembershipRepository) GetAcceptedByUser(ctx context.Context, userID int) (*models.TeamMembership, error) {
	return r.findOne(ctx,
		`SELECT `+membershipColumns+` FROM team_memberships m WHERE m.user_id = $1 AND m.status = $2 LIMIT 1`,
		userID, models.MembershipAccepted)
}

func (r *postgresMembershipRepository) ListByTeam(ctx context.Context, teamID int) ([]*models.TeamMembership, error) {
	query := `
		SELECT ` + membershipColumns + `,
		       u.id, u.username, u.email, u.first_name, u.last_name, u.phone_number, u.department, u.role, u.password_hash, u.created_at
		FROM team_memberships m
		JOIN users u ON u.id = m.user_id
		WHERE m.team_id = $1
		ORDER BY m.invited_at ASC, m.id ASC`

	rows, err := r.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team memberships: %w", err)
	}
	defer rows.Close()

	memberships := make([]*models.TeamMembership, 0)
	for rows.Next() {
		m := &models.TeamMembership{User: &models.User{}}
		if scanErr := rows.Scan(
			&m.ID, &m.TeamID, &m.UserID, &m.Status, &m.InvitedAt, &m.RespondedAt,
			&m.User.ID, &m.User.Username, &m.User.Email, &m.User.FirstName, &m.User.LastName,
			&m.User.PhoneNumber, &m.User.Department, &m.User.Role, &m.User.PasswordHash, &m.User.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", scanErr)
		}
		m.User.PasswordHash = ""
		memberships = append(memberships, m)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return memberships, nil
}

func (r *postgresMembershipRepository) ListPendingByUser(ctx context.Context, userID int) ([]*models.TeamMembership, error) {
	query := `
		SELECT ` + membershipColumns + `,
		       t.id, t.name, t.leader_id, t.logo_key, t.created_at, t.updated_at
		FROM team_memberships m
		JOIN teams t ON t.id = m.team_id
		WHERE m.user_id = $1 AND m.status = $2
		ORDER BY m.invited_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID, models.MembershipPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	memberships := make([]*models.TeamMembership, 0)
	for rows.Next() {
		m := &models.TeamMembership{Team: &models.Team{}}
		if scanErr := rows.Scan(
			&m.ID, &m.TeamID, &m.UserID, &m.Status, &m.InvitedAt, &m.RespondedAt,
			&m.Team.ID, &m.Team.Name, &m.Team.LeaderID, &m.Team.LogoKey, &m.Team.CreatedAt, &m.Team.UpdatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", scanErr)
		}
		memberships = append(memberships, m)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return memberships, nil
}

func (r *postgresMembershipRepository) CountAccepted(ctx context.Context, teamID int) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM team_memberships WHERE team_id = $1 AND status = $2`,
		teamID, models.MembershipAccepted,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count team members: %w", err)
	}
	return n, nil
}

func (r *postgresMembershipRepository) UpdateStatus(ctx context.Context, id int, status models.MembershipStatus, respondedAt *time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE team_memberships SET status = $1, responded_at = $2 WHERE id = $3`,
		status, respondedAt, id)
	if err != nil {
		if code, constraint, ok := pqConstraint(err); ok && code == pqUniqueViolation && constraint == "uniq_accepted_membership_per_user" {
			return ErrMembershipConflict
		}
		return fmt.Errorf("failed to update membership status: %w", err)
	}
	return checkAffectedRows(result, ErrMembershipNotFound)
}

func (r *postgresMembershipRepository) Reopen(ctx context.Context, id int, invitedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE team_memberships SET status = $1, invited_at = $2, responded_at = NULL WHERE id = $3`,
		models.MembershipPending, invitedAt, id)
	if err != nil {
		return fmt.Errorf("failed to reopen membership: %w", err)
	}
	return checkAffectedRows(result, ErrMembershipNotFound)
}

func (r *postgresMembershipRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM team_memberships WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	return checkAffectedRows(result, ErrMembershipNotFound)
}

func (r *postgresMembershipRepository) findOne(ctx context.Context, query string, args ...interface{}) (*models.TeamMembership, error) {
	m := &models.TeamMembership{}
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&m.ID, &m.TeamID, &m.UserID, &m.Status, &m.InvitedAt, &m.RespondedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to find membership: %w", err)
	}
	return m, nil
}
