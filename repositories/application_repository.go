package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/thegupta1694/capstone/models"
)

var (
	ErrApplicationNotFound = errors.New("application not found")
	ErrApplicationConflict = errors.New("application conflict: team already applied to this professor")
	ErrApplicationInvalid  = errors.New("application team or professor invalid")
)

const applicationColumns = `a.id, a.team_id, a.professor_id, a.status, a.message, a.professor_response, a.submitted_at, a.responded_at`

const applicationListSelect = `
	SELECT ` + applicationColumns + `,
	       t.id, t.name, t.leader_id, t.logo_key, t.created_at, t.updated_at,
	       p.user_id, p.research_domains, p.bio, p.total_slots, p.filled_slots,
	       u.id, u.username, u.email, u.first_name, u.last_name, u.phone_number, u.department, u.role, u.created_at
	FROM applications a
	JOIN teams t ON t.id = a.team_id
	JOIN professor_profiles p ON p.user_id = a.professor_id
	JOIN users u ON u.id = p.user_id`

var applicationOrderColumns = map[string]string{
	"submitted_at": "a.submitted_at",
	"responded_at": "a.responded_at",
}

type postgresApplicationRepository struct {
	db SQLExecutor
}

func NewPostgresApplicationRepository(db SQLExecutor) ApplicationRepository {
	return &postgresApplicationRepository{db: db}
}

func (r *postgresApplicationRepository) Create(ctx context.Context, a *models.Application) error {
	query := `
		INSERT INTO applications (team_id, professor_id, status, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, submitted_at`

	err := r.db.QueryRowContext(ctx, query, a.TeamID, a.ProfessorID, a.Status, a.Message).
		Scan(&a.ID, &a.SubmittedAt)
	if err != nil {
		if code, constraint, ok := pqConstraint(err); ok {
			switch code {
			case pqUniqueViolation:
				if constraint == "applications_team_id_professor_id_key" {
					return ErrApplicationConflict
				}
			case pqForeignKeyViolation:
				return ErrApplicationInvalid
			}
		}
		return fmt.Errorf("failed to create application: %w", err)
	}
	return nil
}

func (r *postgresApplicationRepository) GetByID(ctx context.Context, id int) (*models.Application, error) {
	return r.findOne(ctx, `SELECT `+applicationColumns+` FROM applications a WHERE a.id = $1`, id)
}

func (r *postgresApplicationRepository) GetByIDForUpdate(ctx context.Context, id int) (*models.Application, error) {
	return r.findOne(ctx, `SELECT `+applicationColumns+` FROM applications a WHERE a.id = $1 FOR UPDATE`, id)
}

func (r *postgresApplicationRepository) Exists(ctx context.Context, teamID, professorID int) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM applications WHERE team_id = $1 AND professor_id = $2)`,
		teamID, professorID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check application: %w", err)
	}
	return exists, nil
}

func (r *postgresApplicationRepository) CountPendingByTeam(ctx context.Context, teamID int) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM applications WHERE team_id = $1 AND status = $2`,
		teamID, models.ApplicationPending,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending applications: %w", err)
	}
	return n, nil
}

func (r *postgresApplicationRepository) UpdateResolution(ctx context.Context, a *models.Application) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE applications SET status = $1, professor_response = $2, responded_at = $3 WHERE id = $4`,
		a.Status, a.ProfessorResponse, a.RespondedAt, a.ID)
	if err != nil {
		return fmt.Errorf("failed to update application: %w", err)
	}
	return checkAffectedRows(result, ErrApplicationNotFound)
}

func (r *postgresApplicationRepository) WithdrawPendingByTeam(ctx context.Context, teamID, exceptID int, at time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE applications SET status = $1, responded_at = $2
		 WHERE team_id = $3 AND status = $4 AND id <> $5`,
		models.ApplicationWithdrawn, at, teamID, models.ApplicationPending, exceptID)
	if err != nil {
		return 0, fmt.Errorf("failed to withdraw sibling applications: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}

func (r *postgresApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]*models.Application, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.TeamID != nil {
		args = append(args, *filter.TeamID)
		conditions = append(conditions, fmt.Sprintf("a.team_id = $%d", len(args)))
	}
	if filter.ProfessorID != nil {
		args = append(args, *filter.ProfessorID)
		conditions = append(conditions, fmt.Sprintf("a.professor_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		conditions = append(conditions, fmt.Sprintf("LOWER(u.department) = LOWER($%d)", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(
			"(t.name ILIKE $%d OR u.first_name ILIKE $%d OR u.last_name ILIKE $%d)", n, n, n))
	}

	var sb strings.Builder
	sb.WriteString(applicationListSelect)
	if len(conditions) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conditions, " AND "))
	}
	sb.WriteString(" ORDER BY ")
	if col, ok := applicationOrderColumns[filter.Ordering.Field]; ok {
		sb.WriteString(col)
		if filter.Ordering.Descending {
			sb.WriteString(" DESC NULLS LAST")
		} else {
			sb.WriteString(" ASC NULLS LAST")
		}
	} else {
		sb.WriteString("a.submitted_at DESC")
	}
	sb.WriteString(", a.id DESC")

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	applications := make([]*models.Application, 0)
	for rows.Next() {
		a := &models.Application{
			Team:      &models.Team{},
			Professor: &models.ProfessorProfile{User: &models.User{}},
		}
		if scanErr := rows.Scan(
			&a.ID, &a.TeamID, &a.ProfessorID, &a.Status, &a.Message, &a.ProfessorResponse, &a.SubmittedAt, &a.RespondedAt,
			&a.Team.ID, &a.Team.Name, &a.Team.LeaderID, &a.Team.LogoKey, &a.Team.CreatedAt, &a.Team.UpdatedAt,
			&a.Professor.UserID, &a.Professor.ResearchDomains, &a.Professor.Bio, &a.Professor.TotalSlots, &a.Professor.FilledSlots,
			&a.Professor.User.ID, &a.Professor.User.Username, &a.Professor.User.Email, &a.Professor.User.FirstName,
			&a.Professor.User.LastName, &a.Professor.User.PhoneNumber, &a.Professor.User.Department,
			&a.Professor.User.Role, &a.Professor.User.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan application: %w", scanErr)
		}
		applications = append(applications, a)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return applications, nil
}

func (r *postgresApplicationRepository) CountByStatus(ctx context.Context) (map[models.ApplicationStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM applications GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count applications: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.ApplicationStatus]int)
	for rows.Next() {
		var status models.ApplicationStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan application count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *postgresApplicationRepository) findOne(ctx context.Context, query string, args ...interface{}) (*models.Application, error) {
	a := &models.Application{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&a.ID, &a.TeamID, &a.ProfessorID, &a.Status, &a.Message, &a.ProfessorResponse, &a.SubmittedAt, &a.RespondedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("failed to find application: %w", err)
	}
	return a, nil
}
