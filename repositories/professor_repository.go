package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/thegupta1694/capstone/models"
)

var (
	ErrProfessorNotFound     = errors.New("professor profile not found")
	ErrProfessorSlotsInvalid = errors.New("professor slot counters violate constraints")
	ErrProfessorUserInvalid  = errors.New("professor profile user conflict or invalid")
)

const professorSelect = `
	SELECT p.user_id, p.research_domains, p.bio, p.total_slots, p.filled_slots,
	       u.id, u.username, u.email, u.first_name, u.last_name, u.phone_number, u.department, u.role, u.password_hash, u.created_at
	FROM professor_profiles p
	JOIN users u ON u.id = p.user_id`

var professorOrderColumns = map[string]string{
	"first_name":   "u.first_name",
	"last_name":    "u.last_name",
	"total_slots":  "p.total_slots",
	"filled_slots": "p.filled_slots",
}

type postgresProfessorRepository struct {
	db SQLExecutor
}

func NewPostgresProfessorRepository(db SQLExecutor) ProfessorRepository {
	return &postgresProfessorRepository{db: db}
}

func (r *postgresProfessorRepository) Create(ctx context.Context, p *models.ProfessorProfile) error {
	query := `
		INSERT INTO professor_profiles (user_id, research_domains, bio, total_slots, filled_slots)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query, p.UserID, p.ResearchDomains, p.Bio, p.TotalSlots, p.FilledSlots)
	if err != nil {
		return translateProfessorError(err)
	}
	return nil
}

func (r *postgresProfessorRepository) GetByUserID(ctx context.Context, userID int) (*models.ProfessorProfile, error) {
	return r.findOne(ctx, professorSelect+` WHERE p.user_id = $1`, userID)
}

func (r *postgresProfessorRepository) GetByUserIDForUpdate(ctx context.Context, userID int) (*models.ProfessorProfile, error) {
	return r.findOne(ctx, professorSelect+` WHERE p.user_id = $1 FOR UPDATE OF p`, userID)
}

func (r *postgresProfessorRepository) List(ctx context.Context, filter models.ProfessorFilter) ([]*models.ProfessorProfile, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.Department != "" {
		args = append(args, filter.Department)
		conditions = append(conditions, fmt.Sprintf("LOWER(u.department) = LOWER($%d)", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(
			"(u.first_name ILIKE $%d OR u.last_name ILIKE $%d OR u.username ILIKE $%d OR p.research_domains ILIKE $%d)", n, n, n, n))
	}

	var sb strings.Builder
	sb.WriteString(professorSelect)
	if len(conditions) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conditions, " AND "))
	}
	sb.WriteString(" ORDER BY ")
	if col, ok := professorOrderColumns[filter.Ordering.Field]; ok {
		sb.WriteString(col)
		if filter.Ordering.Descending {
			sb.WriteString(" DESC")
		}
		sb.WriteString(", ")
	}
	sb.WriteString("p.user_id ASC")

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list professors: %w", err)
	}
	defer rows.Close()

	profiles := make([]*models.ProfessorProfile, 0)
	for rows.Next() {
		p, scanErr := scanProfessorRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan professor: %w", scanErr)
		}
		profiles = append(profiles, p)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *postgresProfessorRepository) Update(ctx context.Context, p *models.ProfessorProfile) error {
	query := `
		UPDATE professor_profiles SET
			research_domains = $1,
			bio = $2,
			total_slots = $3,
			filled_slots = $4
		WHERE user_id = $5`

	result, err := r.db.ExecContext(ctx, query, p.ResearchDomains, p.Bio, p.TotalSlots, p.FilledSlots, p.UserID)
	if err != nil {
		return translateProfessorError(err)
	}
	return checkAffectedRows(result, ErrProfessorNotFound)
}

func (r *postgresProfessorRepository) SlotTotals(ctx context.Context) (int, int, error) {
	var total, filled int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_slots), 0), COALESCE(SUM(filled_slots), 0) FROM professor_profiles`,
	).Scan(&total, &filled)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum professor slots: %w", err)
	}
	return total, filled, nil
}

func (r *postgresProfessorRepository) findOne(ctx context.Context, query string, args ...interface{}) (*models.ProfessorProfile, error) {
	p, err := scanProfessorRow(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfessorNotFound
		}
		return nil, fmt.Errorf("failed to find professor: %w", err)
	}
	return p, nil
}

func scanProfessorRow(row rowScanner) (*models.ProfessorProfile, error) {
	p := &models.ProfessorProfile{User: &models.User{}}
	err := row.Scan(
		&p.UserID,
		&p.ResearchDomains,
		&p.Bio,
		&p.TotalSlots,
		&p.FilledSlots,
		&p.User.ID,
		&p.User.Username,
		&p.User.Email,
		&p.User.FirstName,
		&p.User.LastName,
		&p.User.PhoneNumber,
		&p.User.Department,
		&p.User.Role,
		&p.User.PasswordHash,
		&p.User.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.User.PasswordHash = ""
	return p, nil
}

func translateProfessorError(err error) error {
	if code, constraint, ok := pqConstraint(err); ok {
		switch code {
		case pqCheckViolation:
			if constraint == "chk_professor_slots" {
				return ErrProfessorSlotsInvalid
			}
		case pqForeignKeyViolation, pqUniqueViolation:
			return ErrProfessorUserInvalid
		}
	}
	return fmt.Errorf("professor query failed: %w", err)
}
