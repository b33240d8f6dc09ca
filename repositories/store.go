package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/thegupta1694/capstone/models"
)

// SQLExecutor is satisfied by both *sql.DB and *sql.Tx.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int) (*models.User, error)
	// GetByIDForUpdate locks the user row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id int) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	List(ctx context.Context, filter models.UserFilter) ([]*models.User, error)
	CountByRole(ctx context.Context) (map[models.UserRole]int, error)
}

type ProfessorRepository interface {
	Create(ctx context.Context, profile *models.ProfessorProfile) error
	GetByUserID(ctx context.Context, userID int) (*models.ProfessorProfile, error)
	GetByUserIDForUpdate(ctx context.Context, userID int) (*models.ProfessorProfile, error)
	List(ctx context.Context, filter models.ProfessorFilter) ([]*models.ProfessorProfile, error)
	Update(ctx context.Context, profile *models.ProfessorProfile) error
	SlotTotals(ctx context.Context) (total int, filled int, err error)
}

type TeamRepository interface {
	Create(ctx context.Context, team *models.Team) error
	GetByID(ctx context.Context, id int) (*models.Team, error)
	GetByIDForUpdate(ctx context.Context, id int) (*models.Team, error)
	GetByLeaderID(ctx context.Context, leaderID int) (*models.Team, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	List(ctx context.Context) ([]*models.Team, error)
	UpdateLogo(ctx context.Context, id int, logoKey *string) error
	// Delete removes the team; memberships and applications go with it.
	Delete(ctx context.Context, id int) error
	Count(ctx context.Context) (int, error)
}

type MembershipRepository interface {
	Create(ctx context.Context, m *models.TeamMembership) error
	GetByID(ctx context.Context, id int) (*models.TeamMembership, error)
	GetByTeamAndUser(ctx context.Context, teamID, userID int) (*models.TeamMembership, error)
	GetAcceptedByUser(ctx context.Context, userID int) (*models.TeamMembership, error)
	ListByTeam(ctx context.Context, teamID int) ([]*models.TeamMembership, error)
	ListPendingByUser(ctx context.Context, userID int) ([]*models.TeamMembership, error)
	CountAccepted(ctx context.Context, teamID int) (int, error)
	UpdateStatus(ctx context.Context, id int, status models.MembershipStatus, respondedAt *time.Time) error
	// Reopen resets a resolved invitation to pending with a fresh invited_at.
	Reopen(ctx context.Context, id int, invitedAt time.Time) error
	Delete(ctx context.Context, id int) error
}

type ApplicationRepository interface {
	Create(ctx context.Context, a *models.Application) error
	GetByID(ctx context.Context, id int) (*models.Application, error)
	GetByIDForUpdate(ctx context.Context, id int) (*models.Application, error)
	Exists(ctx context.Context, teamID, professorID int) (bool, error)
	CountPendingByTeam(ctx context.Context, teamID int) (int, error)
	UpdateResolution(ctx context.Context, a *models.Application) error
	// WithdrawPendingByTeam withdraws every pending application of the team
	// except exceptID and returns how many rows changed.
	WithdrawPendingByTeam(ctx context.Context, teamID, exceptID int, at time.Time) (int64, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]*models.Application, error)
	CountByStatus(ctx context.Context) (map[models.ApplicationStatus]int, error)
}

// Repositories groups every repository bound to one executor.
type Repositories interface {
	Users() UserRepository
	Professors() ProfessorRepository
	Teams() TeamRepository
	Memberships() MembershipRepository
	Applications() ApplicationRepository
}

// Store gives non-transactional access through the embedded Repositories
// and runs multi-statement operations through WithinTx. fn sees
// repositories bound to the transaction; a non-nil error rolls it back.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
}
