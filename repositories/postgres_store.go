package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/thegupta1694/capstone/metrics"
)

const maxTxAttempts = 3

type postgresRepositories struct {
	users        UserRepository
	professors   ProfessorRepository
	teams        TeamRepository
	memberships  MembershipRepository
	applications ApplicationRepository
}

func newPostgresRepositories(exec SQLExecutor) *postgresRepositories {
	return &postgresRepositories{
		users:        &postgresUserRepository{db: exec},
		professors:   &postgresProfessorRepository{db: exec},
		teams:        &postgresTeamRepository{db: exec},
		memberships:  &postgresMembershipRepository{db: exec},
		applications: &postgresApplicationRepository{db: exec},
	}
}

func (r *postgresRepositories) Users() UserRepository               { return r.users }
func (r *postgresRepositories) Professors() ProfessorRepository     { return r.professors }
func (r *postgresRepositories) Teams() TeamRepository               { return r.teams }
func (r *postgresRepositories) Memberships() MembershipRepository   { return r.memberships }
func (r *postgresRepositories) Applications() ApplicationRepository { return r.applications }

type postgresStore struct {
	*postgresRepositories
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore returns a Store backed by PostgreSQL. Transactions run at
// READ COMMITTED; repositories take row locks with SELECT ... FOR UPDATE.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &postgresStore{
		postgresRepositories: newPostgresRepositories(db),
		db:                   db,
		logger:               logger,
	}
}

// WithinTx retries fn on serialization failures and deadlocks. Every other
// error, domain errors included, is returned as is after the rollback.
func (s *postgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 20 * time.Millisecond
	expBackoff.MaxInterval = 250 * time.Millisecond

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := s.runTx(ctx, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if IsRetryable(err) && attempt < maxTxAttempts {
			metrics.TxRetries.Inc()
			s.logger.WarnContext(ctx, "transaction conflict, retrying", slog.Int("attempt", attempt), slog.Any("error", err))
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(expBackoff), backoff.WithMaxTries(maxTxAttempts))
	return err
}

func (s *postgresStore) runTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) (txErr error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				txErr = fmt.Errorf("%w (rollback also failed: %v)", txErr, rbErr)
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			txErr = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	return fn(ctx, newPostgresRepositories(tx))
}
