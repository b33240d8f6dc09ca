// Package memory is an in-process repositories.Store. It enforces the same
// unique constraints and cascades as the SQL schema and is used by tests and
// by STORE_DRIVER=memory.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/thegupta1694/capstone/repositories"
)

// Store serializes every transaction behind one mutex. WithinTx works on a
// cloned state and swaps it in only when fn succeeds.
//
// fn must use the tx repositories it is given: calling the Store itself from
// inside WithinTx deadlocks.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

var _ repositories.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		st:  newState(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Users() repositories.UserRepository {
	return &userRepository{s.auto()}
}

func (s *Store) Professors() repositories.ProfessorRepository {
	return &professorRepository{s.auto()}
}

func (s *Store) Teams() repositories.TeamRepository {
	return &teamRepository{s.auto()}
}

func (s *Store) Memberships() repositories.MembershipRepository {
	return &membershipRepository{s.auto()}
}

func (s *Store) Applications() repositories.ApplicationRepository {
	return &applicationRepository{s.auto()}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repositories.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(ctx, &txRepositories{binding{store: s, tx: snapshot}}); err != nil {
		return err
	}
	s.st = snapshot
	return nil
}

func (s *Store) auto() binding {
	return binding{store: s}
}

// binding routes a repository call either to a transaction snapshot or, when
// tx is nil, to the live state under the store mutex.
type binding struct {
	store *Store
	tx    *state
}

func (b binding) run(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.tx != nil {
		return fn(b.tx)
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	return fn(b.store.st)
}

func (b binding) now() time.Time {
	return b.store.now()
}

type txRepositories struct {
	b binding
}

func (t *txRepositories) Users() repositories.UserRepository { return &userRepository{t.b} }
func (t *txRepositories) Professors() repositories.ProfessorRepository {
	return &professorRepository{t.b}
}
func (t *txRepositories) Teams() repositories.TeamRepository { return &teamRepository{t.b} }
func (t *txRepositories) Memberships() repositories.MembershipRepository {
	return &membershipRepository{t.b}
}
func (t *txRepositories) Applications() repositories.ApplicationRepository {
	return &applicationRepository{t.b}
}
