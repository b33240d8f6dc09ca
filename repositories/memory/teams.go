package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/thegupta1694/capstone/models"
	"github.com/thegupta1694/capstone/repositories"
)

type teamRepository struct {
	b binding
}

func (r *teamRepository) Create(ctx context.Context, team *models.Team) error {
	return r.b.run(ctx, func(st *state) error {
		for _, t := range st.teams {
			if t.Name == team.Name {
				return repositories.ErrTeamNameConflict
			}
		}
		if _, ok := st.users[team.LeaderID]; !ok {
			return repositories.ErrTeamLeaderInvalid
		}
		st.lastTeamID++
		now := r.b.now()
		team.ID = st.lastTeamID
		team.CreatedAt = now
		team.UpdatedAt = now
		st.teams[team.ID] = copyTeam(team)
		return nil
	})
}

func (r *teamRepository) GetByID(ctx context.Context, id int) (*models.Team, error) {
	var out *models.Team
	err := r.b.run(ctx, func(st *state) error {
		t, ok := st.teams[id]
		if !ok {
			return repositories.ErrTeamNotFound
		}
		out = copyTeam(t)
		return nil
	})
	return out, err
}

func (r *teamRepository) GetByIDForUpdate(ctx context.Context, id int) (*models.Team, error) {
	return r.GetByID(ctx, id)
}

func (r *teamRepository) GetByLeaderID(ctx context.Context, leaderID int) (*models.Team, error) {
	var out *models.Team
	err := r.b.run(ctx, func(st *state) error {
		for _, t := range st.teams {
			if t.LeaderID == leaderID {
				out = copyTeam(t)
				return nil
			}
		}
		return repositories.ErrTeamNotFound
	})
	return out, err
}

func (r *teamRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.b.run(ctx, func(st *state) error {
		for _, t := range st.teams {
			if t.Name == name {
				exists = true
				break
			}
		}
		return nil
	})
	return exists, err
}

func (r *teamRepository) List(ctx context.Context) ([]*models.Team, error) {
	out := make([]*models.Team, 0)
	err := r.b.run(ctx, func(st *state) error {
		for _, t := range st.teams {
			out = append(out, copyTeam(t))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b *models.Team) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (r *teamRepository) UpdateLogo(ctx context.Context, id int, logoKey *string) error {
	return r.b.run(ctx, func(st *state) error {
		t, ok := st.teams[id]
		if !ok {
			return repositories.ErrTeamNotFound
		}
		t.LogoKey = copyString(logoKey)
		t.UpdatedAt = r.b.now()
		return nil
	})
}

// Delete cascades to the team's memberships and applications.
func (r *teamRepository) Delete(ctx context.Context, id int) error {
	return r.b.run(ctx, func(st *state) error {
		if _, ok := st.teams[id]; !ok {
			return repositories.ErrTeamNotFound
		}
		delete(st.teams, id)
		for mid, m := range st.memberships {
			if m.TeamID == id {
				delete(st.memberships, mid)
			}
		}
		for aid, a := range st.applications {
			if a.TeamID == id {
				delete(st.applications, aid)
			}
		}
		return nil
	})
}

func (r *teamRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.b.run(ctx, func(st *state) error {
		n = len(st.teams)
		return nil
	})
	return n, err
}
