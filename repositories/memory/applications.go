package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/thegupta1694/capstone/models"
	"github.com/thegupta1694/capstone/repositories"
)

type applicationRepository struct {
	b binding
}

func (r *applicationRepository) Create(ctx context.Context, a *models.Application) error {
	return r.b.run(ctx, func(st *state) error {
		if _, ok := st.teams[a.TeamID]; !ok {
			return repositories.ErrApplicationInvalid
		}
		if _, ok := st.professors[a.ProfessorID]; !ok {
			return repositories.ErrApplicationInvalid
		}
		for _, existing := range st.applications {
			if existing.TeamID == a.TeamID && existing.ProfessorID == a.ProfessorID {
				return repositories.ErrApplicationConflict
			}
		}
		st.lastApplicationID++
		a.ID = st.lastApplicationID
		a.SubmittedAt = r.b.now()
		st.applications[a.ID] = copyApplication(a)
		return nil
	})
}

func (r *applicationRepository) GetByID(ctx context.Context, id int) (*models.Application, error) {
	var out *models.Application
	err := r.b.run(ctx, func(st *state) error {
		a, ok := st.applications[id]
		if !ok {
			return repositories.ErrApplicationNotFound
		}
		out = copyApplication(a)
		return nil
	})
	return out, err
}

func (r *applicationRepository) GetByIDForUpdate(ctx context.Context, id int) (*models.Application, error) {
	return r.GetByID(ctx, id)
}

func (r *applicationRepository) Exists(ctx context.Context, teamID, professorID int) (bool, error) {
	var exists bool
	err := r.b.run(ctx, func(st *state) error {
		for _, a := range st.applications {
			if a.TeamID == teamID && a.ProfessorID == professorID {
				exists = true
				break
			}
		}
		return nil
	})
	return exists, err
}

func (r *applicationRepository) CountPendingByTeam(ctx context.Context, teamID int) (int, error) {
	var n int
	err := r.b.run(ctx, func(st *state) error {
		for _, a := range st.applications {
			if a.TeamID == teamID && a.Status == models.ApplicationPending {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *applicationRepository) UpdateResolution(ctx context.Context, a *models.Application) error {
	return r.b.run(ctx, func(st *state) error {
		stored, ok := st.applications[a.ID]
		if !ok {
			return repositories.ErrApplicationNotFound
		}
		stored.Status = a.Status
		stored.ProfessorResponse = copyString(a.ProfessorResponse)
		stored.RespondedAt = copyTime(a.RespondedAt)
		return nil
	})
}

func (r *applicationRepository) WithdrawPendingByTeam(ctx context.Context, teamID, exceptID int, at time.Time) (int64, error) {
	var n int64
	err := r.b.run(ctx, func(st *state) error {
		for id, a := range st.applications {
			if a.TeamID != teamID || id == exceptID || a.Status != models.ApplicationPending {
				continue
			}
			a.Status = models.ApplicationWithdrawn
			a.RespondedAt = copyTime(&at)
			n++
		}
		return nil
	})
	return n, err
}

func (r *applicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]*models.Application, error) {
	out := make([]*models.Application, 0)
	err := r.b.run(ctx, func(st *state) error {
		search := strings.ToLower(filter.Search)
		for _, a := range st.applications {
			if filter.TeamID != nil && a.TeamID != *filter.TeamID {
				continue
			}
			if filter.ProfessorID != nil && a.ProfessorID != *filter.ProfessorID {
				continue
			}
			if filter.Status != nil && a.Status != *filter.Status {
				continue
			}
			team, ok := st.teams[a.TeamID]
			if !ok {
				continue
			}
			prof, ok := st.professors[a.ProfessorID]
			if !ok {
				continue
			}
			profView := st.professorView(prof)
			if profView.User == nil {
				continue
			}
			if filter.Department != "" && (profView.User.Department == nil || !strings.EqualFold(*profView.User.Department, filter.Department)) {
				continue
			}
			if search != "" && !containsAny(search, team.Name, profView.User.FirstName, profView.User.LastName) {
				continue
			}
			c := copyApplication(a)
			c.Team = copyTeam(team)
			c.Professor = profView
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	field, desc := filter.Ordering.Field, filter.Ordering.Descending
	if field != "submitted_at" && field != "responded_at" {
		field, desc = "submitted_at", true
	}
	slices.SortFunc(out, func(a, b *models.Application) int {
		var c int
		if field == "responded_at" {
			c = compareNullsLast(a.RespondedAt, b.RespondedAt, desc)
		} else {
			c = a.SubmittedAt.Compare(b.SubmittedAt)
			if desc {
				c = -c
			}
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (r *applicationRepository) CountByStatus(ctx context.Context) (map[models.ApplicationStatus]int, error) {
	counts := make(map[models.ApplicationStatus]int)
	err := r.b.run(ctx, func(st *state) error {
		for _, a := range st.applications {
			counts[a.Status]++
		}
		return nil
	})
	return counts, err
}

func compareNullsLast(a, b *time.Time, desc bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	c := a.Compare(*b)
	if desc {
		c = -c
	}
	return c
}
