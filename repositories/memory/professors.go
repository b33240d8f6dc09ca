package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/thegupta1694/capstone/models"
	"github.com/thegupta1694/capstone/repositories"
)

type professorRepository struct {
	b binding
}

func (r *professorRepository) Create(ctx context.Context, p *models.ProfessorProfile) error {
	return r.b.run(ctx, func(st *state) error {
		if _, ok := st.users[p.UserID]; !ok {
			return repositories.ErrProfessorUserInvalid
		}
		if _, ok := st.professors[p.UserID]; ok {
			return repositories.ErrProfessorUserInvalid
		}
		if !slotsValid(p) {
			return repositories.ErrProfessorSlotsInvalid
		}
		st.professors[p.UserID] = copyProfessor(p)
		return nil
	})
}

func (r *professorRepository) GetByUserID(ctx context.Context, userID int) (*models.ProfessorProfile, error) {
	var out *models.ProfessorProfile
	err := r.b.run(ctx, func(st *state) error {
		p, ok := st.professors[userID]
		if !ok {
			return repositories.ErrProfessorNotFound
		}
		out = st.professorView(p)
		return nil
	})
	return out, err
}

func (r *professorRepository) GetByUserIDForUpdate(ctx context.Context, userID int) (*models.ProfessorProfile, error) {
	return r.GetByUserID(ctx, userID)
}

func (r *professorRepository) List(ctx context.Context, filter models.ProfessorFilter) ([]*models.ProfessorProfile, error) {
	out := make([]*models.ProfessorProfile, 0)
	err := r.b.run(ctx, func(st *state) error {
		search := strings.ToLower(filter.Search)
		for _, p := range st.professors {
			view := st.professorView(p)
			if view.User == nil {
				continue
			}
			if filter.Department != "" && (view.User.Department == nil || !strings.EqualFold(*view.User.Department, filter.Department)) {
				continue
			}
			if search != "" && !containsAny(search,
				view.User.FirstName, view.User.LastName, view.User.Username, view.ResearchDomains) {
				continue
			}
			out = append(out, view)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	key := professorSortKey(filter.Ordering.Field)
	slices.SortStableFunc(out, func(a, b *models.ProfessorProfile) int {
		if key != nil {
			c := key(a, b)
			if filter.Ordering.Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	return out, nil
}

func (r *professorRepository) Update(ctx context.Context, p *models.ProfessorProfile) error {
	return r.b.run(ctx, func(st *state) error {
		stored, ok := st.professors[p.UserID]
		if !ok {
			return repositories.ErrProfessorNotFound
		}
		if !slotsValid(p) {
			return repositories.ErrProfessorSlotsInvalid
		}
		stored.ResearchDomains = p.ResearchDomains
		stored.Bio = copyString(p.Bio)
		stored.TotalSlots = p.TotalSlots
		stored.FilledSlots = p.FilledSlots
		return nil
	})
}

func (r *professorRepository) SlotTotals(ctx context.Context) (int, int, error) {
	var total, filled int
	err := r.b.run(ctx, func(st *state) error {
		for _, p := range st.professors {
			total += p.TotalSlots
			filled += p.FilledSlots
		}
		return nil
	})
	return total, filled, err
}

// slotsValid mirrors chk_professor_slots.
func slotsValid(p *models.ProfessorProfile) bool {
	return p.TotalSlots > 0 && p.FilledSlots >= 0 && p.FilledSlots <= p.TotalSlots
}

func professorSortKey(field string) func(a, b *models.ProfessorProfile) int {
	switch field {
	case "first_name":
		return func(a, b *models.ProfessorProfile) int { return strings.Compare(a.User.FirstName, b.User.FirstName) }
	case "last_name":
		return func(a, b *models.ProfessorProfile) int { return strings.Compare(a.User.LastName, b.User.LastName) }
	case "total_slots":
		return func(a, b *models.ProfessorProfile) int { return cmp.Compare(a.TotalSlots, b.TotalSlots) }
	case "filled_slots":
		return func(a, b *models.ProfessorProfile) int { return cmp.Compare(a.FilledSlots, b.FilledSlots) }
	}
	return nil
}

func containsAny(needle string, haystacks ...string) bool {
	for _, h := range haystacks {
		if strings.Contains(strings.ToLower(h), needle) {
			return true
		}
	}
	return false
}
