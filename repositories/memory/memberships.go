package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/thegupta1694/capstone/models"
	"github.com/thegupta1694/capstone/repositories"
)

type membershipRepository struct {
	b binding
}

func (r *membershipRepository) Create(ctx context.Context, m *models.TeamMembership) error {
	return r.b.run(ctx, func(st *state) error {
		if _, ok := st.teams[m.TeamID]; !ok {
			return repositories.ErrMembershipInvalid
		}
		if _, ok := st.users[m.UserID]; !ok {
			return repositories.ErrMembershipInvalid
		}
		for _, existing := range st.memberships {
			if existing.TeamID == m.TeamID && existing.UserID == m.UserID {
				return repositories.ErrMembershipConflict
			}
		}
		if m.Status == models.MembershipAccepted && hasAcceptedMembership(st, m.UserID, 0) {
			return repositories.ErrMembershipConflict
		}
		st.lastMembershipID++
		m.ID = st.lastMembershipID
		m.InvitedAt = r.b.now()
		st.memberships[m.ID] = copyMembership(m)
		return nil
	})
}

func (r *membershipRepository) GetByID(ctx context.Context, id int) (*models.TeamMembership, error) {
	var out *models.TeamMembership
	err := r.b.run(ctx, func(st *state) error {
		m, ok := st.memberships[id]
		if !ok {
			return repositories.ErrMembershipNotFound
		}
		out = copyMembership(m)
		return nil
	})
	return out, err
}

func (r *membershipRepository) GetByTeamAndUser(ctx context.Context, teamID, userID int) (*models.TeamMembership, error) {
	return r.findFirst(ctx, func(m *models.TeamMembership) bool {
		return m.TeamID == teamID && m.UserID == userID
	})
}

func (r *membershipRepository) GetAcceptedByUser(ctx context.Context, userID int) (*models.TeamMembership, error) {
	return r.findFirst(ctx, func(m *models.TeamMembership) bool {
		return m.UserID == userID && m.Status == models.MembershipAccepted
	})
}

func (r *membershipRepository) ListByTeam(ctx context.Context, teamID int) ([]*models.TeamMembership, error) {
	out := make([]*models.TeamMembership, 0)
	err := r.b.run(ctx, func(st *state) error {
		for _, m := range st.memberships {
			if m.TeamID != teamID {
				continue
			}
			c := copyMembership(m)
			if u, ok := st.users[m.UserID]; ok {
				c.User = publicUser(u)
			}
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b *models.TeamMembership) int {
		if c := a.InvitedAt.Compare(b.InvitedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r *membershipRepository) ListPendingByUser(ctx context.Context, userID int) ([]*models.TeamMembership, error) {
	out := make([]*models.TeamMembership, 0)
	err := r.b.run(ctx, func(st *state) error {
		for _, m := range st.memberships {
			if m.UserID != userID || m.Status != models.MembershipPending {
				continue
			}
			c := copyMembership(m)
			if t, ok := st.teams[m.TeamID]; ok {
				c.Team = copyTeam(t)
			}
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b *models.TeamMembership) int {
		if c := b.InvitedAt.Compare(a.InvitedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (r *membershipRepository) CountAccepted(ctx context.Context, teamID int) (int, error) {
	var n int
	err := r.b.run(ctx, func(st *state) error {
		for _, m := range st.memberships {
			if m.TeamID == teamID && m.Status == models.MembershipAccepted {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *membershipRepository) UpdateStatus(ctx context.Context, id int, status models.MembershipStatus, respondedAt *time.Time) error {
	return r.b.run(ctx, func(st *state) error {
		m, ok := st.memberships[id]
		if !ok {
			return repositories.ErrMembershipNotFound
		}
		if status == models.MembershipAccepted && hasAcceptedMembership(st, m.UserID, id) {
			return repositories.ErrMembershipConflict
		}
		m.Status = status
		m.RespondedAt = copyTime(respondedAt)
		return nil
	})
}

func (r *membershipRepository) Reopen(ctx context.Context, id int, invitedAt time.Time) error {
	return r.b.run(ctx, func(st *state) error {
		m, ok := st.memberships[id]
		if !ok {
			return repositories.ErrMembershipNotFound
		}
		m.Status = models.MembershipPending
		m.InvitedAt = invitedAt
		m.RespondedAt = nil
		return nil
	})
}

func (r *membershipRepository) Delete(ctx context.Context, id int) error {
	return r.b.run(ctx, func(st *state) error {
		if _, ok := st.memberships[id]; !ok {
			return repositories.ErrMembershipNotFound
		}
		delete(st.memberships, id)
		return nil
	})
}

func (r *membershipRepository) findFirst(ctx context.Context, match func(*models.TeamMembership) bool) (*models.TeamMembership, error) {
	var out *models.TeamMembership
	err := r.b.run(ctx, func(st *state) error {
		for _, m := range st.memberships {
			if match(m) {
				out = copyMembership(m)
				return nil
			}
		}
		return repositories.ErrMembershipNotFound
	})
	return out, err
}

// hasAcceptedMembership mirrors uniq_accepted_membership_per_user.
func hasAcceptedMembership(st *state, userID, exceptID int) bool {
	for id, m := range st.memberships {
		if id != exceptID && m.UserID == userID && m.Status == models.MembershipAccepted {
			return true
		}
	}
	return false
}
