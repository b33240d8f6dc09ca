package memory

import (
	"time"

	"github.com/thegupta1694/capstone/models"
)

// state holds every row of the store. Values are owned by the state and are
// never handed out directly; readers receive copies.
type state struct {
	users        map[int]*models.User
	professors   map[int]*models.ProfessorProfile
	teams        map[int]*models.Team
	memberships  map[int]*models.TeamMembership
	applications map[int]*models.Application

	lastUserID        int
	lastTeamID        int
	lastMembershipID  int
	lastApplicationID int
}

func newState() *state {
	return &state{
		users:        make(map[int]*models.User),
		professors:   make(map[int]*models.ProfessorProfile),
		teams:        make(map[int]*models.Team),
		memberships:  make(map[int]*models.TeamMembership),
		applications: make(map[int]*models.Application),
	}
}

func (s *state) clone() *state {
	c := &state{
		users:             make(map[int]*models.User, len(s.users)),
		professors:        make(map[int]*models.ProfessorProfile, len(s.professors)),
		teams:             make(map[int]*models.Team, len(s.teams)),
		memberships:       make(map[int]*models.TeamMembership, len(s.memberships)),
		applications:      make(map[int]*models.Application, len(s.applications)),
		lastUserID:        s.lastUserID,
		lastTeamID:        s.lastTeamID,
		lastMembershipID:  s.lastMembershipID,
		lastApplicationID: s.lastApplicationID,
	}
	for id, u := range s.users {
		c.users[id] = copyUser(u)
	}
	for id, p := range s.professors {
		c.professors[id] = copyProfessor(p)
	}
	for id, t := range s.teams {
		c.teams[id] = copyTeam(t)
	}
	for id, m := range s.memberships {
		c.memberships[id] = copyMembership(m)
	}
	for id, a := range s.applications {
		c.applications[id] = copyApplication(a)
	}
	return c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyUser(u *models.User) *models.User {
	c := *u
	c.PhoneNumber = copyString(u.PhoneNumber)
	c.Department = copyString(u.Department)
	return &c
}

// publicUser is the copy handed to readers that join users into another row.
func publicUser(u *models.User) *models.User {
	c := copyUser(u)
	c.PasswordHash = ""
	return c
}

func copyProfessor(p *models.ProfessorProfile) *models.ProfessorProfile {
	c := *p
	c.Bio = copyString(p.Bio)
	c.User = nil
	return &c
}

func copyTeam(t *models.Team) *models.Team {
	return &models.Team{
		ID:        t.ID,
		Name:      t.Name,
		LeaderID:  t.LeaderID,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
		LogoKey:   copyString(t.LogoKey),
	}
}

func copyMembership(m *models.TeamMembership) *models.TeamMembership {
	return &models.TeamMembership{
		ID:          m.ID,
		TeamID:      m.TeamID,
		UserID:      m.UserID,
		Status:      m.Status,
		InvitedAt:   m.InvitedAt,
		RespondedAt: copyTime(m.RespondedAt),
	}
}

func copyApplication(a *models.Application) *models.Application {
	return &models.Application{
		ID:                a.ID,
		TeamID:            a.TeamID,
		ProfessorID:       a.ProfessorID,
		Status:            a.Status,
		Message:           copyString(a.Message),
		ProfessorResponse: copyString(a.ProfessorResponse),
		SubmittedAt:       a.SubmittedAt,
		RespondedAt:       copyTime(a.RespondedAt),
	}
}

// professorView joins the owning user into a professor copy.
func (s *state) professorView(p *models.ProfessorProfile) *models.ProfessorProfile {
	c := copyProfessor(p)
	if u, ok := s.users[p.UserID]; ok {
		c.User = publicUser(u)
	}
	return c
}
