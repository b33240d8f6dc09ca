package models

import "fmt"

// Principal is the authenticated caller of a core operation. The concrete
// type carries the role, so scoping decisions switch on the variant instead
// of comparing role strings.
type Principal interface {
	UserID() int
	Role() UserRole
	isPrincipal()
}

type StudentPrincipal struct {
	ID int
}

func (p StudentPrincipal) UserID() int  { return p.ID }
func (StudentPrincipal) Role() UserRole { return RoleStudent }
func (StudentPrincipal) isPrincipal()   {}

// TeacherPrincipal owns the professor profile keyed by the same user id.
type TeacherPrincipal struct {
	ID int
}

func (p TeacherPrincipal) UserID() int      { return p.ID }
func (p TeacherPrincipal) ProfessorID() int { return p.ID }
func (TeacherPrincipal) Role() UserRole     { return RoleTeacher }
func (TeacherPrincipal) isPrincipal()       {}

type AdminPrincipal struct {
	ID int
}

func (p AdminPrincipal) UserID() int  { return p.ID }
func (AdminPrincipal) Role() UserRole { return RoleAdmin }
func (AdminPrincipal) isPrincipal()   {}

// NewPrincipal builds the variant matching role.
func NewPrincipal(userID int, role UserRole) (Principal, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id %d", userID)
	}
	switch role {
	case RoleStudent:
		return StudentPrincipal{ID: userID}, nil
	case RoleTeacher:
		return TeacherPrincipal{ID: userID}, nil
	case RoleAdmin:
		return AdminPrincipal{ID: userID}, nil
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}
}

func IsAdmin(p Principal) bool {
	_, ok := p.(AdminPrincipal)
	return ok
}
