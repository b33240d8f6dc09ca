package models

import (
	"errors"
	"fmt"
	"time"
)

// MaxTeamMembers counts accepted memberships, the leader included.
const MaxTeamMembers = 4

const MaxTeamNameLength = 100

var ErrMembershipResolved = errors.New("membership invitation already resolved")

type MembershipStatus string

const (
	MembershipPending  MembershipStatus = "pending"
	MembershipAccepted MembershipStatus = "accepted"
	MembershipRejected MembershipStatus = "rejected"
)

func (s MembershipStatus) IsDecision() bool {
	return s == MembershipAccepted || s == MembershipRejected
}

type Team struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	LeaderID  int       `json:"leader_id" db:"leader_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	LogoKey *string `json:"-" db:"logo_key"`
	LogoURL *string `json:"logo_url,omitempty" db:"-"`

	Leader      *User             `json:"leader,omitempty" db:"-"`
	Members     []*TeamMembership `json:"members,omitempty" db:"-"`
	MemberCount int               `json:"member_count" db:"-"`
	IsFull      bool              `json:"is_full" db:"-"`

	// Зависят от того, кто запрашивает команду
	CanInvite bool `json:"can_invite" db:"-"`
	CanLeave  bool `json:"can_leave" db:"-"`
}

// SetMemberCount fills the derived roster fields.
func (t *Team) SetMemberCount(n int) {
	t.MemberCount = n
	t.IsFull = IsTeamFull(n)
}

// SetCallerFlags derives CanInvite and CanLeave for userID. It needs Members
// and MemberCount to be filled first.
func (t *Team) SetCallerFlags(userID int) {
	isLeader := t.LeaderID == userID
	t.CanInvite = isLeader && !t.IsFull
	t.CanLeave = false
	if isLeader {
		return
	}
	for _, m := range t.Members {
		if m.UserID == userID && m.Status == MembershipAccepted {
			t.CanLeave = true
			return
		}
	}
}

func IsTeamFull(acceptedMembers int) bool {
	return acceptedMembers >= MaxTeamMembers
}

type TeamMembership struct {
	ID          int              `json:"id" db:"id"`
	TeamID      int              `json:"team_id" db:"team_id"`
	UserID      int              `json:"user_id" db:"user_id"`
	Status      MembershipStatus `json:"status" db:"status"`
	InvitedAt   time.Time        `json:"invited_at" db:"invited_at"`
	RespondedAt *time.Time       `json:"responded_at,omitempty" db:"responded_at"`

	User     *User `json:"user,omitempty" db:"-"`
	Team     *Team `json:"team,omitempty" db:"-"`
	IsLeader bool  `json:"is_leader" db:"-"`
}

// Resolve moves a pending invitation into its terminal state.
func (m *TeamMembership) Resolve(decision MembershipStatus, at time.Time) error {
	if m.Status != MembershipPending {
		return fmt.Errorf("%w: membership %d is %s", ErrMembershipResolved, m.ID, m.Status)
	}
	if !decision.IsDecision() {
		return fmt.Errorf("invalid membership decision %q", decision)
	}
	m.Status = decision
	m.RespondedAt = &at
	return nil
}
