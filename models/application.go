package models

import (
	"errors"
	"fmt"
	"time"
)

// MaxPendingApplications bounds how many bids a team may have open at once.
const MaxPendingApplications = 4

var ErrApplicationResolved = errors.New("application already resolved")

type ApplicationStatus string

const (
	ApplicationPending   ApplicationStatus = "pending"
	ApplicationAccepted  ApplicationStatus = "accepted"
	ApplicationRejected  ApplicationStatus = "rejected"
	ApplicationWithdrawn ApplicationStatus = "withdrawn"
)

func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationPending, ApplicationAccepted, ApplicationRejected, ApplicationWithdrawn:
		return true
	}
	return false
}

func (s ApplicationStatus) IsTerminal() bool {
	return s == ApplicationAccepted || s == ApplicationRejected || s == ApplicationWithdrawn
}

type Application struct {
	ID                int               `json:"id" db:"id"`
	TeamID            int               `json:"team_id" db:"team_id"`
	ProfessorID       int               `json:"professor_id" db:"professor_id"`
	Status            ApplicationStatus `json:"status" db:"status"`
	Message           *string           `json:"message,omitempty" db:"message"`
	ProfessorResponse *string           `json:"professor_response,omitempty" db:"professor_response"`
	SubmittedAt       time.Time         `json:"submitted_at" db:"submitted_at"`
	RespondedAt       *time.Time        `json:"responded_at,omitempty" db:"responded_at"`

	Team      *Team             `json:"team,omitempty" db:"-"`
	Professor *ProfessorProfile `json:"professor,omitempty" db:"-"`
}

// Resolve stamps a terminal status onto a pending application.
func (a *Application) Resolve(status ApplicationStatus, response *string, at time.Time) error {
	if a.Status != ApplicationPending {
		return fmt.Errorf("%w: application %d is %s", ErrApplicationResolved, a.ID, a.Status)
	}
	if !status.IsTerminal() {
		return fmt.Errorf("invalid application status %q", status)
	}
	a.Status = status
	a.RespondedAt = &at
	if response != nil {
		a.ProfessorResponse = response
	}
	return nil
}

type ApplicationFilter struct {
	TeamID      *int
	ProfessorID *int
	Status      *ApplicationStatus
	Department  string
	Search      string // team name, professor first/last name
	Ordering    Ordering
}
