package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrSlotsExhausted    = errors.New("no supervision slots left")
	ErrInvalidTotalSlots = errors.New("total slots must be positive and not below filled slots")
)

// ProfessorProfile is the slot account of a teacher. It shares its primary
// key with the owning user.
type ProfessorProfile struct {
	UserID          int     `json:"user_id" db:"user_id"`
	ResearchDomains string  `json:"research_domains" db:"research_domains"` // comma-separated
	Bio             *string `json:"bio,omitempty" db:"bio"`
	TotalSlots      int     `json:"total_slots" db:"total_slots"`
	FilledSlots     int     `json:"filled_slots" db:"filled_slots"`

	User *User `json:"user,omitempty" db:"-"`
}

func (p *ProfessorProfile) AvailableSlots() int {
	return p.TotalSlots - p.FilledSlots
}

func (p *ProfessorProfile) CanAccept() bool {
	return p.AvailableSlots() > 0
}

// ReserveOne consumes one slot. Callers must hold a lock on the profile row
// for the transaction that moves an application into accepted.
func (p *ProfessorProfile) ReserveOne() error {
	if !p.CanAccept() {
		return fmt.Errorf("%w: %d of %d filled", ErrSlotsExhausted, p.FilledSlots, p.TotalSlots)
	}
	p.FilledSlots++
	return nil
}

func (p *ProfessorProfile) SetTotalSlots(total int) error {
	if total < 1 || total < p.FilledSlots {
		return fmt.Errorf("%w: requested %d, filled %d", ErrInvalidTotalSlots, total, p.FilledSlots)
	}
	p.TotalSlots = total
	return nil
}

func (p ProfessorProfile) MarshalJSON() ([]byte, error) {
	type profile ProfessorProfile
	return json.Marshal(struct {
		profile
		AvailableSlots int `json:"available_slots"`
	}{profile(p), p.AvailableSlots()})
}

type ProfessorFilter struct {
	Department string
	Search     string // first/last name, username, research domains
	Ordering   Ordering
}
