package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfessorProfileSlots(t *testing.T) {
	p := &ProfessorProfile{UserID: 7, TotalSlots: 2}

	assert.True(t, p.CanAccept())
	require.NoError(t, p.ReserveOne())
	require.NoError(t, p.ReserveOne())
	assert.Equal(t, 0, p.AvailableSlots())
	assert.False(t, p.CanAccept())

	err := p.ReserveOne()
	require.ErrorIs(t, err, ErrSlotsExhausted)
	assert.Equal(t, 2, p.FilledSlots, "failed reservation must not change the account")
}

func TestProfessorProfileSetTotalSlots(t *testing.T) {
	tests := []struct {
		name    string
		filled  int
		total   int
		wantErr bool
	}{
		{name: "grow", filled: 1, total: 6},
		{name: "shrink to filled", filled: 3, total: 3},
		{name: "below filled", filled: 3, total: 2, wantErr: true},
		{name: "zero", filled: 0, total: 0, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &ProfessorProfile{TotalSlots: 5, FilledSlots: tt.filled}
			err := p.SetTotalSlots(tt.total)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTotalSlots)
				assert.Equal(t, 5, p.TotalSlots)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.total, p.TotalSlots)
		})
	}
}

func TestProfessorProfileJSONIncludesAvailableSlots(t *testing.T) {
	raw, err := json.Marshal(ProfessorProfile{UserID: 3, TotalSlots: 5, FilledSlots: 2})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.EqualValues(t, 3, out["available_slots"])
	assert.EqualValues(t, 5, out["total_slots"])
}

func TestNewPrincipal(t *testing.T) {
	p, err := NewPrincipal(4, RoleTeacher)
	require.NoError(t, err)
	teacher, ok := p.(TeacherPrincipal)
	require.True(t, ok)
	assert.Equal(t, 4, teacher.ProfessorID())

	p, err = NewPrincipal(1, RoleAdmin)
	require.NoError(t, err)
	assert.True(t, IsAdmin(p))

	_, err = NewPrincipal(1, UserRole("janitor"))
	assert.Error(t, err)
	_, err = NewPrincipal(0, RoleStudent)
	assert.Error(t, err)
}

func TestMembershipResolve(t *testing.T) {
	m := &TeamMembership{ID: 1, Status: MembershipPending}
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.Error(t, m.Resolve(MembershipPending, at))
	require.NoError(t, m.Resolve(MembershipRejected, at))
	assert.Equal(t, MembershipRejected, m.Status)
	require.NotNil(t, m.RespondedAt)
	assert.Equal(t, at, *m.RespondedAt)

	require.ErrorIs(t, m.Resolve(MembershipAccepted, at), ErrMembershipResolved)
}

func TestApplicationResolve(t *testing.T) {
	a := &Application{ID: 9, Status: ApplicationPending}
	resp := "see you monday"
	at := time.Now()

	require.NoError(t, a.Resolve(ApplicationAccepted, &resp, at))
	assert.Equal(t, ApplicationAccepted, a.Status)
	assert.Equal(t, &resp, a.ProfessorResponse)
	require.ErrorIs(t, a.Resolve(ApplicationWithdrawn, nil, at), ErrApplicationResolved)
}

func TestParseOrdering(t *testing.T) {
	o, err := ParseOrdering("-submitted_at", "submitted_at", "responded_at")
	require.NoError(t, err)
	assert.Equal(t, Ordering{Field: "submitted_at", Descending: true}, o)

	o, err = ParseOrdering("", "submitted_at")
	require.NoError(t, err)
	assert.True(t, o.IsZero())

	_, err = ParseOrdering("password_hash", "submitted_at")
	assert.ErrorIs(t, err, ErrInvalidOrdering)
}
