package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thegupta1694/capstone/models"
)

func strPtr(s string) *string { return &s }

// Scenario: a full team may hold at most four pending applications.
func TestSubmitTooManyPending(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, leader, members := env.team(t, "Alpha", 3)

	for i := 0; i < models.MaxPendingApplications; i++ {
		submitter := leader
		if i > 0 {
			submitter = members[i-1]
		}
		prof := env.professor(t, 2)
		app, err := env.ledger.Submit(ctx, submitter, prof.ID, strPtr("we would like to work with you"))
		require.NoError(t, err)
		assert.Equal(t, models.ApplicationPending, app.Status)
	}

	_, err := env.ledger.Submit(ctx, leader, env.professor(t, 2).ID, nil)
	assert.ErrorIs(t, err, ErrTooManyPending)
}

func TestSubmitErrors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, leader, _ := env.team(t, "Alpha", 0)
	prof := env.professor(t, 1)

	_, err := env.ledger.Submit(ctx, prof, prof.ID, nil)
	assert.ErrorIs(t, err, ErrRoleViolation)

	_, err = env.ledger.Submit(ctx, env.admin(t), prof.ID, nil)
	assert.ErrorIs(t, err, ErrRoleViolation)

	_, err = env.ledger.Submit(ctx, env.student(t), prof.ID, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.ledger.Submit(ctx, leader, 9999, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.ledger.Submit(ctx, leader, prof.ID, nil)
	require.NoError(t, err)
	_, err = env.ledger.Submit(ctx, leader, prof.ID, nil)
	assert.ErrorIs(t, err, ErrDuplicateApplication)
}

func TestSubmitNoSlots(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, leaderA, _ := env.team(t, "A", 0)
	_, leaderB, _ := env.team(t, "B", 0)
	prof := env.professor(t, 1)

	app, err := env.ledger.Submit(ctx, leaderA, prof.ID, nil)
	require.NoError(t, err)
	_, err = env.ledger.Respond(ctx, prof, app.ID, models.ApplicationAccepted, nil)
	require.NoError(t, err)

	_, err = env.ledger.Submit(ctx, leaderB, prof.ID, nil)
	assert.ErrorIs(t, err, ErrNoSlots)
}

func TestDuplicateApplicationAfterRejection(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, leader, _ := env.team(t, "Alpha", 0)
	prof := env.professor(t, 2)

	app, err := env.ledger.Submit(ctx, leader, prof.ID, nil)
	require.NoError(t, err)
	rejected, err := env.ledger.Respond(ctx, prof, app.ID, models.ApplicationRejected, strPtr("  not this term  "))
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationRejected, rejected.Status)
	require.NotNil(t, rejected.ProfessorResponse)
	assert.Equal(t, "not this term", *rejected.ProfessorResponse)
	assert.NotNil(t, rejected.RespondedAt)

	_, err = env.ledger.Submit(ctx, leader, prof.ID, nil)
	assert.ErrorIs(t, err, ErrDuplicateApplication)
}

// Scenario: one slot, two teams; accepting the first withdraws its siblings
// and leaves the second pending but unacceptable.
func TestAcceptReservesSlotAndWithdrawsSiblings(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, leaderA, membersA := env.team(t, "A", 1)
	_, leaderB, _ := env.team(t, "B", 0)
	p := env.professor(t, 1)
	other := env.professor(t, 3)

	appA, err := env.ledger.Submit(ctx, leaderA, p.ID, nil)
	require.NoError(t, err)
	siblingA, err := env.ledger.Submit(ctx, membersA[0], other.ID, nil)
	require.NoError(t, err)
	appB, err := env.ledger.Submit(ctx, leaderB, p.ID, nil)
	require.NoError(t, err)

	accepted, err := env.ledger.Respond(ctx, p, appA.ID, models.ApplicationAccepted, strPtr("welcome"))
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationAccepted, accepted.Status)
	assert.NotNil(t, accepted.RespondedAt)

	assert.Equal(t, 1, env.slots(t, p.ID).FilledSlots)
	assert.Equal(t, 0, env.slots(t, other.ID).FilledSlots)

	withdrawn := env.application(t, siblingA.ID)
	assert.Equal(t, models.ApplicationWithdrawn, withdrawn.Status)
	assert.NotNil(t, withdrawn.RespondedAt)
	assert.Equal(t, models.ApplicationPending, env.application(t, appB.ID).Status)

	_, err = env.ledger.Respond(ctx, p, appB.ID, models.ApplicationAccepted, nil)
	assert.ErrorIs(t, err, ErrNoSlots)
	assert.Equal(t, models.ApplicationPending, env.application(t, appB.ID).Status)
	assert.Equal(t, 1, env.slots(t, p.ID).FilledSlots)
}

func TestAcceptTwiceIsNotPending(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, leader, _ := env.team(t, "Alpha", 0)
	p := env.professor(t, 3)

	app, err := env.ledger.Submit(ctx, leader, p.ID, nil)
	require.NoError(t, err)
	_, err = env.coordinator.Accept(ctx, p, app.ID, nil)
	require.NoError(t, err)

	_, err = env.coordinator.Accept(ctx, p, app.ID, nil)
	assert.ErrorIs(t, err, ErrNotPending)
	assert.Equal(t, 1, env.slots(t, p.ID).FilledSlots)

	_, err = env.ledger.Respond(ctx, p, app.ID, models.ApplicationRejected, nil)
	assert.ErrorIs(t, err, ErrNotPending)
	_, err = env.ledger.Withdraw(ctx, leader, app.ID)
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestRespondAuthorization(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, leader, _ := env.team(t, "Alpha", 0)
	p := env.professor(t, 2)
	stranger := env.professor(t, 2)

	app, err := env.ledger.Submit(ctx, leader, p.ID, nil)
	require.NoError(t, err)

	_, err = env.ledger.Respond(ctx, leader, app.ID, models.ApplicationAccepted, nil)
	assert.ErrorIs(t, err, ErrRoleViolation)
	_, err = env.ledger.Respond(ctx, stranger, app.ID, models.ApplicationAccepted, nil)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = env.ledger.Respond(ctx, stranger, app.ID, models.ApplicationRejected, nil)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = env.ledger.Respond(ctx, p, app.ID, models.ApplicationWithdrawn, nil)
	assert.ErrorIs(t, err, ErrValidationFailed)

	accepted, err := env.ledger.Respond(ctx, env.admin(t), app.ID, models.ApplicationAccepted, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationAccepted, accepted.Status)
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, leader, members := env.team(t, "Alpha", 1)
	p := env.professor(t, 2)
	q := env.professor(t, 2)

	app, err := env.ledger.Submit(ctx, leader, p.ID, nil)
	require.NoError(t, err)

	_, err = env.ledger.Withdraw(ctx, p, app.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = env.ledger.Withdraw(ctx, env.student(t), app.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	withdrawn, err := env.ledger.Withdraw(ctx, members[0], app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationWithdrawn, withdrawn.Status)
	assert.NotNil(t, withdrawn.RespondedAt)

	other, err := env.ledger.Submit(ctx, leader, q.ID, nil)
	require.NoError(t, err)
	_, err = env.ledger.Withdraw(ctx, env.admin(t), other.ID)
	require.NoError(t, err)
}

func TestGetAndListScoping(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, leaderA, _ := env.team(t, "Alpha", 0)
	_, leaderB, _ := env.team(t, "Beta", 0)
	p := env.professor(t, 3)
	q := env.professor(t, 3)

	appA, err := env.ledger.Submit(ctx, leaderA, p.ID, nil)
	require.NoError(t, err)
	appB, err := env.ledger.Submit(ctx, leaderB, q.ID, nil)
	require.NoError(t, err)

	got, err := env.ledger.Get(ctx, leaderA, appA.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Team)
	require.NotNil(t, got.Professor)
	assert.Equal(t, "Alpha", got.Team.Name)

	_, err = env.ledger.Get(ctx, leaderA, appB.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.ledger.Get(ctx, p, appB.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.ledger.Get(ctx, env.admin(t), appB.ID)
	require.NoError(t, err)

	forA, err := env.ledger.List(ctx, leaderA, models.ApplicationFilter{})
	require.NoError(t, err)
	require.Len(t, forA, 1)
	assert.Equal(t, appA.ID, forA[0].ID)

	forQ, err := env.ledger.List(ctx, q, models.ApplicationFilter{})
	require.NoError(t, err)
	require.Len(t, forQ, 1)
	assert.Equal(t, appB.ID, forQ[0].ID)

	all, err := env.ledger.List(ctx, env.admin(t), models.ApplicationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := env.ledger.List(ctx, env.student(t), models.ApplicationFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)

	pending := models.ApplicationPending
	filtered, err := env.ledger.List(ctx, env.admin(t), models.ApplicationFilter{Status: &pending, Search: "beta"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, appB.ID, filtered[0].ID)

	bogus := models.ApplicationStatus("bogus")
	_, err = env.ledger.List(ctx, env.admin(t), models.ApplicationFilter{Status: &bogus})
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestSubmitMessageLengthCountsCharacters(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, leader, _ := env.team(t, "Alpha", 0)

	_, err := env.ledger.Submit(ctx, leader, env.professor(t, 1).ID, strPtr(strings.Repeat("é", maxApplicationMessageLength+1)))
	assert.ErrorIs(t, err, ErrValidationFailed)

	app, err := env.ledger.Submit(ctx, leader, env.professor(t, 1).ID, strPtr(strings.Repeat("é", maxApplicationMessageLength)))
	require.NoError(t, err)
	require.NotNil(t, app.Message)
	assert.Equal(t, maxApplicationMessageLength, utf8.RuneCountInString(*app.Message))
}

// Concurrent acceptances for one professor never overbook the slot account.
func TestConcurrentAcceptNeverOverbooks(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	const teams = 8
	const slots = 3
	p := env.professor(t, slots)

	ids := make([]int, 0, teams)
	for i := 0; i < teams; i++ {
		_, leader, _ := env.team(t, "Team"+string(rune('A'+i)), 0)
		app, err := env.ledger.Submit(ctx, leader, p.ID, nil)
		require.NoError(t, err)
		ids = append(ids, app.ID)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		noSlots  int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, err := env.coordinator.Accept(ctx, p, id, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case assert.ErrorIs(t, err, ErrNoSlots):
				noSlots++
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, slots, accepted)
	assert.Equal(t, teams-slots, noSlots)
	profile := env.slots(t, p.ID)
	assert.Equal(t, slots, profile.FilledSlots)
	assert.LessOrEqual(t, profile.FilledSlots, profile.TotalSlots)
}

// One team with applications to several professors gets exactly one of them
// accepted, however the acceptances interleave.
func TestConcurrentAcceptOneTeamManyProfessors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, leader, members := env.team(t, "Alpha", 3)
	submitters := append([]models.StudentPrincipal{leader}, members...)

	type pending struct {
		professor models.TeacherPrincipal
		appID     int
	}
	apps := make([]pending, 0, len(submitters))
	for _, s := range submitters {
		p := env.professor(t, 2)
		app, err := env.ledger.Submit(ctx, s, p.ID, nil)
		require.NoError(t, err)
		apps = append(apps, pending{professor: p, appID: app.ID})
	}

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		accepted   int
		notPending int
	)
	for _, a := range apps {
		wg.Add(1)
		go func(a pending) {
			defer wg.Done()
			_, err := env.coordinator.Accept(ctx, a.professor, a.appID, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case assert.ErrorIs(t, err, ErrNotPending):
				notPending++
			}
		}(a)
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, len(apps)-1, notPending)
	filled := 0
	for _, a := range apps {
		filled += env.slots(t, a.professor.ID).FilledSlots
	}
	assert.Equal(t, 1, filled)
}
