package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thegupta1694/capstone/models"
	"github.com/thegupta1694/capstone/repositories/memory"
	"github.com/thegupta1694/capstone/storage"
)

type testEnv struct {
	store       *memory.Store
	uploader    *fakeUploader
	roster      TeamRoster
	ledger      ApplicationLedger
	coordinator AllocationCoordinator
	logs        *bytes.Buffer
	seq         int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	store := memory.NewStore()
	uploader := newFakeUploader()
	coordinator := NewAllocationCoordinator(store, logger)
	return &testEnv{
		store:       store,
		uploader:    uploader,
		roster:      NewTeamRoster(store, uploader, logger),
		ledger:      NewApplicationLedger(store, coordinator, uploader, logger),
		coordinator: coordinator,
		logs:        logs,
	}
}

func (e *testEnv) user(t *testing.T, role models.UserRole) *models.User {
	t.Helper()
	e.seq++
	u := &models.User{
		Username:  fmt.Sprintf("%s%03d", role, e.seq),
		Email:     fmt.Sprintf("%s%03d@uni.test", role, e.seq),
		FirstName: fmt.Sprintf("First%d", e.seq),
		LastName:  fmt.Sprintf("Last%d", e.seq),
		Role:      role,
	}
	require.NoError(t, e.store.Users().Create(context.Background(), u))
	return u
}

func (e *testEnv) student(t *testing.T) models.StudentPrincipal {
	t.Helper()
	return models.StudentPrincipal{ID: e.user(t, models.RoleStudent).ID}
}

func (e *testEnv) admin(t *testing.T) models.AdminPrincipal {
	t.Helper()
	return models.AdminPrincipal{ID: e.user(t, models.RoleAdmin).ID}
}

func (e *testEnv) professor(t *testing.T, totalSlots int) models.TeacherPrincipal {
	t.Helper()
	u := e.user(t, models.RoleTeacher)
	require.NoError(t, e.store.Professors().Create(context.Background(), &models.ProfessorProfile{
		UserID:     u.ID,
		TotalSlots: totalSlots,
	}))
	return models.TeacherPrincipal{ID: u.ID}
}

// team creates a team led by a fresh student with extra accepted members.
func (e *testEnv) team(t *testing.T, name string, extraMembers int) (*models.Team, models.StudentPrincipal, []models.StudentPrincipal) {
	t.Helper()
	ctx := context.Background()
	leader := e.student(t)
	team, err := e.roster.CreateTeam(ctx, leader, name)
	require.NoError(t, err)

	members := make([]models.StudentPrincipal, 0, extraMembers)
	for i := 0; i < extraMembers; i++ {
		m := e.student(t)
		inv, err := e.roster.Invite(ctx, leader, team.ID, m.ID)
		require.NoError(t, err)
		_, err = e.roster.Respond(ctx, m, inv.ID, models.MembershipAccepted)
		require.NoError(t, err)
		members = append(members, m)
	}
	return team, leader, members
}

func (e *testEnv) slots(t *testing.T, professorID int) *models.ProfessorProfile {
	t.Helper()
	p, err := e.store.Professors().GetByUserID(context.Background(), professorID)
	require.NoError(t, err)
	return p
}

func (e *testEnv) application(t *testing.T, id int) *models.Application {
	t.Helper()
	a, err := e.store.Applications().GetByID(context.Background(), id)
	require.NoError(t, err)
	return a
}

func (e *testEnv) memberCount(t *testing.T, teamID int) int {
	t.Helper()
	n, err := e.store.Memberships().CountAccepted(context.Background(), teamID)
	require.NoError(t, err)
	return n
}

type fakeUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
}

var _ storage.FileUploader = (*fakeUploader)(nil)

func newFakeUploader() *fakeUploader {
	return &fakeUploader{objects: make(map[string][]byte)}
}

func (f *fakeUploader) Upload(_ context.Context, key, _ string, reader io.Reader) (*storage.UploadResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return &storage.UploadResult{Key: key, Location: f.GetPublicURL(key)}, nil
}

func (f *fakeUploader) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}

func (f *fakeUploader) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}
