package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/thegupta1694/capstone/handlers"
	"github.com/thegupta1694/capstone/metrics"
	"github.com/thegupta1694/capstone/models"
	"github.com/thegupta1694/capstone/repositories/memory"
	"github.com/thegupta1694/capstone/services"
)

const testSecret = "routes-test-secret"

type apiClient struct {
	t      *testing.T
	router http.Handler
	store  *memory.Store
	auth   services.AuthService
}

func newAPIClient(t *testing.T) *apiClient {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()

	authService := services.NewAuthService(store, bcrypt.MinCost, 2, logger)
	userService := services.NewUserService(store, logger)
	coordinator := services.NewAllocationCoordinator(store, logger)

	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg))

	router := chi.NewRouter()
	SetupRoutes(router, Handlers{
		Auth:        handlers.NewAuthHandler(authService, userService, testSecret, time.Hour),
		User:        handlers.NewUserHandler(userService, services.NewUserDirectoryService(store.Users())),
		Professor:   handlers.NewProfessorHandler(services.NewProfessorService(store, logger)),
		Team:        handlers.NewTeamHandler(services.NewTeamRoster(store, nil, logger)),
		Application: handlers.NewApplicationHandler(services.NewApplicationLedger(store, coordinator, nil, logger)),
		Dashboard:   handlers.NewDashboardHandler(services.NewDashboardService(store)),
	}, Options{
		JWTSecret:      testSecret,
		AllowedOrigins: []string{"*"},
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	return &apiClient{t: t, router: router, store: store, auth: authService}
}

func (c *apiClient) do(method, path, token string, body any) (int, map[string]any) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

// signup registers an account and returns its id and a bearer token.
func (c *apiClient) signup(username string, role models.UserRole) (int, string) {
	c.t.Helper()
	status, body := c.do(http.MethodPost, "/api/auth/register", "", map[string]any{
		"username": username,
		"email":    username + "@uni.test",
		"password": "password123",
		"role":     role,
	})
	require.Equal(c.t, http.StatusCreated, status, body)
	id := int(body["user"].(map[string]any)["id"].(float64))

	status, body = c.do(http.MethodPost, "/api/auth/login", "", map[string]any{
		"username": username,
		"password": "password123",
	})
	require.Equal(c.t, http.StatusOK, status, body)
	return id, body["token"].(string)
}

func errorCode(body map[string]any) string {
	e, ok := body["error"].(map[string]any)
	if !ok {
		return ""
	}
	code, _ := e["code"].(string)
	return code
}

func nestedID(body map[string]any, key string) int {
	return int(body[key].(map[string]any)["id"].(float64))
}

func TestAllocationFlow(t *testing.T) {
	c := newAPIClient(t)
	_, leaderTok := c.signup("21cs001", models.RoleStudent)
	memberID, memberTok := c.signup("21cs002", models.RoleStudent)
	profID, profTok := c.signup("prof.iyer", models.RoleTeacher)

	status, body := c.do(http.MethodPost, "/api/teams", leaderTok, map[string]any{"name": "Alpha"})
	require.Equal(t, http.StatusCreated, status, body)
	teamID := nestedID(body, "team")

	status, body = c.do(http.MethodGet, "/api/users?search=21cs002", leaderTok, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["users"], 1)

	status, body = c.do(http.MethodPost, fmt.Sprintf("/api/teams/%d/invitations", teamID), leaderTok, map[string]any{"user_id": memberID})
	require.Equal(t, http.StatusCreated, status, body)
	membershipID := nestedID(body, "membership")

	status, body = c.do(http.MethodPost, fmt.Sprintf("/api/teams/%d/invitations", teamID), leaderTok, map[string]any{"user_id": memberID})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "duplicate_invite", errorCode(body))

	status, body = c.do(http.MethodGet, "/api/teams/invitations", memberTok, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["invitations"], 1)

	status, body = c.do(http.MethodPatch, fmt.Sprintf("/api/teams/memberships/%d", membershipID), memberTok, map[string]any{"status": "accepted"})
	require.Equal(t, http.StatusOK, status, body)

	status, body = c.do(http.MethodGet, "/api/teams/my", memberTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["team"].(map[string]any)["member_count"])

	status, body = c.do(http.MethodPost, "/api/applications", memberTok, map[string]any{"professor_id": profID, "message": "hello"})
	require.Equal(t, http.StatusCreated, status, body)
	appID := nestedID(body, "application")

	status, body = c.do(http.MethodPost, "/api/applications", leaderTok, map[string]any{"professor_id": profID})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "duplicate_application", errorCode(body))

	status, body = c.do(http.MethodPatch, fmt.Sprintf("/api/applications/%d/response", appID), leaderTok, map[string]any{"status": "accepted"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "role_violation", errorCode(body))

	status, body = c.do(http.MethodPatch, fmt.Sprintf("/api/applications/%d/response", appID), profTok, map[string]any{"status": "accepted", "professor_response": "welcome"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "accepted", body["application"].(map[string]any)["status"])

	status, body = c.do(http.MethodPatch, fmt.Sprintf("/api/applications/%d/response", appID), profTok, map[string]any{"status": "accepted"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "not_pending", errorCode(body))

	status, body = c.do(http.MethodGet, fmt.Sprintf("/api/professors/%d", profID), leaderTok, nil)
	require.Equal(t, http.StatusOK, status)
	prof := body["professor"].(map[string]any)
	assert.EqualValues(t, 1, prof["filled_slots"])
	assert.EqualValues(t, 1, prof["available_slots"])

	status, body = c.do(http.MethodGet, "/api/applications?status=accepted", profTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["applications"], 1)

	status, body = c.do(http.MethodPost, "/api/teams/leave", leaderTok, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "leader_cannot_leave", errorCode(body))
}

func TestAuthAndRoleGuards(t *testing.T) {
	c := newAPIClient(t)
	_, studentTok := c.signup("21cs010", models.RoleStudent)
	profID, profTok := c.signup("prof.bose", models.RoleTeacher)

	status, body := c.do(http.MethodGet, "/api/teams/my", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", errorCode(body))

	status, body = c.do(http.MethodPost, "/api/auth/login", "", map[string]any{"username": "21cs010", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", errorCode(body))

	status, body = c.do(http.MethodGet, "/api/admin/stats", studentTok, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "role_violation", errorCode(body))

	status, body = c.do(http.MethodPatch, fmt.Sprintf("/api/professors/%d", profID), studentTok, map[string]any{"total_slots": 3})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "role_violation", errorCode(body))

	status, body = c.do(http.MethodPatch, fmt.Sprintf("/api/professors/%d", profID), profTok, map[string]any{"total_slots": 0})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "validation_failed", errorCode(body))

	status, body = c.do(http.MethodGet, "/api/teams", studentTok, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "permission_denied", errorCode(body))

	status, body = c.do(http.MethodGet, "/api/teams/my", studentTok, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", errorCode(body))

	status, body = c.do(http.MethodGet, "/api/professors?ordering=salary", studentTok, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "validation_failed", errorCode(body))

	status, body = c.do(http.MethodGet, "/api/auth/me", profTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "teacher", body["user"].(map[string]any)["role"])

	admin, err := c.auth.CreateAdmin(t.Context(), services.RegisterInput{Username: "root", Email: "root@uni.test", Password: "password123"})
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, admin.Role)
	status, body = c.do(http.MethodPost, "/api/auth/login", "", map[string]any{"username": "root", "password": "password123"})
	require.Equal(t, http.StatusOK, status)
	status, body = c.do(http.MethodGet, "/api/admin/stats", body["token"].(string), nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["total_slots"])
}

func TestLogoUploadWithoutStorage(t *testing.T) {
	c := newAPIClient(t)
	_, tok := c.signup("21cs020", models.RoleStudent)
	status, body := c.do(http.MethodPost, "/api/teams", tok, map[string]any{"name": "Gamma"})
	require.Equal(t, http.StatusCreated, status)
	teamID := nestedID(body, "team")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="logo"; filename="logo.png"`)
	header.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG fake"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/api/teams/%d/logo", teamID), &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "feature_unavailable")
}

func TestOperationalEndpoints(t *testing.T) {
	c := newAPIClient(t)

	for _, tt := range []struct {
		path     string
		contains string
	}{
		{"/healthz", "ok"},
		{"/swagger/doc.json", `"openapi"`},
		{"/metrics", "capstone_slot_reservations_total"},
	} {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}
}
