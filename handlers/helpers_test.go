package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thegupta1694/capstone/services"
)

func TestMapServiceErrorToHTTP(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrRoleViolation, http.StatusForbidden, "role_violation"},
		{fmt.Errorf("%w: nope", services.ErrPermissionDenied), http.StatusForbidden, "permission_denied"},
		{services.ErrLeaderCannotLeave, http.StatusConflict, "leader_cannot_leave"},
		{services.ErrCannotRemoveLeader, http.StatusConflict, "cannot_remove_leader"},
		{services.ErrTeamFull, http.StatusConflict, "team_full"},
		{services.ErrTooManyPending, http.StatusConflict, "too_many_pending"},
		{services.ErrNoSlots, http.StatusConflict, "no_slots"},
		{services.ErrDuplicateName, http.StatusConflict, "duplicate_name"},
		{services.ErrDuplicateInvite, http.StatusConflict, "duplicate_invite"},
		{services.ErrDuplicateApplication, http.StatusConflict, "duplicate_application"},
		{services.ErrAlreadyMember, http.StatusConflict, "already_member"},
		{services.ErrAlreadyLeader, http.StatusConflict, "already_leader"},
		{services.ErrNotPending, http.StatusConflict, "not_pending"},
		{services.ErrTeamNotFound, http.StatusNotFound, "not_found"},
		{services.ErrNoActiveTeam, http.StatusNotFound, "not_found"},
		{services.ErrValidationFailed, http.StatusUnprocessableEntity, "validation_failed"},
		{services.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized"},
		{services.ErrFeatureUnavailable, http.StatusServiceUnavailable, "feature_unavailable"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mapServiceErrorToHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			assert.Equal(t, tt.status, rec.Code)

			var body struct {
				Error struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Error.Code)
			assert.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestReadJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"ok", `{"name":"Alpha"}`, ""},
		{"empty", ``, "must not be empty"},
		{"unknown field", `{"nam":"x"}`, "unknown key"},
		{"two values", `{"name":"a"}{"name":"b"}`, "single JSON value"},
		{"bad type", `{"name":5}`, "incorrect JSON type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst payload
			err := readJSON(httptest.NewRecorder(), req, &dst)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "Alpha", dst.Name)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
