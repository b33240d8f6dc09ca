package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/thegupta1694/capstone/middleware"
	"github.com/thegupta1694/capstone/models"
	"github.com/thegupta1694/capstone/services"
)

type jsonResponse map[string]interface{}

const maxBodyBytes = 1_048_576 // 1MB

func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBodyBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("body contains unknown key %s", fieldName)
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBodyBytes)
		default:
			return err
		}
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}, headers http.Header) error {
	js, err := json.Marshal(data)
	if err != nil {
		return err
	}
	js = append(js, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	return err
}

// respond writes data or falls back to a 500 when encoding fails.
func respond(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if err := writeJSON(w, status, data, nil); err != nil {
		slog.ErrorContext(r.Context(), "failed to write response", slog.Any("error", err))
	}
}

func errorResponse(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	env := jsonResponse{"error": map[string]string{"code": code, "message": message}}
	if err := writeJSON(w, status, env, nil); err != nil {
		slog.ErrorContext(r.Context(), "failed to write error response", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "internal server error",
		slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("error", err))
	errorResponse(w, r, http.StatusInternalServerError, "internal_error",
		"the server encountered a problem and could not process your request")
}

func badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	errorResponse(w, r, http.StatusBadRequest, "bad_request", err.Error())
}

func unauthorizedResponse(w http.ResponseWriter, r *http.Request, message string) {
	errorResponse(w, r, http.StatusUnauthorized, "unauthorized", message)
}

// serviceErrors is checked in order; the first matching sentinel wins, so
// specific kinds come before the generic ErrNotFound.
var serviceErrors = []struct {
	err    error
	status int
	code   string
}{
	{services.ErrRoleViolation, http.StatusForbidden, "role_violation"},
	{services.ErrPermissionDenied, http.StatusForbidden, "permission_denied"},
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
	{services.ErrUsernameTaken, http.StatusConflict, "username_taken"},
	{services.ErrEmailTaken, http.StatusConflict, "email_taken"},
	{services.ErrNotFound, http.StatusNotFound, "not_found"},
	{services.ErrValidationFailed, http.StatusUnprocessableEntity, "validation_failed"},
	{services.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized"},
	{services.ErrAuthenticationFailed, http.StatusUnauthorized, "unauthorized"},
	{services.ErrFeatureUnavailable, http.StatusServiceUnavailable, "feature_unavailable"},
}

// mapServiceErrorToHTTP преобразует ошибки сервисного слоя в HTTP-ответы
func mapServiceErrorToHTTP(w http.ResponseWriter, r *http.Request, err error) {
	for _, se := range serviceErrors {
		if errors.Is(err, se.err) {
			errorResponse(w, r, se.status, se.code, err.Error())
			return
		}
	}
	serverErrorResponse(w, r, err)
}

func getIDFromURL(r *http.Request, paramName string) (int, error) {
	idStr := chi.URLParam(r, paramName)
	if idStr == "" {
		return 0, fmt.Errorf("missing %s in URL path", paramName)
	}
	id, err := strconv.Atoi(idStr)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s format: %q", paramName, idStr)
	}
	return id, nil
}

// currentPrincipal writes a 401 and returns false when the request carries no
// authenticated caller.
func currentPrincipal(w http.ResponseWriter, r *http.Request) (models.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		unauthorizedResponse(w, r, "failed to identify current user")
		return nil, false
	}
	return p, true
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", services.ErrValidationFailed, key)
	}
	return n, nil
}
