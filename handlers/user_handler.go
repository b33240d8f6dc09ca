package handlers

import (
	"fmt"
	"net/http"

	"github.com/thegupta1694/capstone/models"
	"github.com/thegupta1694/capstone/services"
)

type UserHandler struct {
	userService services.UserService
	directory   services.UserDirectoryService
}

func NewUserHandler(us services.UserService, directory services.UserDirectoryService) *UserHandler {
	return &UserHandler{userService: us, directory: directory}
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	profile, err := h.userService.GetProfile(r.Context(), principal)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, profile)
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	var input services.UpdateProfileInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), principal, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"user": user})
}

// ListUsers serves the directory used to look up invitees.
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	principal, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit, err := queryInt(r, "limit")
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	filter := models.UserFilter{Search: q.Get("search"), Limit: limit}
	if role := q.Get("role"); role != "" {
		ur := models.UserRole(role)
		if !ur.Valid() {
			mapServiceErrorToHTTP(w, r, fmt.Errorf("%w: unknown role %q", services.ErrValidationFailed, role))
			return
		}
		filter.Role = &ur
	}

	users, err := h.directory.ListUsers(r.Context(), principal, filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"users": users})
}
