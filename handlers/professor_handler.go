package handlers

import (
	"net/http"

	"github.com/thegupta1694/capstone/models"
	"github.com/thegupta1694/capstone/services"
)

type ProfessorHandler struct {
	professorService services.ProfessorService
}

func NewProfessorHandler(ps services.ProfessorService) *ProfessorHandler {
	return &ProfessorHandler{professorService: ps}
}

// ListProfessors supports ?search=, ?department= and ?ordering=[-]field.
func (h *ProfessorHandler) ListProfessors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ordering, err := models.ParseOrdering(q.Get("ordering"), services.ProfessorOrderingFields...)
	if err != nil {
		errorResponse(w, r, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}

	profiles, err := h.professorService.ListProfessors(r.Context(), models.ProfessorFilter{
		Department: q.Get("department"),
		Search:     q.Get("search"),
		Ordering:   ordering,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"professors": profiles})
}

func (h *ProfessorHandler) GetProfessor(w http.ResponseWriter, r *http.Request) {
	professorID, err := getIDFromURL(r, "professorID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	profile, err := h.professorService.GetProfessor(r.Context(), professorID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"professor": profile})
}

func (h *ProfessorHandler) UpdateProfessor(w http.ResponseWriter, r *http.Request) {
	principal, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	professorID, err := getIDFromURL(r, "professorID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input services.UpdateProfessorInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	profile, err := h.professorService.UpdateProfessor(r.Context(), principal, professorID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"professor": profile})
}
