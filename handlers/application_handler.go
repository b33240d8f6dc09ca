package handlers

import (
	"net/http"

	"github.com/thegupta1694/capstone/models"
	"github.com/thegupta1694/capstone/services"
)

type ApplicationHandler struct {
	ledger services.ApplicationLedger
}

func NewApplicationHandler(ledger services.ApplicationLedger) *ApplicationHandler {
	return &ApplicationHandler{ledger: ledger}
}

type submitApplicationRequest struct {
	ProfessorID int     `json:"professor_id"`
	Message     *string `json:"message"`
}

type applicationResponseRequest struct {
	Status            models.ApplicationStatus `json:"status"`
	ProfessorResponse *string                  `json:"professor_response"`
}

func (h *ApplicationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	principal, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	var input submitApplicationRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.ProfessorID <= 0 {
		errorResponse(w, r, http.StatusUnprocessableEntity, "validation_failed", "professor_id is required")
		return
	}

	app, err := h.ledger.Submit(r.Context(), principal, input.ProfessorID, input.Message)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, jsonResponse{"application": app})
}

// List supports ?status=, ?department=, ?search= and ?ordering=[-]field.
func (h *ApplicationHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	ordering, err := models.ParseOrdering(q.Get("ordering"), services.ApplicationOrderingFields...)
	if err != nil {
		errorResponse(w, r, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}
	filter := models.ApplicationFilter{
		Department: q.Get("department"),
		Search:     q.Get("search"),
		Ordering:   ordering,
	}
	if status := q.Get("status"); status != "" {
		s := models.ApplicationStatus(status)
		filter.Status = &s
	}

	apps, err := h.ledger.List(r.Context(), principal, filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"applications": apps})
}

func (h *ApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	applicationID, err := getIDFromURL(r, "applicationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	app, err := h.ledger.Get(r.Context(), principal, applicationID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"application": app})
}

// Respond takes the professor's decision; "accepted" reserves a slot.
func (h *ApplicationHandler) Respond(w http.ResponseWriter, r *http.Request) {
	principal, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	applicationID, err := getIDFromURL(r, "applicationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input applicationResponseRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	app, err := h.ledger.Respond(r.Context(), principal, applicationID, input.Status, input.ProfessorResponse)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"application": app})
}

func (h *ApplicationHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	principal, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	applicationID, err := getIDFromURL(r, "applicationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	app, err := h.ledger.Withdraw(r.Context(), principal, applicationID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"application": app})
}
