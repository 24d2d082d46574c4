package api

import (
	"net/http"

	"github.com/lumenreach/engage/internal/journeys"
)

func (h *Handlers) ListJourneys(w http.ResponseWriter, r *http.Request) {
	list, err := h.journeyEngine.Store().GetJourneys(orgIDFrom(r.Context()))
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to list journeys")
		return
	}
	respondJSON(w, http.StatusOK, list)
}

type journeyRequest struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	TriggerEvent string          `json:"trigger_event"`
	Steps        []journeys.Step `json:"steps"`
	Status       string          `json:"status"`
}

func (h *Handlers) CreateJourney(w http.ResponseWriter, r *http.Request) {
	var req journeyRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.TriggerEvent == "" {
		respondError(w, http.StatusBadRequest, "trigger_event is required")
		return
	}

	j := &journeys.Journey{
		OrganizationID: orgIDFrom(r.Context()),
		Name:           req.Name,
		Description:    req.Description,
		TriggerEvent:   req.TriggerEvent,
		Steps:          req.Steps,
		Status:         req.Status,
	}
	if err := h.journeyEngine.Store().CreateJourney(j); err != nil {
		respondSafeError(w, http.StatusBadRequest, err, "failed to create journey")
		return
	}
	respondJSON(w, http.StatusCreated, j)
}

func (h *Handlers) GetJourney(w http.ResponseWriter, r *http.Request) {
	journeyID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	j, err := h.journeyEngine.Store().GetJourney(orgIDFrom(r.Context()), journeyID)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to load journey")
		return
	}
	if j == nil {
		respondError(w, http.StatusNotFound, "journey not found")
		return
	}
	respondJSON(w, http.StatusOK, j)
}

func (h *Handlers) UpdateJourney(w http.ResponseWriter, r *http.Request) {
	journeyID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	orgID := orgIDFrom(r.Context())
	j, err := h.journeyEngine.Store().GetJourney(orgID, journeyID)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to load journey")
		return
	}
	if j == nil {
		respondError(w, http.StatusNotFound, "journey not found")
		return
	}

	var req journeyRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name != "" {
		j.Name = req.Name
	}
	j.Description = req.Description
	if req.TriggerEvent != "" {
		j.TriggerEvent = req.TriggerEvent
	}
	if req.Steps != nil {
		j.Steps = req.Steps
	}
	if req.Status != "" {
		j.Status = req.Status
	}

	if err := h.journeyEngine.Store().UpdateJourney(j); err != nil {
		respondSafeError(w, http.StatusBadRequest, err, "failed to update journey")
		return
	}
	respondJSON(w, http.StatusOK, j)
}

func (h *Handlers) ArchiveJourney(w http.ResponseWriter, r *http.Request) {
	journeyID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.journeyEngine.Store().ArchiveJourney(orgIDFrom(r.Context()), journeyID); err != nil {
		respondSafeError(w, http.StatusBadRequest, err, "failed to archive journey")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "archived"})
}

func (h *Handlers) ListJourneyEnrollments(w http.ResponseWriter, r *http.Request) {
	journeyID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, _ := pageParams(r)
	enrollments, err := h.journeyEngine.Store().GetEnrollments(orgIDFrom(r.Context()), journeyID, limit)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to list enrollments")
		return
	}
	respondJSON(w, http.StatusOK, enrollments)
}

func (h *Handlers) GetJourneyStats(w http.ResponseWriter, r *http.Request) {
	journeyID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	stats, err := h.journeyEngine.Store().GetJourneyStats(orgIDFrom(r.Context()), journeyID)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to load journey stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
