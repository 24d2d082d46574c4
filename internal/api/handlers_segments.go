package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/lumenreach/engage/internal/segmentation"
)

func (h *Handlers) ListSegments(w http.ResponseWriter, r *http.Request) {
	segments, err := h.segments.Store().GetSegments(r.Context(), orgIDFrom(r.Context()))
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to list segments")
		return
	}
	respondJSON(w, http.StatusOK, segments)
}

type segmentRequest struct {
	Name        string                      `json:"name"`
	Description string                      `json:"description"`
	ListID      *string                     `json:"list_id"`
	Conditions  segmentation.ConditionGroup `json:"conditions"`
}

func (h *Handlers) CreateSegment(w http.ResponseWriter, r *http.Request) {
	var req segmentRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	segment := &segmentation.Segment{
		OrganizationID: orgIDFrom(r.Context()),
		Name:           req.Name,
		Description:    req.Description,
		CreatedBy:      emailFrom(r.Context()),
	}
	if req.ListID != nil {
		listID, err := uuid.Parse(*req.ListID)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid list_id")
			return
		}
		segment.ListID = &listID
	}

	if err := h.segments.Store().CreateSegment(r.Context(), segment, req.Conditions); err != nil {
		respondSafeError(w, http.StatusBadRequest, err, "failed to create segment")
		return
	}
	respondJSON(w, http.StatusCreated, segment)
}

func (h *Handlers) GetSegment(w http.ResponseWriter, r *http.Request) {
	segmentID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	segment, err := h.segments.Store().GetSegment(r.Context(), orgIDFrom(r.Context()), segmentID)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to load segment")
		return
	}
	if segment == nil {
		respondError(w, http.StatusNotFound, "segment not found")
		return
	}
	respondJSON(w, http.StatusOK, segment)
}

func (h *Handlers) UpdateSegment(w http.ResponseWriter, r *http.Request) {
	segmentID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	orgID := orgIDFrom(r.Context())
	segment, err := h.segments.Store().GetSegment(r.Context(), orgID, segmentID)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to load segment")
		return
	}
	if segment == nil {
		respondError(w, http.StatusNotFound, "segment not found")
		return
	}

	var req segmentRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name != "" {
		segment.Name = req.Name
	}
	segment.Description = req.Description

	if err := h.segments.Store().UpdateSegment(r.Context(), segment, req.Conditions); err != nil {
		respondSafeError(w, http.StatusBadRequest, err, "failed to update segment")
		return
	}
	respondJSON(w, http.StatusOK, segment)
}

func (h *Handlers) ArchiveSegment(w http.ResponseWriter, r *http.Request) {
	segmentID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.segments.Store().ArchiveSegment(r.Context(), orgIDFrom(r.Context()), segmentID); err != nil {
		respondSafeError(w, http.StatusBadRequest, err, "failed to archive segment")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "archived"})
}

// PreviewSegment evaluates an ad-hoc condition tree without saving it.
func (h *Handlers) PreviewSegment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ListID     *string                     `json:"list_id"`
		Conditions segmentation.ConditionGroup `json:"conditions"`
		Limit      int                         `json:"limit"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var listID *uuid.UUID
	if req.ListID != nil {
		parsed, err := uuid.Parse(*req.ListID)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid list_id")
			return
		}
		listID = &parsed
	}

	preview, err := h.segments.PreviewSegment(r.Context(), orgIDFrom(r.Context()), listID, req.Conditions, req.Limit)
	if err != nil {
		respondSafeError(w, http.StatusBadRequest, err, "failed to preview segment")
		return
	}
	respondJSON(w, http.StatusOK, preview)
}

// RefreshSegment recomputes the segment count synchronously.
func (h *Handlers) RefreshSegment(w http.ResponseWriter, r *http.Request) {
	segmentID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.segments.ExecuteSegment(r.Context(), orgIDFrom(r.Context()), segmentID)
	if err != nil {
		respondSafeError(w, http.StatusBadRequest, err, "failed to refresh segment")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handlers) ListSegmentContacts(w http.ResponseWriter, r *http.Request) {
	segmentID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	contacts, err := h.segments.MatchingContacts(r.Context(), orgIDFrom(r.Context()), segmentID)
	if err != nil {
		respondSafeError(w, http.StatusBadRequest, err, "failed to list segment contacts")
		return
	}
	respondJSON(w, http.StatusOK, contacts)
}
