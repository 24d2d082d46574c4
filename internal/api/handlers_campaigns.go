package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lumenreach/engage/internal/crm"
)

func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	status := r.URL.Query().Get("status")
	campaigns, total, err := h.store.GetCampaigns(r.Context(), orgIDFrom(r.Context()), status, limit, offset)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to list campaigns")
		return
	}
	respondPage(w, campaigns, total, limit, offset)
}

type campaignRequest struct {
	Name        string  `json:"name"`
	Body        string  `json:"body"`
	FromNumber  string  `json:"from_number"`
	MediaURL    string  `json:"media_url"`
	ListID      *string `json:"list_id"`
	SegmentID   *string `json:"segment_id"`
	TemplateID  *string `json:"template_id"`
	ScheduledAt *string `json:"scheduled_at"`
}

func parseOptionalUUID(raw *string, field string, w http.ResponseWriter) (*uuid.UUID, bool) {
	if raw == nil || *raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid "+field)
		return nil, false
	}
	return &id, true
}

func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaignRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Body == "" && req.TemplateID == nil {
		respondError(w, http.StatusBadRequest, "body or template_id is required")
		return
	}

	c := &crm.Campaign{
		OrganizationID: orgIDFrom(r.Context()),
		Name:           req.Name,
		Body:           req.Body,
		FromNumber:     req.FromNumber,
		MediaURL:       req.MediaURL,
		Status:         crm.CampaignDraft,
		CreatedBy:      emailFrom(r.Context()),
	}
	var ok bool
	if c.ListID, ok = parseOptionalUUID(req.ListID, "list_id", w); !ok {
		return
	}
	if c.SegmentID, ok = parseOptionalUUID(req.SegmentID, "segment_id", w); !ok {
		return
	}
	if c.TemplateID, ok = parseOptionalUUID(req.TemplateID, "template_id", w); !ok {
		return
	}
	if c.ListID == nil && c.SegmentID == nil {
		respondError(w, http.StatusBadRequest, "list_id or segment_id is required")
		return
	}

	if c.TemplateID != nil && c.Body == "" {
		tmpl, err := h.store.GetTemplate(r.Context(), c.OrganizationID, *c.TemplateID)
		if err != nil {
			respondSafeError(w, http.StatusInternalServerError, err, "failed to load template")
			return
		}
		if tmpl == nil {
			respondError(w, http.StatusBadRequest, "template not found")
			return
		}
		c.Body = tmpl.Body
		if c.MediaURL == "" {
			c.MediaURL = tmpl.MediaURL
		}
	}

	if err := h.store.CreateCampaign(r.Context(), c); err != nil {
		respondSafeError(w, http.StatusBadRequest, err, "failed to create campaign")
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := h.store.GetCampaign(r.Context(), orgIDFrom(r.Context()), campaignID)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to load campaign")
		return
	}
	if c == nil {
		respondError(w, http.StatusNotFound, "campaign not found")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	orgID := orgIDFrom(r.Context())
	c, err := h.store.GetCampaign(r.Context(), orgID, campaignID)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to load campaign")
		return
	}
	if c == nil {
		respondError(w, http.StatusNotFound, "campaign not found")
		return
	}
	if c.Status != crm.CampaignDraft && c.Status != crm.CampaignScheduled {
		respondError(w, http.StatusConflict, "only draft or scheduled campaigns can be edited")
		return
	}

	var req campaignRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name != "" {
		c.Name = req.Name
	}
	if req.Body != "" {
		c.Body = req.Body
	}
	if req.FromNumber != "" {
		c.FromNumber = req.FromNumber
	}
	if req.MediaURL != "" {
		c.MediaURL = req.MediaURL
	}
	var ok bool
	if req.ListID != nil {
		if c.ListID, ok = parseOptionalUUID(req.ListID, "list_id", w); !ok {
			return
		}
	}
	if req.SegmentID != nil {
		if c.SegmentID, ok = parseOptionalUUID(req.SegmentID, "segment_id", w); !ok {
			return
		}
	}

	if err := h.store.UpdateCampaign(r.Context(), c); err != nil {
		respondSafeError(w, http.StatusBadRequest, err, "failed to update campaign")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// DeleteCampaign removes draft campaigns only. Anything further along
// has queue and event history, so it is cancelled instead of deleted.
func (h *Handlers) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.DeleteCampaign(r.Context(), orgIDFrom(r.Context()), campaignID); err != nil {
		respondSafeError(w, http.StatusConflict, err, "only draft campaigns can be deleted")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"deleted": campaignID.String()})
}

// ScheduleCampaign sets a future send time and moves the campaign to scheduled.
func (h *Handlers) ScheduleCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req struct {
		ScheduledAt string `json:"scheduled_at"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	at, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		respondError(w, http.StatusBadRequest, "scheduled_at must be RFC3339")
		return
	}
	if at.Before(time.Now()) {
		respondError(w, http.StatusBadRequest, "scheduled_at must be in the future")
		return
	}

	orgID := orgIDFrom(r.Context())
	c, err := h.store.GetCampaign(r.Context(), orgID, campaignID)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to load campaign")
		return
	}
	if c == nil {
		respondError(w, http.StatusNotFound, "campaign not found")
		return
	}
	c.ScheduledAt = &at
	if err := h.store.UpdateCampaign(r.Context(), c); err != nil {
		respondSafeError(w, http.StatusBadRequest, err, "failed to schedule campaign")
		return
	}
	if c.Status != crm.CampaignScheduled {
		if err := h.store.TransitionCampaign(r.Context(), orgID, campaignID, crm.CampaignScheduled); err != nil {
			respondSafeError(w, http.StatusConflict, err, "failed to schedule campaign")
			return
		}
		c.Status = crm.CampaignScheduled
	}
	respondJSON(w, http.StatusOK, c)
}

// SendCampaign launches the campaign immediately.
func (h *Handlers) SendCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	queued, err := h.scheduler.LaunchNow(r.Context(), orgIDFrom(r.Context()), campaignID)
	if err != nil {
		respondSafeError(w, http.StatusConflict, err, "failed to launch campaign")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": crm.CampaignSending, "queued": queued})
}

func (h *Handlers) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, crm.CampaignPaused)
}

func (h *Handlers) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, crm.CampaignSending)
}

func (h *Handlers) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, crm.CampaignCancelled)
}

func (h *Handlers) transition(w http.ResponseWriter, r *http.Request, to string) {
	campaignID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.TransitionCampaign(r.Context(), orgIDFrom(r.Context()), campaignID, to); err != nil {
		respondSafeError(w, http.StatusConflict, err, "invalid campaign transition")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": to})
}

func (h *Handlers) GetCampaignStats(w http.ResponseWriter, r *http.Request) {
	campaignID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	stats, err := h.store.GetCampaignStats(r.Context(), orgIDFrom(r.Context()), campaignID)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to load campaign stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
