package api

import (
	"net/http"

	"github.com/lumenreach/engage/internal/crm"
)

func (h *Handlers) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.store.GetTemplates(r.Context(), orgIDFrom(r.Context()))
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to list templates")
		return
	}
	respondJSON(w, http.StatusOK, templates)
}

type templateRequest struct {
	Name     string `json:"name"`
	Body     string `json:"body"`
	MediaURL string `json:"media_url"`
}

func (h *Handlers) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" || req.Body == "" {
		respondError(w, http.StatusBadRequest, "name and body are required")
		return
	}
	if err := h.renderer.Validate(req.Body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid template body: "+err.Error())
		return
	}

	t := &crm.Template{
		OrganizationID: orgIDFrom(r.Context()),
		Name:           req.Name,
		Body:           req.Body,
		MediaURL:       req.MediaURL,
	}
	if err := h.store.CreateTemplate(r.Context(), t); err != nil {
		respondSafeError(w, http.StatusBadRequest, err, "failed to create template")
		return
	}
	respondJSON(w, http.StatusCreated, t)
}

func (h *Handlers) GetTemplate(w http.ResponseWriter, r *http.Request) {
	templateID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := h.store.GetTemplate(r.Context(), orgIDFrom(r.Context()), templateID)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to load template")
		return
	}
	if t == nil {
		respondError(w, http.StatusNotFound, "template not found")
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (h *Handlers) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	templateID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	orgID := orgIDFrom(r.Context())
	t, err := h.store.GetTemplate(r.Context(), orgID, templateID)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to load template")
		return
	}
	if t == nil {
		respondError(w, http.StatusNotFound, "template not found")
		return
	}

	var req templateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name != "" {
		t.Name = req.Name
	}
	if req.Body != "" {
		if err := h.renderer.Validate(req.Body); err != nil {
			respondError(w, http.StatusBadRequest, "invalid template body: "+err.Error())
			return
		}
		t.Body = req.Body
	}
	if req.MediaURL != "" {
		t.MediaURL = req.MediaURL
	}

	if err := h.store.UpdateTemplate(r.Context(), t); err != nil {
		respondSafeError(w, http.StatusBadRequest, err, "failed to update template")
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (h *Handlers) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	templateID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.DeleteTemplate(r.Context(), orgIDFrom(r.Context()), templateID); err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to delete template")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
