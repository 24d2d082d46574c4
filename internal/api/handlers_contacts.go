package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lumenreach/engage/internal/crm"
	"github.com/lumenreach/engage/internal/journeys"
)

func (h *Handlers) ListContacts(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	q := r.URL.Query()

	filter := crm.ContactFilter{
		Status: q.Get("status"),
		Tag:    q.Get("tag"),
		Search: q.Get("search"),
	}
	if raw := q.Get("list_id"); raw != "" {
		listID, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid list_id")
			return
		}
		filter.ListID = &listID
	}

	contacts, total, err := h.store.GetContacts(r.Context(), orgIDFrom(r.Context()), filter, limit, offset)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to list contacts")
		return
	}
	respondPage(w, contacts, total, limit, offset)
}

func (h *Handlers) CreateContact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone      string   `json:"phone"`
		Email      string   `json:"email"`
		FirstName  string   `json:"first_name"`
		LastName   string   `json:"last_name"`
		ListID     *string  `json:"list_id"`
		Tags       []string `json:"tags"`
		Attributes crm.JSON `json:"attributes"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	contact := &crm.Contact{
		OrganizationID: orgIDFrom(r.Context()),
		Phone:          req.Phone,
		Email:          req.Email,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Tags:           req.Tags,
		Attributes:     req.Attributes,
		Source:         "api",
	}
	if req.ListID != nil {
		listID, err := uuid.Parse(*req.ListID)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid list_id")
			return
		}
		contact.ListID = &listID
	}

	if err := h.store.CreateContact(r.Context(), contact); err != nil {
		respondSafeError(w, http.StatusBadRequest, err, "failed to create contact")
		return
	}

	// New subscribers may enter welcome journeys.
	if h.journeyEngine != nil {
		if err := h.journeyEngine.Trigger(contact.OrganizationID, contact.ID, journeys.TriggerContactCreated); err != nil {
			respondSafeError(w, http.StatusInternalServerError, err, "contact created but journey trigger failed")
			return
		}
	}
	respondJSON(w, http.StatusCreated, contact)
}

func (h *Handlers) GetContact(w http.ResponseWriter, r *http.Request) {
	contactID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	contact, err := h.store.GetContact(r.Context(), orgIDFrom(r.Context()), contactID)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to load contact")
		return
	}
	if contact == nil {
		respondError(w, http.StatusNotFound, "contact not found")
		return
	}
	respondJSON(w, http.StatusOK, contact)
}

func (h *Handlers) UpdateContact(w http.ResponseWriter, r *http.Request) {
	contactID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	contact, err := h.store.GetContact(r.Context(), orgIDFrom(r.Context()), contactID)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to load contact")
		return
	}
	if contact == nil {
		respondError(w, http.StatusNotFound, "contact not found")
		return
	}

	var req struct {
		Email      *string  `json:"email"`
		FirstName  *string  `json:"first_name"`
		LastName   *string  `json:"last_name"`
		Attributes crm.JSON `json:"attributes"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email != nil {
		contact.Email = *req.Email
	}
	if req.FirstName != nil {
		contact.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		contact.LastName = *req.LastName
	}
	if req.Attributes != nil {
		contact.Attributes = req.Attributes
	}

	if err := h.store.UpdateContact(r.Context(), contact); err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to update contact")
		return
	}
	respondJSON(w, http.StatusOK, contact)
}

func (h *Handlers) DeleteContact(w http.ResponseWriter, r *http.Request) {
	contactID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.DeleteContact(r.Context(), orgIDFrom(r.Context()), contactID); err != nil {
		respondSafeError(w, http.StatusBadRequest, err, "failed to delete contact")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handlers) AddContactTags(w http.ResponseWriter, r *http.Request) {
	contactID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req struct {
		Tags []string `json:"tags"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Tags) == 0 {
		respondError(w, http.StatusBadRequest, "tags are required")
		return
	}
	orgID := orgIDFrom(r.Context())
	if err := h.store.AddContactTags(r.Context(), orgID, contactID, req.Tags); err != nil {
		respondSafeError(w, http.StatusBadRequest, err, "failed to add tags")
		return
	}
	if h.journeyEngine != nil {
		if err := h.journeyEngine.Trigger(orgID, contactID, journeys.TriggerContactTagged); err != nil {
			respondSafeError(w, http.StatusInternalServerError, err, "tags added but journey trigger failed")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"added": req.Tags})
}

func (h *Handlers) RemoveContactTag(w http.ResponseWriter, r *http.Request) {
	contactID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	tag := chi.URLParam(r, "tag")
	if err := h.store.RemoveContactTag(r.Context(), orgIDFrom(r.Context()), contactID, tag); err != nil {
		respondSafeError(w, http.StatusBadRequest, err, "failed to remove tag")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"removed": tag})
}

func (h *Handlers) UnsubscribeContact(w http.ResponseWriter, r *http.Request) {
	contactID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	orgID := orgIDFrom(r.Context())
	contact, err := h.store.GetContact(r.Context(), orgID, contactID)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to load contact")
		return
	}
	if contact == nil {
		respondError(w, http.StatusNotFound, "contact not found")
		return
	}
	if err := h.store.UnsubscribeContact(r.Context(), orgID, contact.Phone, "manual"); err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to unsubscribe contact")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "unsubscribed"})
}
