package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lumenreach/engage/internal/crm"
	"github.com/lumenreach/engage/internal/sms"
)

// ListOrganizations returns all organizations the session user belongs
// to. Without auth enabled there is no user to filter by, so it is the
// caller's responsibility to pick an org.
func (h *Handlers) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	if session == nil {
		respondError(w, http.StatusUnauthorized, "no session")
		return
	}
	orgs, err := h.store.GetOrganizationsForUser(r.Context(), session.Email)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to list organizations")
		return
	}
	respondJSON(w, http.StatusOK, orgs)
}

func (h *Handlers) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name"`
		FromNumber string `json:"from_number"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	org := &crm.Organization{Name: req.Name}
	if req.FromNumber != "" {
		org.Settings = crm.JSON{"from_number": req.FromNumber}
	}
	if err := h.store.CreateOrganization(r.Context(), org); err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to create organization")
		return
	}

	// The creator becomes the first owner.
	if session := h.session(r); session != nil {
		m := &crm.Membership{
			OrganizationID: org.ID,
			UserEmail:      session.Email,
			Role:           crm.RoleOwner,
		}
		if err := h.store.CreateMembership(r.Context(), m); err != nil {
			respondSafeError(w, http.StatusInternalServerError, err, "failed to create membership")
			return
		}
	}
	respondJSON(w, http.StatusCreated, org)
}

func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetDashboardStats(r.Context(), orgIDFrom(r.Context()))
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to load dashboard")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *Handlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.store.GetMemberships(r.Context(), orgIDFrom(r.Context()))
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to list members")
		return
	}
	respondJSON(w, http.StatusOK, members)
}

func (h *Handlers) InviteMember(w http.ResponseWriter, r *http.Request) {
	if role := roleFrom(r.Context()); role != "" && role == crm.RoleMember {
		respondError(w, http.StatusForbidden, "members cannot invite")
		return
	}

	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" {
		respondError(w, http.StatusBadRequest, "email is required")
		return
	}
	if req.Role == "" {
		req.Role = crm.RoleMember
	}
	switch req.Role {
	case crm.RoleOwner, crm.RoleAdmin, crm.RoleMember:
	default:
		respondError(w, http.StatusBadRequest, "invalid role")
		return
	}

	m := &crm.Membership{
		OrganizationID: orgIDFrom(r.Context()),
		UserEmail:      req.Email,
		Role:           req.Role,
		InvitedBy:      emailFrom(r.Context()),
	}
	if err := h.store.CreateMembership(r.Context(), m); err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to invite member")
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

func (h *Handlers) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	if role := roleFrom(r.Context()); role != "" && role == crm.RoleMember {
		respondError(w, http.StatusForbidden, "members cannot change roles")
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch req.Role {
	case crm.RoleOwner, crm.RoleAdmin, crm.RoleMember:
	default:
		respondError(w, http.StatusBadRequest, "invalid role")
		return
	}

	email := chi.URLParam(r, "email")
	if err := h.store.UpdateMembershipRole(r.Context(), orgIDFrom(r.Context()), email, req.Role); err != nil {
		respondSafeError(w, http.StatusBadRequest, err, "failed to update role")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"email": email, "role": req.Role})
}

func (h *Handlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	if role := roleFrom(r.Context()); role != "" && role == crm.RoleMember {
		respondError(w, http.StatusForbidden, "members cannot remove members")
		return
	}
	email := chi.URLParam(r, "email")
	if err := h.store.DeleteMembership(r.Context(), orgIDFrom(r.Context()), email); err != nil {
		respondSafeError(w, http.StatusBadRequest, err, "failed to remove member")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"removed": email})
}

func (h *Handlers) ListSuppressions(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	sups, total, err := h.store.GetSuppressions(r.Context(), orgIDFrom(r.Context()), limit, offset)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to list suppressions")
		return
	}
	respondPage(w, sups, total, limit, offset)
}

func (h *Handlers) AddSuppression(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone  string `json:"phone"`
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	sup := &crm.Suppression{
		OrganizationID: orgIDFrom(r.Context()),
		Phone:          req.Phone,
		Reason:         req.Reason,
		Source:         "manual",
	}
	if err := h.store.AddSuppression(r.Context(), sup); err != nil {
		respondSafeError(w, http.StatusBadRequest, err, "failed to add suppression")
		return
	}
	respondJSON(w, http.StatusCreated, sup)
}

func (h *Handlers) RemoveSuppression(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phone")
	if err := h.store.RemoveSuppression(r.Context(), orgIDFrom(r.Context()), phone); err != nil {
		respondSafeError(w, http.StatusBadRequest, err, "failed to remove suppression")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"removed": phone})
}

func (h *Handlers) ListMessageEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	events, total, err := h.store.GetMessageEvents(r.Context(), orgIDFrom(r.Context()),
		r.URL.Query().Get("type"), limit, offset)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to list events")
		return
	}
	respondPage(w, events, total, limit, offset)
}

func (h *Handlers) ListImports(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	jobs, total, err := h.store.GetImportJobs(r.Context(), orgIDFrom(r.Context()), limit, offset)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to list imports")
		return
	}
	respondPage(w, jobs, total, limit, offset)
}

func (h *Handlers) GetImport(w http.ResponseWriter, r *http.Request) {
	jobID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := h.store.GetImportJob(r.Context(), orgIDFrom(r.Context()), jobID)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to load import")
		return
	}
	if job == nil {
		respondError(w, http.StatusNotFound, "import not found")
		return
	}
	respondJSON(w, http.StatusOK, job)
}

func (h *Handlers) ListWebhookEndpoints(w http.ResponseWriter, r *http.Request) {
	endpoints, err := h.store.GetWebhookEndpoints(r.Context(), orgIDFrom(r.Context()))
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to list webhooks")
		return
	}
	respondJSON(w, http.StatusOK, endpoints)
}

// CreateWebhookEndpoint registers a callback with the provider and
// mirrors it locally.
func (h *Handlers) CreateWebhookEndpoint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL    string   `json:"url"`
		Events []string `json:"events"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.URL == "" {
		respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	created, err := h.smsClient.CreateWebhook(r.Context(), sms.CreateWebhookRequest{
		URL:    req.URL,
		Events: req.Events,
	})
	if err != nil {
		respondSafeError(w, http.StatusBadGateway, err, "provider rejected webhook registration")
		return
	}

	ep := &crm.WebhookEndpoint{
		OrganizationID: orgIDFrom(r.Context()),
		ProviderSID:    created.SID,
		URL:            req.URL,
		Events:         req.Events,
	}
	if err := h.store.SaveWebhookEndpoint(r.Context(), ep); err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to save webhook")
		return
	}
	respondJSON(w, http.StatusCreated, ep)
}

func (h *Handlers) DeleteWebhookEndpoint(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")
	if err := h.smsClient.DeleteWebhook(r.Context(), sid); err != nil {
		respondSafeError(w, http.StatusBadGateway, err, "provider rejected webhook deletion")
		return
	}
	if err := h.store.DeleteWebhookEndpoint(r.Context(), orgIDFrom(r.Context()), sid); err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to delete webhook")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"deleted": sid})
}
