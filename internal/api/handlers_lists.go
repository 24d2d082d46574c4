package api

import (
	"net/http"

	"github.com/lumenreach/engage/internal/crm"
	"github.com/lumenreach/engage/internal/storage"
)

func (h *Handlers) ListLists(w http.ResponseWriter, r *http.Request) {
	lists, err := h.store.GetLists(r.Context(), orgIDFrom(r.Context()))
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to list lists")
		return
	}
	respondJSON(w, http.StatusOK, lists)
}

func (h *Handlers) CreateList(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	list := &crm.List{
		OrganizationID: orgIDFrom(r.Context()),
		Name:           req.Name,
		Description:    req.Description,
	}
	if err := h.store.CreateList(r.Context(), list); err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to create list")
		return
	}
	respondJSON(w, http.StatusCreated, list)
}

func (h *Handlers) GetList(w http.ResponseWriter, r *http.Request) {
	listID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := h.store.GetList(r.Context(), orgIDFrom(r.Context()), listID)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to load list")
		return
	}
	if list == nil {
		respondError(w, http.StatusNotFound, "list not found")
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handlers) UpdateList(w http.ResponseWriter, r *http.Request) {
	listID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := h.store.GetList(r.Context(), orgIDFrom(r.Context()), listID)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to load list")
		return
	}
	if list == nil {
		respondError(w, http.StatusNotFound, "list not found")
		return
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name != nil {
		list.Name = *req.Name
	}
	if req.Description != nil {
		list.Description = *req.Description
	}
	if err := h.store.UpdateList(r.Context(), list); err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to update list")
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handlers) ArchiveList(w http.ResponseWriter, r *http.Request) {
	listID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.ArchiveList(r.Context(), orgIDFrom(r.Context()), listID); err != nil {
		respondSafeError(w, http.StatusBadRequest, err, "failed to archive list")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "archived"})
}

func (h *Handlers) ListContactsForList(w http.ResponseWriter, r *http.Request) {
	listID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, offset := pageParams(r)
	contacts, total, err := h.store.GetContacts(r.Context(), orgIDFrom(r.Context()),
		crm.ContactFilter{ListID: &listID}, limit, offset)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to list contacts")
		return
	}
	respondPage(w, contacts, total, limit, offset)
}

// UploadImport accepts a multipart CSV upload, stores the file, and
// creates a pending import job for the worker.
func (h *Handlers) UploadImport(w http.ResponseWriter, r *http.Request) {
	listID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	orgID := orgIDFrom(r.Context())

	list, err := h.store.GetList(r.Context(), orgID, listID)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to load list")
		return
	}
	if list == nil {
		respondError(w, http.StatusNotFound, "list not found")
		return
	}

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	key := storage.ImportKey(orgID, header.Filename)
	if err := h.files.Put(r.Context(), key, file); err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to store upload")
		return
	}

	job := &crm.ImportJob{
		OrganizationID: orgID,
		ListID:         listID,
		FileName:       header.Filename,
		StorageKey:     key,
		CreatedBy:      emailFrom(r.Context()),
	}
	if err := h.store.CreateImportJob(r.Context(), job); err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to create import job")
		return
	}
	respondJSON(w, http.StatusAccepted, job)
}
