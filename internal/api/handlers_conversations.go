package api

import (
	"net/http"
	"time"

	"github.com/lumenreach/engage/internal/crm"
	"github.com/lumenreach/engage/internal/sms"
)

func (h *Handlers) ListConversations(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	unreadOnly := r.URL.Query().Get("unread") == "true"
	conversations, total, err := h.store.GetConversations(r.Context(), orgIDFrom(r.Context()), unreadOnly, limit, offset)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to list conversations")
		return
	}
	respondPage(w, conversations, total, limit, offset)
}

func (h *Handlers) GetConversation(w http.ResponseWriter, r *http.Request) {
	convID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	conv, err := h.store.GetConversation(r.Context(), orgIDFrom(r.Context()), convID)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to load conversation")
		return
	}
	if conv == nil {
		respondError(w, http.StatusNotFound, "conversation not found")
		return
	}
	respondJSON(w, http.StatusOK, conv)
}

func (h *Handlers) MarkConversationRead(w http.ResponseWriter, r *http.Request) {
	convID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.MarkConversationRead(r.Context(), orgIDFrom(r.Context()), convID); err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to mark conversation read")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	convID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, offset := pageParams(r)
	messages, total, err := h.store.GetMessages(r.Context(), orgIDFrom(r.Context()), convID, limit, offset)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to list messages")
		return
	}
	respondPage(w, messages, total, limit, offset)
}

// SendConversationMessage sends a manual reply from the inbox.
func (h *Handlers) SendConversationMessage(w http.ResponseWriter, r *http.Request) {
	convID, err := urlID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req struct {
		Body     string `json:"body"`
		MediaURL string `json:"media_url"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Body == "" {
		respondError(w, http.StatusBadRequest, "body is required")
		return
	}

	orgID := orgIDFrom(r.Context())
	conv, err := h.store.GetConversation(r.Context(), orgID, convID)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to load conversation")
		return
	}
	if conv == nil {
		respondError(w, http.StatusNotFound, "conversation not found")
		return
	}

	suppressed, err := h.store.IsSuppressed(r.Context(), orgID, conv.Phone)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to check suppression")
		return
	}
	if suppressed {
		respondError(w, http.StatusConflict, "recipient is suppressed")
		return
	}

	org, err := h.store.GetOrganization(r.Context(), orgID)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to load organization")
		return
	}
	if org == nil {
		respondError(w, http.StatusNotFound, "organization not found")
		return
	}
	fromNumber, _ := org.Settings["from_number"].(string)
	if fromNumber == "" {
		respondError(w, http.StatusConflict, "organization has no from_number configured")
		return
	}

	resp, err := h.smsClient.SendMessage(r.Context(), sms.SendMessageRequest{
		From:     fromNumber,
		To:       conv.Phone,
		Body:     req.Body,
		MediaURL: req.MediaURL,
	})
	if err != nil {
		respondSafeError(w, http.StatusBadGateway, err, "provider send failed")
		return
	}

	now := time.Now()
	msg := &crm.Message{
		OrganizationID: orgID,
		ConversationID: conv.ID,
		ContactID:      &conv.ContactID,
		ProviderSID:    resp.SID,
		Direction:      crm.DirectionOutbound,
		FromNumber:     fromNumber,
		ToNumber:       conv.Phone,
		Body:           req.Body,
		MediaURL:       req.MediaURL,
		Status:         crm.MessageSent,
		SegmentsCount:  resp.NumSegments,
		SentAt:         &now,
	}
	if err := h.store.CreateMessage(r.Context(), msg); err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to record message")
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}
