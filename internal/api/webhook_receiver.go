package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumenreach/engage/internal/crm"
	"github.com/lumenreach/engage/internal/journeys"
	"github.com/lumenreach/engage/internal/pkg/logger"
	"github.com/lumenreach/engage/internal/sms"
)

const maxWebhookBody = 256 * 1024

var stopKeywords = map[string]bool{
	"STOP":        true,
	"STOPALL":     true,
	"UNSUBSCRIBE": true,
	"CANCEL":      true,
	"END":         true,
	"QUIT":        true,
}

// ReceiveProviderWebhook ingests delivery, click and inbound-message events
// from the SMS provider. Events are deduplicated by provider event ID, so
// provider retries are safe.
func (h *Handlers) ReceiveProviderWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if !sms.VerifySignature(h.webhookSecret, body, r.Header.Get("X-Webhook-Signature")) {
		respondError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var event sms.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if event.EventID == "" || event.EventType == "" {
		respondError(w, http.StatusBadRequest, "event_id and event_type are required")
		return
	}

	ctx := r.Context()
	switch event.EventType {
	case sms.WebhookMessageSent, sms.WebhookMessageDelivered, sms.WebhookMessageFailed, sms.WebhookMessageUndelivered:
		err = h.handleStatusEvent(ctx, &event)
	case sms.WebhookLinkClicked:
		err = h.handleClickEvent(ctx, &event)
	case sms.WebhookMessageReceived:
		err = h.handleInboundMessage(ctx, &event)
	default:
		logger.Warn("unknown webhook event type", "event_type", event.EventType)
	}
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to process event")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func statusEventType(eventType string) (string, string) {
	switch eventType {
	case sms.WebhookMessageDelivered:
		return crm.EventDelivered, crm.MessageDelivered
	case sms.WebhookMessageFailed:
		return crm.EventFailed, crm.MessageFailed
	case sms.WebhookMessageUndelivered:
		return crm.EventUndelivered, crm.MessageUndelivered
	default:
		return crm.EventSent, crm.MessageSent
	}
}

func (h *Handlers) handleStatusEvent(ctx context.Context, event *sms.WebhookEvent) error {
	msg, err := h.store.GetMessageByProviderSID(ctx, event.MessageSID)
	if err != nil {
		return err
	}
	if msg == nil {
		logger.Warn("status event for unknown message", "provider_sid", event.MessageSID)
		return nil
	}

	eventType, messageStatus := statusEventType(event.EventType)
	recorded, err := h.store.RecordMessageEvent(ctx, &crm.MessageEvent{
		OrganizationID: msg.OrganizationID,
		MessageID:      &msg.ID,
		CampaignID:     msg.CampaignID,
		ProviderSID:    event.MessageSID,
		ProviderEvent:  event.EventID,
		EventType:      eventType,
		ErrorCode:      event.ErrorCode,
		OccurredAt:     eventTime(event),
	})
	if err != nil || !recorded {
		return err
	}

	if err := h.store.UpdateMessageStatus(ctx, msg.ID, messageStatus, event.ErrorCode); err != nil {
		return err
	}
	if msg.CampaignID != nil && eventType != crm.EventSent {
		if err := h.store.IncrementCampaignCounter(ctx, *msg.CampaignID, eventType); err != nil {
			logger.Warn("failed to bump campaign counter", "campaign_id", *msg.CampaignID, "error", err)
		}
	}
	return nil
}

func (h *Handlers) handleClickEvent(ctx context.Context, event *sms.WebhookEvent) error {
	msg, err := h.store.GetMessageByProviderSID(ctx, event.MessageSID)
	if err != nil {
		return err
	}
	if msg == nil {
		logger.Warn("click event for unknown message", "provider_sid", event.MessageSID)
		return nil
	}

	recorded, err := h.store.RecordMessageEvent(ctx, &crm.MessageEvent{
		OrganizationID: msg.OrganizationID,
		MessageID:      &msg.ID,
		CampaignID:     msg.CampaignID,
		ProviderSID:    event.MessageSID,
		ProviderEvent:  event.EventID,
		EventType:      crm.EventClicked,
		Payload:        crm.JSON{"link_url": event.LinkURL},
		OccurredAt:     eventTime(event),
	})
	if err != nil || !recorded {
		return err
	}

	if msg.ContactID != nil {
		if err := h.store.RecordContactClick(ctx, msg.OrganizationID, *msg.ContactID); err != nil {
			return err
		}
	}
	if msg.CampaignID != nil {
		if err := h.store.IncrementCampaignCounter(ctx, *msg.CampaignID, crm.EventClicked); err != nil {
			logger.Warn("failed to bump campaign counter", "campaign_id", *msg.CampaignID, "error", err)
		}
	}
	return nil
}

func (h *Handlers) handleInboundMessage(ctx context.Context, event *sms.WebhookEvent) error {
	org, err := h.store.GetOrganizationByFromNumber(ctx, event.To)
	if err != nil {
		return err
	}
	if org == nil {
		logger.Warn("inbound message for unknown number", "to", event.To)
		return nil
	}

	contact, err := h.store.GetContactByPhone(ctx, org.ID, event.From)
	if err != nil {
		return err
	}
	if contact == nil {
		contact = &crm.Contact{
			OrganizationID: org.ID,
			Phone:          event.From,
			Status:         crm.ContactSubscribed,
			Source:         "inbound",
		}
		if err := h.store.CreateContact(ctx, contact); err != nil {
			return err
		}
	}

	recorded, err := h.store.RecordMessageEvent(ctx, &crm.MessageEvent{
		OrganizationID: org.ID,
		ProviderSID:    event.MessageSID,
		ProviderEvent:  event.EventID,
		EventType:      crm.EventReceived,
		OccurredAt:     eventTime(event),
	})
	if err != nil || !recorded {
		return err
	}

	conv, err := h.store.GetOrCreateConversation(ctx, org.ID, contact.ID, contact.Phone)
	if err != nil {
		return err
	}
	now := eventTime(event)
	if err := h.store.CreateMessage(ctx, &crm.Message{
		OrganizationID: org.ID,
		ConversationID: conv.ID,
		ContactID:      &contact.ID,
		ProviderSID:    event.MessageSID,
		Direction:      crm.DirectionInbound,
		FromNumber:     event.From,
		ToNumber:       event.To,
		Body:           event.Body,
		Status:         crm.MessageReceived,
		SegmentsCount:  event.NumSegments,
		SentAt:         &now,
	}); err != nil {
		return err
	}

	if stopKeywords[normalizeKeyword(event.Body)] {
		if err := h.store.UnsubscribeContact(ctx, org.ID, contact.Phone, "stop_keyword"); err != nil {
			return err
		}
		h.triggerJourney(org.ID, contact.ID, journeys.TriggerContactOptedOut)
		return nil
	}

	if err := h.store.RecordContactReply(ctx, org.ID, contact.ID); err != nil {
		return err
	}
	h.triggerJourney(org.ID, contact.ID, journeys.TriggerMessageReplied)
	return nil
}

func (h *Handlers) triggerJourney(orgID, contactID uuid.UUID, event string) {
	if h.journeyEngine == nil {
		return
	}
	if err := h.journeyEngine.Trigger(orgID, contactID, event); err != nil {
		logger.Warn("journey trigger failed", "event", event, "contact_id", contactID, "error", err)
	}
}

func normalizeKeyword(body string) string {
	return strings.ToUpper(strings.TrimSpace(body))
}

func eventTime(event *sms.WebhookEvent) time.Time {
	if !event.Timestamp.IsZero() {
		return event.Timestamp
	}
	return time.Now()
}
