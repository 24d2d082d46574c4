package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumenreach/engage/internal/crm"
	"github.com/lumenreach/engage/internal/pkg/logger"
	"github.com/lumenreach/engage/internal/sms"
)

// SMSSender is the provider surface the send pipeline needs. Satisfied
// by *sms.Client.
type SMSSender interface {
	SendMessage(ctx context.Context, req sms.SendMessageRequest) (*sms.MessageResponse, error)
}

// Sender renders and delivers outbound messages, recording each one in
// the conversation history. Shared by the campaign processor and the
// journey engine.
type Sender struct {
	store    *crm.Store
	renderer *crm.Renderer
	client   SMSSender
	limiter  *RateLimiter
}

func NewSender(store *crm.Store, client SMSSender, limiter *RateLimiter) *Sender {
	return &Sender{
		store:    store,
		renderer: crm.NewRenderer(),
		client:   client,
		limiter:  limiter,
	}
}

type sendRequest struct {
	orgID      uuid.UUID
	contact    *crm.Contact
	body       string
	fromNumber string
	mediaURL   string
	campaignID *uuid.UUID
	journeyID  *uuid.UUID
}

func (s *Sender) send(ctx context.Context, req sendRequest) (*crm.Message, error) {
	if req.contact.Status != crm.ContactSubscribed {
		return nil, fmt.Errorf("contact %s is not subscribed", req.contact.ID)
	}
	suppressed, err := s.store.IsSuppressed(ctx, req.orgID, req.contact.Phone)
	if err != nil {
		return nil, err
	}
	if suppressed {
		return nil, fmt.Errorf("contact %s is suppressed", req.contact.ID)
	}

	rendered, err := s.renderer.Render(req.body, req.contact)
	if err != nil {
		return nil, fmt.Errorf("rendering message: %w", err)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, req.orgID, 1); err != nil {
			return nil, err
		}
	}

	resp, err := s.client.SendMessage(ctx, sms.SendMessageRequest{
		From:     req.fromNumber,
		To:       req.contact.Phone,
		Body:     rendered,
		MediaURL: req.mediaURL,
	})
	if err != nil {
		return nil, err
	}

	conv, err := s.store.GetOrCreateConversation(ctx, req.orgID, req.contact.ID, req.contact.Phone)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	msg := &crm.Message{
		OrganizationID: req.orgID,
		ConversationID: conv.ID,
		ContactID:      &req.contact.ID,
		CampaignID:     req.campaignID,
		JourneyID:      req.journeyID,
		ProviderSID:    resp.SID,
		Direction:      crm.DirectionOutbound,
		FromNumber:     req.fromNumber,
		ToNumber:       req.contact.Phone,
		Body:           rendered,
		MediaURL:       req.mediaURL,
		Status:         crm.MessageSent,
		SegmentsCount:  resp.NumSegments,
		SentAt:         &now,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("recording message: %w", err)
	}
	if err := s.store.RecordContactMessage(ctx, req.orgID, req.contact.ID); err != nil {
		logger.Warn("failed to update contact message stats",
			"contact_id", req.contact.ID.String(), "error", err.Error())
	}
	return msg, nil
}

// SendCampaignMessage delivers one campaign queue item.
func (s *Sender) SendCampaignMessage(ctx context.Context, campaign *crm.Campaign, item *crm.QueueItem) (*crm.Message, error) {
	contact, err := s.store.GetContact(ctx, campaign.OrganizationID, item.ContactID)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, fmt.Errorf("contact %s not found", item.ContactID)
	}
	return s.send(ctx, sendRequest{
		orgID:      campaign.OrganizationID,
		contact:    contact,
		body:       campaign.Body,
		fromNumber: campaign.FromNumber,
		mediaURL:   campaign.MediaURL,
		campaignID: &campaign.ID,
	})
}

// SendJourneyMessage delivers one journey step message using the named
// template. Implements journeys.MessageSender.
func (s *Sender) SendJourneyMessage(ctx context.Context, orgID, journeyID, contactID uuid.UUID, templateName string) error {
	tmpl, err := s.store.GetTemplateByName(ctx, orgID, templateName)
	if err != nil {
		return err
	}
	if tmpl == nil {
		return fmt.Errorf("template %q not found", templateName)
	}
	contact, err := s.store.GetContact(ctx, orgID, contactID)
	if err != nil {
		return err
	}
	if contact == nil {
		return fmt.Errorf("contact %s not found", contactID)
	}

	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	fromNumber := ""
	if org != nil {
		if v, ok := org.Settings["from_number"].(string); ok {
			fromNumber = v
		}
	}
	if fromNumber == "" {
		return fmt.Errorf("organization %s has no from_number configured", orgID)
	}

	_, err = s.send(ctx, sendRequest{
		orgID:      orgID,
		contact:    contact,
		body:       tmpl.Body,
		fromNumber: fromNumber,
		mediaURL:   tmpl.MediaURL,
		journeyID:  &journeyID,
	})
	return err
}
