package journeys

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumenreach/engage/internal/pkg/logger"
)

// Engine advances journey enrollments on a ticker and starts new ones
// when Trigger is called.
type Engine struct {
	store    *Store
	db       *sql.DB
	sender   MessageSender
	interval time.Duration
	batch    int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	lastRunAt time.Time
	healthy   bool
}

func NewEngine(db *sql.DB, sender MessageSender, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:    NewStore(db),
		db:       db,
		sender:   sender,
		interval: interval,
		batch:    100,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (e *Engine) Store() *Store { return e.store }

func (e *Engine) Start() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		logger.Info("journey engine started", "interval", e.interval.String())
		for {
			select {
			case <-e.ctx.Done():
				return
			case <-ticker.C:
				e.tick()
			}
		}
	}()
}

func (e *Engine) Stop() {
	e.cancel()
	e.wg.Wait()
	logger.Info("journey engine stopped")
}

func (e *Engine) IsHealthy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.healthy
}

func (e *Engine) LastRunAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastRunAt
}

// Trigger starts the contact on every active journey listening for the
// event. Contacts already enrolled are skipped.
func (e *Engine) Trigger(orgID, contactID uuid.UUID, event string) error {
	journeys, err := e.store.GetActiveJourneysByTrigger(orgID, event)
	if err != nil {
		return fmt.Errorf("failed to load journeys for trigger: %w", err)
	}
	for _, j := range journeys {
		exists, err := e.store.ExistsEnrollment(j.ID, contactID)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		now := time.Now()
		enrollment := &Enrollment{
			JourneyID: j.ID,
			ContactID: contactID,
			NextRunAt: &now,
		}
		if err := e.store.CreateEnrollment(enrollment); err != nil {
			return fmt.Errorf("failed to enroll contact: %w", err)
		}
		logger.Info("contact enrolled in journey",
			"journey_id", j.ID.String(), "contact_id", contactID.String(), "event", event)
	}
	return nil
}

func (e *Engine) tick() {
	e.mu.Lock()
	e.lastRunAt = time.Now()
	e.mu.Unlock()

	due, err := e.store.ListDueEnrollments(e.batch)
	if err != nil {
		logger.Error("failed to list due enrollments", "error", err.Error())
		e.setHealthy(false)
		return
	}
	for _, enrollment := range due {
		if err := e.advance(enrollment); err != nil {
			logger.Error("failed to advance enrollment",
				"enrollment_id", enrollment.ID.String(), "error", err.Error())
		}
	}
	e.setHealthy(true)
}

func (e *Engine) setHealthy(h bool) {
	e.mu.Lock()
	e.healthy = h
	e.mu.Unlock()
}

func (e *Engine) advance(enrollment *Enrollment) error {
	journey, org, err := e.loadJourney(enrollment.JourneyID)
	if err != nil {
		return err
	}
	if journey == nil || journey.Status != "active" {
		return e.store.CompleteEnrollment(enrollment.ID)
	}

	step := enrollment.CurrentStep
	for step < len(journey.Steps) {
		current := journey.Steps[step]
		switch current.Type {
		case StepSendMessage:
			err := e.sender.SendJourneyMessage(e.ctx, org, journey.ID, enrollment.ContactID, current.Template)
			if err != nil {
				logger.Error("journey message send failed",
					"journey_id", journey.ID.String(),
					"contact_id", enrollment.ContactID.String(),
					"template", current.Template, "error", err.Error())
				return e.store.FailEnrollment(enrollment.ID)
			}
			step++
			// Persist the position before touching the next step. If a
			// later step errors, the next tick resumes here instead of
			// re-sending the message.
			if err := e.store.AdvanceEnrollment(enrollment.ID, step, time.Now()); err != nil {
				return err
			}

		case StepWait:
			next := time.Now().Add(time.Duration(current.DelayHours) * time.Hour)
			return e.store.AdvanceEnrollment(enrollment.ID, step+1, next)

		case StepCondition:
			ok, err := e.evaluate(org, enrollment.ContactID, current.Check)
			if err != nil {
				return err
			}
			if !ok && current.OnFalse != "continue" {
				return e.store.CompleteEnrollment(enrollment.ID)
			}
			step++

		default:
			return e.store.FailEnrollment(enrollment.ID)
		}
	}
	return e.store.CompleteEnrollment(enrollment.ID)
}

func (e *Engine) loadJourney(id uuid.UUID) (*Journey, uuid.UUID, error) {
	query := `SELECT ` + journeyColumns + ` FROM journeys WHERE id = $1`
	j, err := e.store.scanJourney(e.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, uuid.Nil, nil
	}
	if err != nil {
		return nil, uuid.Nil, err
	}
	return j, j.OrganizationID, nil
}

func (e *Engine) evaluate(orgID, contactID uuid.UUID, check string) (bool, error) {
	var result bool
	switch check {
	case CheckHasReplied:
		query := `SELECT EXISTS(
			SELECT 1 FROM messages
			WHERE organization_id = $1 AND contact_id = $2 AND direction = 'inbound')`
		err := e.db.QueryRow(query, orgID, contactID).Scan(&result)
		return result, err
	case CheckHasClicked:
		query := `SELECT total_clicks > 0 FROM contacts WHERE id = $1 AND organization_id = $2`
		err := e.db.QueryRow(query, contactID, orgID).Scan(&result)
		if err == sql.ErrNoRows {
			return false, nil
		}
		return result, err
	case CheckIsActive:
		query := `SELECT status = 'subscribed' FROM contacts WHERE id = $1 AND organization_id = $2`
		err := e.db.QueryRow(query, contactID, orgID).Scan(&result)
		if err == sql.ErrNoRows {
			return false, nil
		}
		return result, err
	default:
		return false, fmt.Errorf("unknown condition check %q", check)
	}
}
