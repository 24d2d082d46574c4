package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lumenreach/engage/internal/auth"
	"github.com/lumenreach/engage/internal/crm"
	"github.com/lumenreach/engage/internal/journeys"
	"github.com/lumenreach/engage/internal/segmentation"
	"github.com/lumenreach/engage/internal/sms"
	"github.com/lumenreach/engage/internal/storage"
	"github.com/lumenreach/engage/internal/worker"
)

// Handlers carries the service dependencies for every endpoint.
type Handlers struct {
	store         *crm.Store
	segments      *segmentation.Engine
	journeyEngine *journeys.Engine
	smsClient     *sms.Client
	files         storage.FileStore
	scheduler     *worker.CampaignScheduler
	authManager   *auth.Manager
	renderer      *crm.Renderer
	webhookSecret string
	startedAt     time.Time
}

func NewHandlers(
	store *crm.Store,
	segments *segmentation.Engine,
	journeyEngine *journeys.Engine,
	smsClient *sms.Client,
	files storage.FileStore,
	scheduler *worker.CampaignScheduler,
	authManager *auth.Manager,
	webhookSecret string,
) *Handlers {
	return &Handlers{
		store:         store,
		segments:      segments,
		journeyEngine: journeyEngine,
		smsClient:     smsClient,
		files:         files,
		scheduler:     scheduler,
		authManager:   authManager,
		renderer:      crm.NewRenderer(),
		webhookSecret: webhookSecret,
		startedAt:     time.Now(),
	}
}

func (h *Handlers) session(r *http.Request) *auth.Session {
	if h.authManager == nil {
		return nil
	}
	return h.authManager.GetSession(r)
}

// HealthCheck reports process liveness plus background engine state.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.startedAt).Round(time.Second).String(),
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.DB().PingContext(ctx); err != nil {
		resp["status"] = "degraded"
		resp["database"] = "unreachable"
	} else {
		resp["database"] = "ok"
	}
	if h.journeyEngine != nil {
		resp["journey_engine"] = map[string]interface{}{
			"healthy":     h.journeyEngine.IsHealthy(),
			"last_run_at": h.journeyEngine.LastRunAt(),
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// urlID parses a UUID path parameter.
func urlID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// decodeBody decodes a JSON request body into dst with a size cap.
func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body")
	}
	return nil
}
