package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/lumenreach/engage/internal/auth"
)

// SetupRoutes wires the full HTTP surface. /health and /auth/* and the
// provider webhook are open; everything under /api requires a session
// and an organization context.
func SetupRoutes(h *Handlers, authManager *auth.Manager, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Organization-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)

	if authManager != nil {
		r.Get("/auth/login", authManager.HandleLogin)
		r.Get("/auth/callback", authManager.HandleCallback)
		r.Get("/auth/logout", authManager.HandleLogout)
		r.Get("/auth/user", authManager.HandleUserInfo)
	}

	// Provider callbacks authenticate with an HMAC signature, not a session.
	r.Post("/webhooks/sms", h.ReceiveProviderWebhook)

	r.Route("/api", func(r chi.Router) {
		if authManager != nil {
			r.Use(authManager.RequireAuth)
		}

		// Organization discovery happens before an org is selected.
		r.Get("/organizations", h.ListOrganizations)
		r.Post("/organizations", h.CreateOrganization)

		r.Group(func(r chi.Router) {
			r.Use(h.OrgContext)

			r.Get("/dashboard", h.GetDashboard)

			r.Route("/lists", func(r chi.Router) {
				r.Get("/", h.ListLists)
				r.Post("/", h.CreateList)
				r.Get("/{id}", h.GetList)
				r.Put("/{id}", h.UpdateList)
				r.Delete("/{id}", h.ArchiveList)
				r.Get("/{id}/contacts", h.ListContactsForList)
				r.Post("/{id}/import", h.UploadImport)
			})

			r.Route("/contacts", func(r chi.Router) {
				r.Get("/", h.ListContacts)
				r.Post("/", h.CreateContact)
				r.Get("/{id}", h.GetContact)
				r.Put("/{id}", h.UpdateContact)
				r.Delete("/{id}", h.DeleteContact)
				r.Post("/{id}/tags", h.AddContactTags)
				r.Delete("/{id}/tags/{tag}", h.RemoveContactTag)
				r.Post("/{id}/unsubscribe", h.UnsubscribeContact)
			})

			r.Route("/segments", func(r chi.Router) {
				r.Get("/", h.ListSegments)
				r.Post("/", h.CreateSegment)
				r.Post("/preview", h.PreviewSegment)
				r.Get("/{id}", h.GetSegment)
				r.Put("/{id}", h.UpdateSegment)
				r.Delete("/{id}", h.ArchiveSegment)
				r.Post("/{id}/refresh", h.RefreshSegment)
				r.Get("/{id}/contacts", h.ListSegmentContacts)
			})

			r.Route("/campaigns", func(r chi.Router) {
				r.Get("/", h.ListCampaigns)
				r.Post("/", h.CreateCampaign)
				r.Get("/{id}", h.GetCampaign)
				r.Put("/{id}", h.UpdateCampaign)
				r.Delete("/{id}", h.DeleteCampaign)
				r.Post("/{id}/schedule", h.ScheduleCampaign)
				r.Post("/{id}/send", h.SendCampaign)
				r.Post("/{id}/pause", h.PauseCampaign)
				r.Post("/{id}/resume", h.ResumeCampaign)
				r.Post("/{id}/cancel", h.CancelCampaign)
				r.Get("/{id}/stats", h.GetCampaignStats)
			})

			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", h.ListConversations)
				r.Get("/{id}", h.GetConversation)
				r.Post("/{id}/read", h.MarkConversationRead)
				r.Get("/{id}/messages", h.ListMessages)
				r.Post("/{id}/messages", h.SendConversationMessage)
			})

			r.Route("/journeys", func(r chi.Router) {
				r.Get("/", h.ListJourneys)
				r.Post("/", h.CreateJourney)
				r.Get("/{id}", h.GetJourney)
				r.Put("/{id}", h.UpdateJourney)
				r.Delete("/{id}", h.ArchiveJourney)
				r.Get("/{id}/enrollments", h.ListJourneyEnrollments)
				r.Get("/{id}/stats", h.GetJourneyStats)
			})

			r.Route("/templates", func(r chi.Router) {
				r.Get("/", h.ListTemplates)
				r.Post("/", h.CreateTemplate)
				r.Get("/{id}", h.GetTemplate)
				r.Put("/{id}", h.UpdateTemplate)
				r.Delete("/{id}", h.DeleteTemplate)
			})

			r.Route("/suppressions", func(r chi.Router) {
				r.Get("/", h.ListSuppressions)
				r.Post("/", h.AddSuppression)
				r.Delete("/{phone}", h.RemoveSuppression)
			})

			r.Route("/webhook-endpoints", func(r chi.Router) {
				r.Get("/", h.ListWebhookEndpoints)
				r.Post("/", h.CreateWebhookEndpoint)
				r.Delete("/{sid}", h.DeleteWebhookEndpoint)
			})

			r.Get("/message-events", h.ListMessageEvents)

			r.Route("/members", func(r chi.Router) {
				r.Get("/", h.ListMembers)
				r.Post("/", h.InviteMember)
				r.Put("/{email}", h.UpdateMemberRole)
				r.Delete("/{email}", h.RemoveMember)
			})

			r.Route("/imports", func(r chi.Router) {
				r.Get("/", h.ListImports)
				r.Get("/{id}", h.GetImport)
			})
		})
	})

	return r
}
