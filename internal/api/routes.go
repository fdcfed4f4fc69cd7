package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/pulsemail/internal/auth"
)

// SetupRoutes builds the router. authManager may be nil, in which case the
// auth endpoints are absent and every request falls through to the demo
// tenant (local development and tests).
func SetupRoutes(h *Handlers, authManager *auth.Manager, demoUserID string, enforceAuth bool) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "x-user-id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.HandleHealth)

	if authManager != nil {
		r.Route("/auth", func(r chi.Router) {
			r.Get("/login", authManager.HandleLogin)
			r.Get("/callback", authManager.HandleCallback)
			r.Get("/logout", authManager.HandleLogout)
			r.Get("/me", authManager.HandleUserInfo)
		})
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Principal(authManager, demoUserID, enforceAuth))

		r.Get("/dashboard/stats", h.HandleDashboardStats)

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", h.HandleListCampaigns)
			r.Post("/", h.HandleCreateCampaign)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.HandleGetCampaign)
				r.Put("/", h.HandleUpdateCampaign)
				r.Delete("/", h.HandleDeleteCampaign)
				r.Post("/start", h.HandleStartCampaign)
				r.Post("/pause", h.HandlePauseCampaign)
				r.Post("/resume", h.HandleResumeCampaign)
				r.Post("/rerun", h.HandleRerunCampaign)
				r.Post("/duplicate", h.HandleDuplicateCampaign)
				r.Get("/analytics", h.HandleCampaignAnalytics)
				r.Get("/runs", h.HandleCampaignRuns)
				r.Get("/logs", h.HandleCampaignLogs)
			})
		})

		r.Route("/contacts", func(r chi.Router) {
			r.Get("/", h.HandleListContacts)
			r.Post("/", h.HandleCreateContact)
			r.Post("/bulk", h.HandleBulkContacts)
			r.Post("/merge", h.HandleMergeContacts)
			r.Post("/import", h.HandleImportContacts)
			r.Route("/duplicates", func(r chi.Router) {
				r.Get("/", h.HandleListDuplicates)
				r.Post("/scan", h.HandleScanDuplicates)
				r.Post("/{id}/ignore", h.HandleIgnoreDuplicate)
				r.Post("/{id}/merge", h.HandleMergeDuplicate)
			})
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.HandleGetContact)
				r.Put("/", h.HandleUpdateContact)
				r.Delete("/", h.HandleDeleteContact)
				r.Get("/activities", h.HandleContactActivities)
				r.Post("/notes", h.HandleAddContactNote)
			})
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", h.HandleListTemplates)
			r.Post("/", h.HandleCreateTemplate)
			r.Post("/preview", h.HandlePreviewTemplate)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.HandleGetTemplate)
				r.Put("/", h.HandleUpdateTemplate)
				r.Delete("/", h.HandleDeleteTemplate)
			})
		})
	})

	return r
}
