package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/zenportal/backend/internal/api/handlers"
	"github.com/zenportal/backend/internal/api/middleware"
	"github.com/zenportal/backend/internal/auth"
	"github.com/zenportal/backend/internal/config"
)

// Deps collects everything the router wires together; main builds it once.
type Deps struct {
	Config *config.Config

	SessionMW *auth.SessionMiddleware
	APIKeyMW  *auth.APIKeyMiddleware
	RateLimit *middleware.RateLimiter

	Health       *handlers.HealthHandler
	Auth         *handlers.AuthHandler
	Users        *handlers.UserHandler
	Workspaces   *handlers.WorkspaceHandler
	Clients      *handlers.ClientHandler
	Logs         *handlers.LogHandler
	Stats        *handlers.StatsHandler
	Billing      *handlers.BillingHandler
	Webhooks     *handlers.WebhookHandler
	Public       *handlers.PublicHandler
	Programmatic *handlers.ProgrammaticHandler
}

func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Config.App.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", auth.WorkspaceHintHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(d.RateLimit.Handler)

	r.Get("/healthz", d.Health.Live)
	r.Get("/readyz", d.Health.Ready)

	// Payment provider callbacks verify their own signature; no session.
	r.Post("/webhooks/paymongo", d.Webhooks.PayMongo)

	// Magic-link surfaces: the token or slug in the path is the credential.
	r.Get("/public/report/{token}", d.Public.Report)
	r.Get("/public/agency/{slug}", d.Public.AgencyPortal)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", d.Auth.Signup)
		r.Post("/auth/login", d.Auth.Login)
		r.Post("/auth/logout", d.Auth.Logout)

		// Key-authenticated programmatic surface.
		r.Route("/v1", func(r chi.Router) {
			r.With(d.APIKeyMW.RequireRead).Get("/logs", d.Programmatic.ListLogs)
			r.With(d.APIKeyMW.RequireWrite).Post("/logs", d.Programmatic.CreateLog)
		})

		// Session-authenticated surface.
		r.Group(func(r chi.Router) {
			r.Use(d.SessionMW.Authenticate)

			r.Get("/users/me", d.Users.Me)
			r.Patch("/users/me", d.Users.UpdateMe)

			r.Get("/workspaces", d.Workspaces.List)
			r.Post("/workspaces", d.Workspaces.Create)
			r.Post("/workspaces/{workspaceID}/default", d.Workspaces.SetDefault)
			r.Post("/invitations/{token}/accept", d.Workspaces.AcceptInvitation)

			// Everything below needs a resolved workspace.
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireWorkspace)

				r.Get("/workspaces/current", d.Workspaces.Current)
				r.Patch("/workspaces/current/settings", d.Workspaces.UpdateSettings)
				r.Get("/workspaces/current/members", d.Workspaces.Members)
				r.Post("/workspaces/current/invitations", d.Workspaces.Invite)
				r.Post("/workspaces/current/api-keys", d.Workspaces.RotateAPIKeys)

				r.Get("/clients", d.Clients.List)
				r.Post("/clients", d.Clients.Create)
				r.Get("/clients/{clientID}", d.Clients.Get)
				r.Patch("/clients/{clientID}", d.Clients.Update)
				r.Post("/clients/{clientID}/rotate-token", d.Clients.RotateToken)

				r.Get("/logs", d.Logs.List)
				r.Post("/logs", d.Logs.Create)
				r.Get("/logs/{logID}", d.Logs.Get)
				r.Patch("/logs/{logID}", d.Logs.Update)

				r.Get("/stats", d.Stats.Overview)
				r.Get("/stats/revenue", d.Stats.Revenue)
				r.Get("/stats/top-clients", d.Stats.TopClients)
				r.Get("/stats/usage", d.Stats.Usage)
				r.Get("/stats/export", d.Stats.Export)

				r.Post("/billing/checkout", d.Billing.CreateCheckout)
				r.Get("/billing/subscription", d.Billing.Subscription)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	})

	return r
}
