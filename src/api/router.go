package api

import (
	"net/http"

	"royal-server/src/db"
	sqldb "royal-server/src/db/sql"
	"royal-server/src/handlers"
	"royal-server/src/middleware"

	"github.com/go-chi/chi/v5"
)

type Deps struct {
	Store     *sqldb.Store
	Cache     *db.Cache
	Users     handlers.UserSyncer
	Snapshots handlers.Snapshotter
	Sweep     handlers.Sweeper
	Webhooks  handlers.WebhookVerifier
	// Metrics, when set, is served at /metrics.
	Metrics http.Handler

	JWTSecret      string
	CronSecret     string
	CronSecretHash string
	AllowedOrigins []string
	DemoMode       bool
}

func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.CORSMiddleware(d.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/plaid/webhook", handlers.PlaidWebhook(d.Webhooks, d.Store, d.Users, d.Snapshots, d.Cache))
		r.With(middleware.CronSecretMiddleware(d.CronSecret, d.CronSecretHash)).
			Post("/cron/sync", handlers.CronSync(d.Sweep))

		// Protected routes
		r.With(middleware.JWTAuthMiddleware(d.JWTSecret), middleware.DemoModeMiddleware(d.DemoMode)).Group(func(r chi.Router) {
			r.Post("/sync", handlers.SyncUser(d.Users, d.Snapshots, d.Cache))
			r.Get("/sync/history", handlers.GetSyncHistory(d.Store, d.Cache))
			r.Get("/net-worth/history", handlers.GetNetWorthHistory(d.Store, d.Cache))
			r.Get("/accounts", handlers.GetAccounts(d.Store, d.Cache))
			r.Get("/items", handlers.GetItems(d.Store))
		})

		// Super Admin Routes
		r.With(middleware.JWTAuthMiddleware(d.JWTSecret), middleware.SuperAdminMiddleware).Group(func(r chi.Router) {
			r.Post("/admin/sync/{user_id}", handlers.AdminSyncUser(d.Users, d.Snapshots, d.Cache))
		})
	})

	return r
}
