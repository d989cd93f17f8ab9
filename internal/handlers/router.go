package handlers

import (
	"net/http"

	"medwaste-backend/internal/middleware"
	"medwaste-backend/internal/models"
	"medwaste-backend/internal/services"
	"medwaste-backend/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts the API, the websocket endpoint, health and metrics.
// hub may be nil, in which case /ws is not served.
func NewRouter(svc *services.WasteService, hub *websocket.Hub, jwtSecret string) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// WebSocket endpoint (authentication handled in handler via query param)
	if hub != nil {
		r.Get("/ws", websocket.HandleWebSocket(hub, jwtSecret))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(jwtSecret))
		r.Use(withActor)

		// Dashboard reads (any authenticated role, regulators included)
		r.Get("/bins", GetBins(svc))
		r.Get("/waste-entries", GetWasteEntries(svc))
		r.Get("/pickup-requests", GetPickupRequests(svc))
		r.Get("/activity-logs", GetActivityLogs(svc))

		// App diagnostics
		r.Post("/logs/diagnostic", ReceiveDiagnosticLog())

		// Medical staff
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(middleware.RoleStaff))
			r.Post("/waste-entries", RecordDisposal(svc))
			r.Post("/bins/{id}/level", ApplyDisposal(svc))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(middleware.RoleStaff, middleware.RoleWasteHandler))
			r.Post("/bins/{id}/pickup-requests", CreatePickupRequest(svc))
		})

		// Waste handlers
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(middleware.RoleWasteHandler))
			r.Post("/pickup-requests/{id}/complete", CompletePickupRequest(svc))
		})
	})

	return r
}

// withActor attributes activity log entries to the authenticated user.
func withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		ctx := services.ContextWithActor(r.Context(), models.Actor{
			ID:   userClaims.UserID,
			Name: userClaims.Name,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
