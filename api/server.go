/*
server.go - Router wiring

Mounts everything under /api behind the auth middleware; only health,
register and login are public. CORS is configured for the browser client.
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter builds the HTTP routing table.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)

			r.Get("/auth/me", h.Me)

			r.Get("/farms", h.ListFarms)
			r.Post("/farms", h.CreateFarm)

			r.Get("/plots", h.ListPlots)
			r.Post("/plots", h.SavePlot)
			r.Delete("/plots/{id}", h.DeletePlot)

			r.Get("/rubber-types", h.ListRubberTypes)
			r.Post("/rubber-types", h.CreateRubberType)

			r.Get("/conversions", h.ListConversions)
			r.Post("/conversions", h.SaveConversion)
			r.Get("/conversions/resolve", h.ResolveConversion)

			// fixed segments before {id}
			r.Get("/plans/history", h.PlanHistory)
			r.Post("/plans/bump-version", h.BumpPlanVersion)
			r.Post("/plans/bulk-copy", h.BulkCopyPlans)
			r.Get("/plans", h.ListPlans)
			r.Post("/plans", h.SavePlan)
			r.Put("/plans/{id}", h.UpdatePlan)
			r.Delete("/plans/{id}", h.DeletePlan)

			r.Get("/actuals", h.ListActuals)
			r.Post("/actuals", h.SaveActual)
			r.Put("/actuals/{id}", h.UpdateActual)
			r.Delete("/actuals/{id}", h.DeleteActual)

			r.Get("/reports/dashboard", h.Dashboard)
			r.Get("/reports/stats", h.Stats)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found", nil)
	})

	return r
}
