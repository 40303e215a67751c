/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the console frontend

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/riders", func(r chi.Router) {
			r.Get("/", h.ListRiders)
			r.Post("/", h.CreateRider)
			r.Get("/{id}", h.GetRider)
			r.Put("/{id}", h.UpdateRider)
			r.Delete("/{id}", h.DeleteRider)
		})

		r.Route("/vehicles", func(r chi.Router) {
			r.Get("/", h.ListVehicles)
			r.Post("/", h.CreateVehicle)
			r.Get("/available", h.ListAvailableVehicles)
			r.Get("/{id}", h.GetVehicle)
			r.Put("/{id}", h.UpdateVehicle)
			r.Post("/{id}/availability", h.SetVehicleAvailability)
			r.Delete("/{id}", h.DeleteVehicle)
		})

		r.Route("/rentals", func(r chi.Router) {
			r.Get("/", h.ListRentals)
			r.Post("/", h.CreateRental)
			r.Get("/{id}", h.GetRental)
			r.Post("/{id}/return", h.ReturnRental)
			r.Post("/{id}/cancel", h.CancelRental)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/", h.ListPayments)
			r.Post("/", h.CreatePayment)
			r.Get("/{id}", h.GetPayment)
		})

		r.Route("/returns", func(r chi.Router) {
			r.Get("/", h.ListReturns)
			r.Post("/", h.CreateReturn)
			r.Get("/{id}", h.GetReturn)
			r.Put("/{id}", h.UpdateReturn)
			r.Post("/{id}/settle", h.SettleReturn)
			r.Post("/{id}/noc", h.GenerateNoc)
		})

		r.Route("/nocs", func(r chi.Router) {
			r.Get("/", h.ListNocs)
			r.Get("/{id}", h.GetNoc)
		})

		r.Route("/batteries", func(r chi.Router) {
			r.Get("/", h.ListBatteries)
			r.Post("/", h.CreateBattery)
			r.Get("/{id}", h.GetBattery)
			r.Put("/{id}", h.UpdateBattery)
			r.Delete("/{id}", h.DeleteBattery)
		})

		r.Route("/battery-swaps", func(r chi.Router) {
			r.Get("/", h.ListBatterySwaps)
			r.Post("/", h.CreateBatterySwap)
		})

		r.Route("/battery-rentals", func(r chi.Router) {
			r.Get("/", h.ListBatteryRentals)
			r.Post("/", h.CreateBatteryRental)
			r.Post("/{id}/return", h.ReturnBatteryRental)
			r.Post("/{id}/payments", h.CreateBatteryRentalPayment)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", h.ListAlerts)
			r.Post("/{id}/read", h.MarkAlertRead)
		})

		r.Route("/staff", func(r chi.Router) {
			r.Get("/", h.ListStaff)
			r.Post("/", h.CreateStaff)
			r.Put("/{id}", h.UpdateStaff)
			r.Delete("/{id}", h.DeleteStaff)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.GetSettings)
			r.Put("/", h.UpdateSettings)
		})

		r.Get("/dashboard/counters", h.GetCounters)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/sweep", h.TriggerSweep)
			r.Post("/reset", h.Reset)
			r.Post("/reseed", h.Reseed)
			r.Get("/dump", h.Dump)
		})
	})

	return r
}
