package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/scalewatch/weight-monitor-backend/internal/config"
	"github.com/scalewatch/weight-monitor-backend/internal/handlers"
	"github.com/scalewatch/weight-monitor-backend/internal/middleware"
)

func SetupRoutes(r *chi.Mux, cfg *config.Config) {
	// Public auth routes, throttled independently of the global limiter
	r.Group(func(r chi.Router) {
		r.Use(middleware.LoginRateLimit)
		r.Post("/api/auth/register", handlers.Register)
		r.Post("/api/auth/login", handlers.Login)
	})

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))

		r.Post("/api/auth/logout", handlers.Logout)
		r.Get("/api/auth/profile", handlers.GetProfile)
		r.Put("/api/auth/profile", handlers.UpdateProfile)

		// Device routes
		r.Post("/api/devices", handlers.RegisterDevice)
		r.Get("/api/devices", handlers.GetUserDevices)
		r.Post("/api/devices/connect", handlers.ConnectToDevice)
		r.Get("/api/devices/{id}", handlers.GetDeviceByID)
		r.Put("/api/devices/{id}", handlers.UpdateDevice)
		r.Delete("/api/devices/{id}", handlers.DeleteDevice)

		// Reading routes
		r.Get("/api/readings/{deviceId}", handlers.GetDeviceReadings)
		r.Get("/api/readings/{deviceId}/latest", handlers.GetLatestReading)
		r.Get("/api/readings/{deviceId}/daily", handlers.GetDailyAverages)
		r.Delete("/api/readings/{deviceId}", handlers.DeleteDeviceReadings)

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminOnly)
			r.Get("/api/admin/stats", handlers.GetAdminStats)
			r.Get("/api/admin/users", handlers.GetAllUsers)
			r.Get("/api/admin/devices", handlers.GetAllDevices)
			r.Get("/api/admin/activity", handlers.GetSystemActivity)
			r.Put("/api/admin/users/{id}/role", handlers.UpdateUserRole)
			r.Delete("/api/admin/users/{id}", handlers.DeleteUser)
		})
	})

	// WebSocket endpoint for live readings (auth inside the handler so
	// browser clients can pass the token as a query parameter)
	r.Get("/ws/readings/{deviceId}", handlers.LiveReadings)
}
