package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RegisterRoutes sets up all the API endpoints and middleware for the application.
func (s *Server) RegisterRoutes(r *chi.Mux) {
	r.Use(middleware.Logger)    // Logs incoming requests
	r.Use(middleware.Recoverer) // Recovers from panics and returns a 500 error

	// --- REST API ---
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000", s.config.AppURL},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))

		// Auth routes
		r.Post("/users/register", s.handleRegisterUser)
		r.Post("/users/login", s.handleLoginUser)
		r.Get("/auth/google/login", s.handleGoogleLogin)
		r.Get("/auth/google/callback", s.handleGoogleCallback)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/notifications/stream", s.handleSSE)
			r.Get("/notifications", s.handleGetMyNotifications)
			r.Post("/notifications/{notificationID}/read", s.handleMarkNotificationRead)

			// User Routes
			r.Get("/users/me", s.handleGetMyProfile)
			r.Patch("/users/me", s.handleUpdateMyProfile)

			// Event Routes
			r.Get("/events", s.handleGetMyEvents)
			r.Post("/events", s.handleCreateEvent)
			r.Get("/events/{eventID}", s.handleGetEventDetails)
			r.Patch("/events/{eventID}/status", s.handleUpdateEventStatus)

			// Attendee & Invitation Routes
			r.Get("/events/{eventID}/attendees", s.handleGetEventAttendees)
			r.Put("/events/{eventID}/attendees/{userID}/role", s.handleUpdateAttendeeRole)
			r.Get("/events/{eventID}/invitations", s.handleGetEventInvitations)
		})
	})

	// --- Remote procedures ---
	r.Route("/rest/v1/rpc", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/update-rsvp-status", s.handleUpdateRSVPStatus)
	})

	// --- Functions ---
	// CORS runs ahead of auth so browser preflights never need a token.
	r.Route("/functions/v1", func(r chi.Router) {
		r.Use(functionsCORS())

		r.Options("/handle-event-invitations", s.handlePreflight)
		r.Options("/send-event-invitations", s.handlePreflight)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Post("/handle-event-invitations", s.handleEventInvitations)
			r.Post("/send-event-invitations", s.handleSendEventInvitations)
		})
	})
}
