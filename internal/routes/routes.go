package routes

import (
	"github.com/blinkchat/blink-backend/internal/handlers"
	"github.com/blinkchat/blink-backend/internal/middleware"
	"github.com/go-chi/chi/v5"
)

func SetupRoutes(r *chi.Mux) {
	// Auth routes
	r.Post("/api/auth/signup", handlers.Signup)
	r.Post("/api/auth/login", handlers.Login)
	r.Post("/api/auth/logout", handlers.Logout)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Get("/api/auth/check", handlers.CheckAuth)
		r.Put("/api/auth/update-profile", handlers.UpdateProfile)
		r.Put("/api/auth/update-username", handlers.UpdateUsername)
		r.Put("/api/auth/update-privacy", handlers.UpdatePrivacy)

		// Message routes
		r.Get("/api/messages/users", handlers.GetUsersForSidebar)
		r.Get("/api/messages/unread", handlers.GetUnreadCounts)
		r.Get("/api/messages/{id}", handlers.GetMessages)
		r.Post("/api/messages/send/{id}", handlers.SendMessage)
		r.Put("/api/messages/seen/{id}", handlers.MarkSeen)
		r.Put("/api/messages/react/{id}", handlers.React)
		r.Put("/api/messages/edit/{id}", handlers.Edit)
		r.Delete("/api/messages/{id}", handlers.DeleteMessage)
		r.Delete("/api/messages/conversation/{id}", handlers.DeleteConversation)

		// User search
		r.Get("/api/users/search", handlers.SearchUsers)
	})

	// Realtime connection; authenticates via session token itself
	r.Get("/ws", handlers.ChatWebSocket)
}
