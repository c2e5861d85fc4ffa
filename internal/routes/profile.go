package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/artifox/artifox/internal/profile"
)

// RegisterProfileRoutes wires the current user's profile endpoints.
func RegisterProfileRoutes(r fiber.Router, h *profile.Handler) {
	r.Get("/me", h.Me)
	r.Post("/me/onboarding", h.CompleteOnboarding)
	r.Post("/me/trial", h.StartTrial)
	r.Get("/me/credits/events", h.Events)
}
