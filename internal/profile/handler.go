package profile

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes profile HTTP endpoints for the authenticated user.
type Handler struct {
	service *Service
}

// NewHandler builds a profile HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type profileResponse struct {
	UserID              string     `json:"user_id"`
	Credits             float64    `json:"credits"`
	UserStatus          string     `json:"user_status"`
	PaidPlan            string     `json:"paid_plan,omitempty"`
	TrialEndsAt         *time.Time `json:"trial_ends_at,omitempty"`
	OnboardingCompleted bool       `json:"onboarding_completed"`
}

func toResponse(p Profile) profileResponse {
	return profileResponse{
		UserID:              p.UserID,
		Credits:             p.Credits,
		UserStatus:          p.UserStatus,
		PaidPlan:            p.PaidPlan,
		TrialEndsAt:         p.TrialEndsAt,
		OnboardingCompleted: p.OnboardingCompleted,
	}
}

// Me returns the caller's profile.
func (h *Handler) Me(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	p, err := h.service.Get(c.UserContext(), uid)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "profile not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toResponse(p))
}

// StartTrial upgrades the caller into a paid trial.
func (h *Handler) StartTrial(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	p, err := h.service.StartTrial(c.UserContext(), uid)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "profile not found")
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toResponse(p))
}

// CompleteOnboarding records that the caller finished onboarding.
func (h *Handler) CompleteOnboarding(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if err := h.service.CompleteOnboarding(c.UserContext(), uid); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "profile not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"onboarding_completed": true})
}

// Events lists the caller's recent credit events.
func (h *Handler) Events(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	limit := c.QueryInt("limit", 20)
	events, err := h.service.Events(c.UserContext(), uid, limit)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]fiber.Map, 0, len(events))
	for _, ev := range events {
		out = append(out, fiber.Map{
			"id":         ev.ID,
			"amount":     ev.Amount,
			"kind":       ev.Kind,
			"request_id": ev.RequestID,
			"created_at": ev.CreatedAt,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"events": out})
}
