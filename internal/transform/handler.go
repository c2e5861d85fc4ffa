package transform

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/artifox/artifox/internal/profile"
)

// Handler exposes the credit-gated transform endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a transform HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transformRequest struct {
	Prompt         string `json:"prompt"`
	InputImage     string `json:"input_image"`
	NegativePrompt string `json:"negative_prompt"`
	ImageSize      string `json:"image_size"`
	OutputFormat   string `json:"output_format"`
}

type transformResponse struct {
	Output           any     `json:"output"`
	CreditsRemaining float64 `json:"credits_remaining"`
}

// Execute handles POST /transform/:kind for any catalog operation.
func (h *Handler) Execute(c *fiber.Ctx) error {
	return h.run(c, c.Params("kind", "transform"))
}

// Generate handles the text-to-image alias.
func (h *Handler) Generate(c *fiber.Ctx) error {
	return h.run(c, "generate")
}

// Restore handles the photo restoration alias.
func (h *Handler) Restore(c *fiber.Ctx) error {
	return h.run(c, "restore")
}

func (h *Handler) run(c *fiber.Ctx, kind string) error {
	var req transformRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	prof, _ := c.Locals("profile").(profile.Profile)
	requestID, _ := c.Locals("X-Request-ID").(string)

	result, err := h.service.Execute(c.UserContext(), ExecuteInput{
		Profile:        prof,
		Kind:           kind,
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		InputImage:     req.InputImage,
		ImageSize:      req.ImageSize,
		OutputFormat:   req.OutputFormat,
		RequestID:      requestID,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownOperation):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, profile.ErrInsufficientCredits):
			return fiber.NewError(http.StatusPaymentRequired, "Insufficient credits")
		case errors.Is(err, profile.ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "profile not found")
		case errors.Is(err, ErrMissingPrompt), errors.Is(err, ErrMissingImage):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	// Single-output operations answer with a bare URL, matching the
	// client's `output: string | string[]` contract.
	var output any = result.Output
	if len(result.Output) == 1 {
		output = result.Output[0]
	}

	return c.Status(http.StatusOK).JSON(transformResponse{
		Output:           output,
		CreditsRemaining: result.CreditsRemaining,
	})
}
