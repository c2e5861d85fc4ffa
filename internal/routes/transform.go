package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/artifox/artifox/internal/middleware"
	"github.com/artifox/artifox/internal/transform"
)

// RegisterTransformRoutes wires the credit-gated operation endpoints. The
// idempotency middleware replays stored responses when a client opts in via
// the Idempotency-Key header; keyless retries charge again.
func RegisterTransformRoutes(r fiber.Router, h *transform.Handler, d Deps) {
	group := r.Group("")
	if d.Cache != nil {
		group.Use(middleware.TransformRateLimit(d.Cache, 30))
		group.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	group.Post("/transform", h.Execute)
	group.Post("/transform/:kind", h.Execute)
	group.Post("/generate", h.Generate)
	group.Post("/restore", h.Restore)
}
