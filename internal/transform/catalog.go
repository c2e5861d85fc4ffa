package transform

import "github.com/artifox/artifox/internal/profile"

// ModelConfig selects the upstream model variant and its quality settings.
type ModelConfig struct {
	Endpoint          string
	NumInferenceSteps int
	GuidanceScale     float64
}

// Operation describes one costed capability: what it charges, what the
// request must carry, and which model serves each tier.
type Operation struct {
	Kind           string
	Cost           float64
	RequiresPrompt bool
	RequiresImage  bool
	// DefaultPrompt is applied when the operation is a preset (colorize,
	// background removal, enhancement) and the caller sends no prompt.
	DefaultPrompt string
	Models        map[string]ModelConfig
}

// Model returns the tier's model configuration, falling back to the free
// variant for unknown statuses.
func (o Operation) Model(userStatus string) ModelConfig {
	if m, ok := o.Models[userStatus]; ok {
		return m
	}
	return o.Models[profile.StatusFree]
}

// Catalog maps operation kinds to their configuration. Centralizing the
// tier-to-model mapping here keeps the free/paid branch out of the handlers.
type Catalog map[string]Operation

// Lookup resolves an operation kind.
func (c Catalog) Lookup(kind string) (Operation, bool) {
	op, ok := c[kind]
	return op, ok
}

// DefaultCatalog returns the production operation set.
func DefaultCatalog() Catalog {
	editModels := map[string]ModelConfig{
		profile.StatusFree: {Endpoint: "fal-ai/flux-kontext/dev", NumInferenceSteps: 28, GuidanceScale: 3.5},
		profile.StatusPaid: {Endpoint: "fal-ai/flux-kontext/pro", NumInferenceSteps: 50, GuidanceScale: 4.5},
	}

	return Catalog{
		"transform": {
			Kind:           "transform",
			Cost:           1,
			RequiresPrompt: true,
			RequiresImage:  true,
			Models:         editModels,
		},
		"colorize": {
			Kind:          "colorize",
			Cost:          1,
			RequiresImage: true,
			DefaultPrompt: "colorize this black and white photo, add realistic natural colors, vibrant but historically accurate colors",
			Models:        editModels,
		},
		"remove-background": {
			Kind:          "remove-background",
			Cost:          1,
			RequiresImage: true,
			DefaultPrompt: "remove background, transparent background, clean cutout, professional product photo",
			Models:        editModels,
		},
		"enhance": {
			Kind:          "enhance",
			Cost:          1,
			RequiresImage: true,
			DefaultPrompt: "enhance this photo, sharpen details, fix lighting and contrast, high quality",
			Models:        editModels,
		},
		"restore": {
			Kind:          "restore",
			Cost:          1,
			RequiresImage: true,
			DefaultPrompt: "restore this damaged photo, remove scratches and noise, recover faded detail",
			Models: map[string]ModelConfig{
				profile.StatusFree: {Endpoint: "flux-kontext-apps/restore-image", NumInferenceSteps: 28, GuidanceScale: 3},
				profile.StatusPaid: {Endpoint: "flux-kontext-apps/restore-image", NumInferenceSteps: 50, GuidanceScale: 3},
			},
		},
		"generate": {
			Kind:           "generate",
			Cost:           1,
			RequiresPrompt: true,
			Models: map[string]ModelConfig{
				profile.StatusFree: {Endpoint: "fal-ai/flux/schnell", NumInferenceSteps: 4, GuidanceScale: 3.5},
				profile.StatusPaid: {Endpoint: "fal-ai/flux/dev", NumInferenceSteps: 28, GuidanceScale: 3.5},
			},
		},
		// Lightweight touch-up charges half a credit.
		"touchup": {
			Kind:          "touchup",
			Cost:          0.5,
			RequiresImage: true,
			DefaultPrompt: "subtle touch-up, clean blemishes, keep the original look",
			Models: map[string]ModelConfig{
				profile.StatusFree: {Endpoint: "fal-ai/flux-kontext/dev", NumInferenceSteps: 12, GuidanceScale: 2.5},
				profile.StatusPaid: {Endpoint: "fal-ai/flux-kontext/dev", NumInferenceSteps: 20, GuidanceScale: 2.5},
			},
		},
	}
}
