package provider

import "context"

// Job describes a single inference request to the upstream provider.
type Job struct {
	// Endpoint is the model path under the provider base URL, selected by
	// the caller's tier.
	Endpoint          string
	Prompt            string
	InputImage        string
	ImageSize         string
	NumInferenceSteps int
	GuidanceScale     float64
	OutputFormat      string
	NumImages         int
}

// Result carries the generated media URLs returned by the provider.
type Result struct {
	Outputs   []string
	RequestID string
}

// Provider runs exactly one upstream inference call per Job.
type Provider interface {
	Run(ctx context.Context, job Job) (Result, error)
}

// Static simulates a successful provider. Used in tests and dev mode when no
// API key is configured.
type Static struct {
	URL string
}

// Run returns a fixed output URL without any network call.
func (s Static) Run(_ context.Context, _ Job) (Result, error) {
	url := s.URL
	if url == "" {
		url = "https://static.invalid/output.jpg"
	}
	return Result{Outputs: []string{url}}, nil
}
