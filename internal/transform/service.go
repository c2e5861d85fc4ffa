package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/artifox/artifox/internal/profile"
	"github.com/artifox/artifox/internal/provider"
)

var (
	// ErrUnknownOperation indicates the requested kind is not in the catalog.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrMissingPrompt indicates the operation requires a prompt.
	ErrMissingPrompt = errors.New("missing required field: prompt")

	// ErrMissingImage indicates the operation requires an input image URL.
	ErrMissingImage = errors.New("missing required field: input_image")

	// ErrUpstream wraps any failure from the inference provider. No credits
	// are deducted when it is returned.
	ErrUpstream = errors.New("upstream provider failure")
)

// Service gates costed operations behind the metered credit balance and
// proxies them to the upstream provider.
type Service struct {
	profiles *profile.Service
	provider provider.Provider
	catalog  Catalog
	logger   *slog.Logger
}

// NewService builds the transform service.
func NewService(profiles *profile.Service, prov provider.Provider, catalog Catalog, logger *slog.Logger) *Service {
	return &Service{profiles: profiles, provider: prov, catalog: catalog, logger: logger}
}

// ExecuteInput carries one transform request. Profile is the row loaded by
// the auth guard before the call.
type ExecuteInput struct {
	Profile        profile.Profile
	Kind           string
	Prompt         string
	NegativePrompt string
	InputImage     string
	ImageSize      string
	OutputFormat   string
	RequestID      string
}

// ExecuteResult is returned to the caller on success.
type ExecuteResult struct {
	Output           []string
	CreditsRemaining float64
}

// Execute runs the credit-gated flow: balance check, payload validation, one
// upstream call, then the debit. The debit happens only after upstream
// success, so failed inference never charges the user.
func (s *Service) Execute(ctx context.Context, in ExecuteInput) (ExecuteResult, error) {
	op, ok := s.catalog.Lookup(in.Kind)
	if !ok {
		return ExecuteResult{}, ErrUnknownOperation
	}

	if in.Profile.Credits < op.Cost {
		return ExecuteResult{}, profile.ErrInsufficientCredits
	}

	prompt := in.Prompt
	if prompt == "" {
		prompt = op.DefaultPrompt
	}
	if op.RequiresPrompt && prompt == "" {
		return ExecuteResult{}, ErrMissingPrompt
	}
	if op.RequiresImage && in.InputImage == "" {
		return ExecuteResult{}, ErrMissingImage
	}
	if in.NegativePrompt != "" {
		prompt = fmt.Sprintf("%s, negative prompt: %s", prompt, in.NegativePrompt)
	}

	model := op.Model(in.Profile.UserStatus)
	result, err := s.provider.Run(ctx, provider.Job{
		Endpoint:          model.Endpoint,
		Prompt:            prompt,
		InputImage:        in.InputImage,
		ImageSize:         in.ImageSize,
		NumInferenceSteps: model.NumInferenceSteps,
		GuidanceScale:     model.GuidanceScale,
		OutputFormat:      in.OutputFormat,
	})
	if err != nil {
		return ExecuteResult{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	remaining, err := s.profiles.Debit(ctx, in.Profile.UserID, op.Cost, "debit:"+op.Kind, in.RequestID)
	if err != nil {
		if errors.Is(err, profile.ErrInsufficientCredits) {
			// A concurrent request won the race for the last credits. The
			// atomic conditional update keeps the balance non-negative; the
			// loser is reported as out of credits.
			return ExecuteResult{}, err
		}
		// Upstream already succeeded; surface success to the caller and log
		// the balance inconsistency instead of charging twice on retry.
		s.logger.Error("credit debit failed after successful upstream call",
			slog.String("user_id", in.Profile.UserID),
			slog.String("kind", op.Kind),
			slog.String("request_id", in.RequestID),
			slog.Any("error", err),
		)
		return ExecuteResult{Output: result.Outputs, CreditsRemaining: in.Profile.Credits - op.Cost}, nil
	}

	return ExecuteResult{Output: result.Outputs, CreditsRemaining: remaining}, nil
}
