package profile

import (
	"context"
	"fmt"
	"time"

	"github.com/artifox/artifox/internal/notification"
)

// Balances below this trigger a low-credit notification after a debit.
const lowCreditThreshold = 1.0

// TrialTerms configures the trial upgrade flow.
type TrialTerms struct {
	Days    int
	Credits float64
}

// Service exposes profile and credit-accounting operations.
type Service struct {
	repo     Repository
	notifier notification.Notifier
	trial    TrialTerms
}

// NewService builds a profile service instance.
func NewService(repo Repository, notifier notification.Notifier, trial TrialTerms) *Service {
	return &Service{repo: repo, notifier: notifier, trial: trial}
}

// Provision creates the profile row for a freshly registered user.
func (s *Service) Provision(ctx context.Context, userID string, credits float64) (Profile, error) {
	p := Profile{
		UserID:     userID,
		Credits:    credits,
		UserStatus: StatusFree,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Get retrieves the profile for a user.
func (s *Service) Get(ctx context.Context, userID string) (Profile, error) {
	return s.repo.Get(ctx, userID)
}

// Debit spends credits atomically and returns the persisted balance.
func (s *Service) Debit(ctx context.Context, userID string, amount float64, kind, requestID string) (float64, error) {
	remaining, err := s.repo.Debit(ctx, userID, amount, kind, requestID)
	if err != nil {
		return 0, err
	}
	if remaining < lowCreditThreshold && s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindLowCredits,
			Destination: userID,
			Body:        fmt.Sprintf("credits remaining: %g", remaining),
		})
	}
	return remaining, nil
}

// Grant adds credits to the balance.
func (s *Service) Grant(ctx context.Context, userID string, amount float64, kind string) (float64, error) {
	return s.repo.Grant(ctx, userID, amount, kind)
}

// StartTrial upgrades a free profile into a paid trial and grants the trial
// credit allowance.
func (s *Service) StartTrial(ctx context.Context, userID string) (Profile, error) {
	current, err := s.repo.Get(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	if current.UserStatus == StatusPaid {
		return Profile{}, fmt.Errorf("profile is already on a paid plan")
	}

	endsAt := time.Now().UTC().AddDate(0, 0, s.trial.Days)
	if err := s.repo.StartTrial(ctx, userID, PlanTrial, endsAt); err != nil {
		return Profile{}, err
	}
	if s.trial.Credits > 0 {
		if _, err := s.repo.Grant(ctx, userID, s.trial.Credits, "grant:trial"); err != nil {
			return Profile{}, err
		}
	}
	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTrialStarted,
			Destination: userID,
			Body:        fmt.Sprintf("trial active until %s", endsAt.Format(time.RFC3339)),
		})
	}
	return s.repo.Get(ctx, userID)
}

// CompleteOnboarding marks the user's onboarding as finished.
func (s *Service) CompleteOnboarding(ctx context.Context, userID string) error {
	return s.repo.CompleteOnboarding(ctx, userID)
}

// Events lists recent credit events, newest first.
func (s *Service) Events(ctx context.Context, userID string, limit int) ([]CreditEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.Events(ctx, userID, limit)
}
