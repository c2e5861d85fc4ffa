package profile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	events   map[string][]CreditEvent
}

// NewMemoryRepository creates a concurrency-safe in-memory profile store
// useful for unit tests and dev mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		profiles: make(map[string]Profile),
		events:   make(map[string][]CreditEvent),
	}
}

func (r *memoryRepository) Create(_ context.Context, p Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.profiles[p.UserID]; exists {
		return errors.New("profile exists")
	}
	r.profiles[p.UserID] = p
	return nil
}

func (r *memoryRepository) Get(_ context.Context, userID string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[userID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (r *memoryRepository) Debit(_ context.Context, userID string, amount float64, kind, requestID string) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[userID]
	if !ok {
		return 0, ErrNotFound
	}
	if p.Credits < amount {
		return 0, ErrInsufficientCredits
	}

	p.Credits -= amount
	r.profiles[userID] = p
	r.appendEventLocked(userID, -amount, kind, requestID)
	return p.Credits, nil
}

func (r *memoryRepository) Grant(_ context.Context, userID string, amount float64, kind string) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[userID]
	if !ok {
		return 0, ErrNotFound
	}
	p.Credits += amount
	r.profiles[userID] = p
	r.appendEventLocked(userID, amount, kind, "")
	return p.Credits, nil
}

func (r *memoryRepository) StartTrial(_ context.Context, userID, plan string, endsAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[userID]
	if !ok {
		return ErrNotFound
	}
	ends := endsAt.UTC()
	p.UserStatus = StatusPaid
	p.PaidPlan = plan
	p.TrialEndsAt = &ends
	r.profiles[userID] = p
	return nil
}

func (r *memoryRepository) CompleteOnboarding(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[userID]
	if !ok {
		return ErrNotFound
	}
	p.OnboardingCompleted = true
	r.profiles[userID] = p
	return nil
}

func (r *memoryRepository) Events(_ context.Context, userID string, limit int) ([]CreditEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.events[userID]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	// Newest first, matching the Postgres query ordering.
	out := make([]CreditEvent, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (r *memoryRepository) appendEventLocked(userID string, amount float64, kind, requestID string) {
	r.events[userID] = append(r.events[userID], CreditEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Kind:      kind,
		RequestID: requestID,
		CreatedAt: time.Now().UTC(),
	})
}
