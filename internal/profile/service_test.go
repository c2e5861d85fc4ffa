package profile

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/artifox/artifox/internal/logging"
	"github.com/artifox/artifox/internal/notification"
)

func newTestService(repo Repository) *Service {
	notifier := notification.NewLoggerNotifier(logging.Discard())
	return NewService(repo, notifier, TrialTerms{Days: 3, Credits: 25})
}

func TestProvisionAndGet(t *testing.T) {
	repo := NewMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()
	userID := uuid.NewString()

	p, err := svc.Provision(ctx, userID, 3)
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if p.UserStatus != StatusFree {
		t.Fatalf("expected free status, got %q", p.UserStatus)
	}

	fetched, err := svc.Get(ctx, userID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Credits != 3 {
		t.Fatalf("expected 3 credits, got %g", fetched.Credits)
	}
}

func TestDebitReturnsPersistedBalance(t *testing.T) {
	repo := NewMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()
	userID := uuid.NewString()

	if _, err := svc.Provision(ctx, userID, 2); err != nil {
		t.Fatalf("provision: %v", err)
	}

	remaining, err := svc.Debit(ctx, userID, 0.5, "debit:touchup", "")
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if remaining != 1.5 {
		t.Fatalf("expected 1.5 remaining, got %g", remaining)
	}

	stored, _ := svc.Get(ctx, userID)
	if stored.Credits != remaining {
		t.Fatalf("store shows %g, response said %g", stored.Credits, remaining)
	}
}

func TestDebitInsufficient(t *testing.T) {
	repo := NewMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()
	userID := uuid.NewString()

	if _, err := svc.Provision(ctx, userID, 0.5); err != nil {
		t.Fatalf("provision: %v", err)
	}

	if _, err := svc.Debit(ctx, userID, 1, "debit:transform", ""); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}

	stored, _ := svc.Get(ctx, userID)
	if stored.Credits != 0.5 {
		t.Fatalf("balance changed on failed debit: %g", stored.Credits)
	}
}

func TestDebitUnknownUser(t *testing.T) {
	svc := newTestService(NewMemoryRepository())

	if _, err := svc.Debit(context.Background(), uuid.NewString(), 1, "debit:transform", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConcurrentDebitsNeverGoNegative(t *testing.T) {
	repo := NewMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()
	userID := uuid.NewString()

	if _, err := svc.Provision(ctx, userID, 10); err != nil {
		t.Fatalf("provision: %v", err)
	}

	var wg sync.WaitGroup
	successes := make(chan struct{}, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Debit(ctx, userID, 1, "debit:transform", ""); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	granted := 0
	for range successes {
		granted++
	}
	if granted != 10 {
		t.Fatalf("expected exactly 10 debits to win, got %d", granted)
	}

	stored, _ := svc.Get(ctx, userID)
	if stored.Credits != 0 {
		t.Fatalf("expected zero balance, got %g", stored.Credits)
	}
}

func TestStartTrial(t *testing.T) {
	repo := NewMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()
	userID := uuid.NewString()

	if _, err := svc.Provision(ctx, userID, 3); err != nil {
		t.Fatalf("provision: %v", err)
	}

	p, err := svc.StartTrial(ctx, userID)
	if err != nil {
		t.Fatalf("start trial: %v", err)
	}
	if p.UserStatus != StatusPaid || p.PaidPlan != PlanTrial {
		t.Fatalf("expected paid trial, got %s/%s", p.UserStatus, p.PaidPlan)
	}
	if p.TrialEndsAt == nil || p.TrialEndsAt.IsZero() {
		t.Fatal("expected trial end date")
	}
	if p.Credits != 28 {
		t.Fatalf("expected 3+25 credits, got %g", p.Credits)
	}

	if _, err := svc.StartTrial(ctx, userID); err == nil {
		t.Fatal("expected second trial start to be rejected")
	}
}

func TestDebitRecordsLedgerEvent(t *testing.T) {
	repo := NewMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()
	userID := uuid.NewString()

	if _, err := svc.Provision(ctx, userID, 5); err != nil {
		t.Fatalf("provision: %v", err)
	}
	reqID := uuid.NewString()
	if _, err := svc.Debit(ctx, userID, 1, "debit:generate", reqID); err != nil {
		t.Fatalf("debit: %v", err)
	}

	events, err := svc.Events(ctx, userID, 10)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Amount != -1 || ev.Kind != "debit:generate" || ev.RequestID != reqID {
		t.Fatalf("unexpected event %+v", ev)
	}
}
