package profile

import "time"

const (
	// StatusFree routes operations to the fast/cheap model variants.
	StatusFree = "free"
	// StatusPaid routes operations to the high-quality model variants.
	StatusPaid = "paid"

	// PlanTrial marks a paid status granted by the trial flow.
	PlanTrial = "trial"
)

// Profile is the durable per-user record metering AI operations.
type Profile struct {
	UserID              string
	Credits             float64
	UserStatus          string
	PaidPlan            string
	TrialEndsAt         *time.Time
	OnboardingCompleted bool
	CreatedAt           time.Time
}

// CreditEvent records a single balance mutation. Amount is negative for
// debits and positive for grants.
type CreditEvent struct {
	ID        string
	UserID    string
	Amount    float64
	Kind      string
	RequestID string
	CreatedAt time.Time
}
