package transaction

import "time"

// Type classifies what a transaction records.
type Type string

const (
	TypeInvestment Type = "investment"
	TypeWithdrawal Type = "withdrawal"
	TypeReferral   Type = "referral"
)

// Status mirrors the lifecycle of the record a transaction audits. An
// investment transaction moves in lockstep with its investment:
// pending while the investment is pending, processing while it is
// active, completed once it matures.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Transaction is the append-only audit record paired with a money
// movement. Investment transactions are matched to their investment by
// user, plan, type and status rather than a foreign key.
type Transaction struct {
	ID              string
	UserID          string
	Type            Type
	Amount          float64
	Currency        string
	Status          Status
	PlanID          string
	ReferralID      string
	Description     string
	ExpectedEarning float64
	CompletedAt     time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
