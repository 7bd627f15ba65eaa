package investment

import "time"

// Status tracks an investment through its lifecycle. Transitions are
// pending -> active -> completed, or pending -> cancelled.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Type classifies the capital source behind an investment.
type Type string

const (
	TypeInvestment Type = "investment"
	TypePromo      Type = "promo"
	TypeLoan       Type = "loan"
)

// DurationUnit is the calendar unit an investment term is counted in.
type DurationUnit string

const (
	UnitHour  DurationUnit = "hour"
	UnitDay   DurationUnit = "day"
	UnitWeek  DurationUnit = "week"
	UnitMonth DurationUnit = "month"
)

// Investment is a user's capital commitment to a plan's terms. Rate and
// duration are snapshotted from the plan at submission time so later plan
// edits never touch a live investment.
type Investment struct {
	ID           string
	UserID       string
	PlanID       string
	Amount       float64
	EarningRate  float64
	Duration     int
	DurationUnit DurationUnit
	Type         Type
	Status       Status

	// StartDate and EndDate are zero until activation. ExpectedEarning is
	// computed once at activation and never recomputed afterwards.
	StartDate       time.Time
	EndDate         time.Time
	ExpectedEarning float64
	CompletedAt     time.Time

	// CreditedAt marks that the wallet payout for this investment has been
	// applied. It is the guard that keeps a re-run or a crash between the
	// status flip and the credit from paying twice.
	CreditedAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Matured reports whether the investment term has elapsed at the given time.
func (i Investment) Matured(now time.Time) bool {
	return i.Status == StatusActive && !i.EndDate.IsZero() && !i.EndDate.After(now)
}

// TermEnd computes the calendar end of a term starting at the given time.
// Months use calendar arithmetic clamped to the last day of the target
// month, so Jan 31 + 1 month lands on Feb 28 or Feb 29, never Mar 2.
func TermEnd(start time.Time, duration int, unit DurationUnit) time.Time {
	switch unit {
	case UnitHour:
		return start.Add(time.Duration(duration) * time.Hour)
	case UnitDay:
		return start.AddDate(0, 0, duration)
	case UnitWeek:
		return start.AddDate(0, 0, 7*duration)
	case UnitMonth:
		return addMonthsClamped(start, duration)
	default:
		return start.AddDate(0, 0, duration)
	}
}

// SimpleInterest is the earning over a whole term: principal x rate x
// duration, with no per-period compounding.
func SimpleInterest(amount, rate float64, duration int) float64 {
	return amount * rate * float64(duration)
}

func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	shifted := first.AddDate(0, months, 0)
	if last := daysIn(shifted.Year(), shifted.Month()); day > last {
		day = last
	}
	return time.Date(shifted.Year(), shifted.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
