package plan

import "time"

// Plan defines the investable terms offered to users. Investments copy
// the rate and term at submission time, so editing a plan never changes
// an existing investment.
type Plan struct {
	ID            string
	Name          string
	MinAmount     float64
	MaxAmount     float64
	ROIPercentage float64
	Term          int
	TermPeriod    string
	Type          string
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
