package referral

// MaxDepth caps how far up the sponsor chain commissions are paid
// regardless of how many levels are configured.
const MaxDepth = 3

// Level configures the commission rate, in percent of the invested
// amount, for one position in the sponsor chain (1 = direct referrer).
type Level struct {
	Level          int     `yaml:"level" json:"level"`
	CommissionRate float64 `yaml:"commission_rate" json:"commission_rate"`
}

// Settings is the referral program configuration. It is loaded once and
// passed explicitly into the distributor so tests can vary it per call.
type Settings struct {
	Enabled bool    `yaml:"enabled" json:"enabled"`
	Levels  []Level `yaml:"levels" json:"levels"`
}

// Rate returns the commission rate configured for a level, or false when
// the level has no configuration.
func (s Settings) Rate(level int) (float64, bool) {
	for _, l := range s.Levels {
		if l.Level == level {
			return l.CommissionRate, true
		}
	}
	return 0, false
}

// Depth is the number of sponsor-chain levels eligible for commission.
func (s Settings) Depth() int {
	if len(s.Levels) < MaxDepth {
		return len(s.Levels)
	}
	return MaxDepth
}
