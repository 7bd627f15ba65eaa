package referral

import "testing"

func TestSettings_Rate(t *testing.T) {
	s := Settings{Levels: []Level{
		{Level: 1, CommissionRate: 5},
		{Level: 3, CommissionRate: 1},
	}}

	if rate, ok := s.Rate(1); !ok || rate != 5 {
		t.Fatalf("Rate(1) = %v, %v", rate, ok)
	}
	if _, ok := s.Rate(2); ok {
		t.Fatalf("level 2 has no configuration")
	}
	if rate, ok := s.Rate(3); !ok || rate != 1 {
		t.Fatalf("Rate(3) = %v, %v", rate, ok)
	}
}

func TestSettings_DepthIsCapped(t *testing.T) {
	s := Settings{Levels: []Level{{Level: 1}, {Level: 2}}}
	if got := s.Depth(); got != 2 {
		t.Fatalf("Depth = %d, want 2", got)
	}

	s.Levels = []Level{{Level: 1}, {Level: 2}, {Level: 3}, {Level: 4}, {Level: 5}}
	if got := s.Depth(); got != MaxDepth {
		t.Fatalf("Depth = %d, want %d", got, MaxDepth)
	}
}
