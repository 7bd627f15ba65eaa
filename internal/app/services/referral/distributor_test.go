package referral

import (
	"context"
	"testing"

	"github.com/Goodisoft/vestearning/internal/app/domain/referral"
	"github.com/Goodisoft/vestearning/internal/app/domain/transaction"
	"github.com/Goodisoft/vestearning/internal/app/domain/user"
	"github.com/Goodisoft/vestearning/internal/app/notify"
	"github.com/Goodisoft/vestearning/internal/app/storage/memory"
)

func threeLevelSettings() referral.Settings {
	return referral.Settings{
		Enabled: true,
		Levels: []referral.Level{
			{Level: 1, CommissionRate: 5},
			{Level: 2, CommissionRate: 2},
			{Level: 3, CommissionRate: 1},
		},
	}
}

// seedChain creates users linked sponsor-to-sponsor and returns them
// investor-first, so chain[1] is the direct referrer.
func seedChain(t *testing.T, store *memory.Store, length int) []user.User {
	t.Helper()

	chain := make([]user.User, length)
	parent := ""
	for i := length - 1; i >= 0; i-- {
		usr, err := store.CreateUser(context.Background(), user.User{ReferredBy: parent})
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		if _, err := store.EnsureWallet(context.Background(), usr.ID); err != nil {
			t.Fatalf("ensure wallet: %v", err)
		}
		chain[i] = usr
		parent = usr.ID
	}
	return chain
}

func TestDistributor_PaysThreeLevels(t *testing.T) {
	store := memory.New()
	recorder := notify.NewRecorder()
	d := NewDistributor(store, store, store, recorder, nil)

	chain := seedChain(t, store, 5)

	credits, err := d.Distribute(context.Background(), chain[0], 1000, threeLevelSettings())
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if len(credits) != 3 {
		t.Fatalf("expected 3 credits, got %d", len(credits))
	}

	wantAmounts := []float64{50, 20, 10}
	for i, credit := range credits {
		if credit.Level != i+1 {
			t.Fatalf("credit %d level %d", i, credit.Level)
		}
		if credit.ReferrerID != chain[i+1].ID {
			t.Fatalf("credit %d paid to %s, want %s", i, credit.ReferrerID, chain[i+1].ID)
		}
		if credit.Amount != wantAmounts[i] {
			t.Fatalf("credit %d amount %v, want %v", i, credit.Amount, wantAmounts[i])
		}

		w, err := store.GetWalletByUser(context.Background(), credit.ReferrerID)
		if err != nil {
			t.Fatalf("wallet: %v", err)
		}
		if w.ReferralBalance != wantAmounts[i] {
			t.Fatalf("referral balance %v, want %v", w.ReferralBalance, wantAmounts[i])
		}

		tx, err := store.FindPairedTransaction(context.Background(), credit.ReferrerID, "", transaction.TypeReferral, transaction.StatusCompleted)
		if err != nil {
			t.Fatalf("commission transaction missing: %v", err)
		}
		if tx.ReferralID != chain[0].ID {
			t.Fatalf("transaction referral id %s, want investor %s", tx.ReferralID, chain[0].ID)
		}
	}

	// Levels 4 and 5 of the chain are beyond the configuration.
	for _, usr := range chain[4:] {
		w, _ := store.GetWalletByUser(context.Background(), usr.ID)
		if w.ReferralBalance != 0 {
			t.Fatalf("user beyond the level cap was paid: %v", w.ReferralBalance)
		}
	}

	if len(recorder.Sent()) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(recorder.Sent()))
	}
}

func TestDistributor_ShortChainStopsEarly(t *testing.T) {
	store := memory.New()
	d := NewDistributor(store, store, store, nil, nil)

	chain := seedChain(t, store, 3) // investor plus two sponsors

	credits, err := d.Distribute(context.Background(), chain[0], 1000, threeLevelSettings())
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if len(credits) != 2 {
		t.Fatalf("expected 2 credits, got %d", len(credits))
	}
}

func TestDistributor_MissingLevelStopsWalk(t *testing.T) {
	store := memory.New()
	d := NewDistributor(store, store, store, nil, nil)

	chain := seedChain(t, store, 4)

	settings := referral.Settings{
		Enabled: true,
		Levels:  []referral.Level{{Level: 1, CommissionRate: 5}},
	}
	credits, err := d.Distribute(context.Background(), chain[0], 1000, settings)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if len(credits) != 1 {
		t.Fatalf("expected 1 credit, got %d", len(credits))
	}
}

func TestDistributor_ZeroRateLevelContinuesWalk(t *testing.T) {
	store := memory.New()
	d := NewDistributor(store, store, store, nil, nil)

	chain := seedChain(t, store, 4)

	settings := referral.Settings{
		Enabled: true,
		Levels: []referral.Level{
			{Level: 1, CommissionRate: 0},
			{Level: 2, CommissionRate: 2},
		},
	}
	credits, err := d.Distribute(context.Background(), chain[0], 1000, settings)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if len(credits) != 1 {
		t.Fatalf("expected 1 credit, got %d", len(credits))
	}
	if credits[0].Level != 2 || credits[0].Amount != 20 {
		t.Fatalf("unexpected credit: %+v", credits[0])
	}

	w, _ := store.GetWalletByUser(context.Background(), chain[1].ID)
	if w.ReferralBalance != 0 {
		t.Fatalf("zero-rate level was paid: %v", w.ReferralBalance)
	}
}

func TestDistributor_DisabledIsNoOp(t *testing.T) {
	store := memory.New()
	d := NewDistributor(store, store, store, nil, nil)

	chain := seedChain(t, store, 2)

	settings := threeLevelSettings()
	settings.Enabled = false
	credits, err := d.Distribute(context.Background(), chain[0], 1000, settings)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if credits != nil {
		t.Fatalf("expected no credits, got %v", credits)
	}
}

func TestDistributor_CycleGuard(t *testing.T) {
	store := memory.New()
	d := NewDistributor(store, store, store, nil, nil)

	// Corrupted edges: a sponsors b, b sponsors a.
	a, _ := store.CreateUser(context.Background(), user.User{ID: "a", ReferredBy: "b"})
	if _, err := store.CreateUser(context.Background(), user.User{ID: "b", ReferredBy: "a"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := store.EnsureWallet(context.Background(), "a"); err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	if _, err := store.EnsureWallet(context.Background(), "b"); err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}

	credits, err := d.Distribute(context.Background(), a, 1000, threeLevelSettings())
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	// b is paid once at level 1; the walk stops when it loops back to a.
	if len(credits) != 1 || credits[0].ReferrerID != "b" {
		t.Fatalf("unexpected credits: %+v", credits)
	}
}

func TestDistributor_RejectsNonPositiveAmount(t *testing.T) {
	store := memory.New()
	d := NewDistributor(store, store, store, nil, nil)

	chain := seedChain(t, store, 2)
	if _, err := d.Distribute(context.Background(), chain[0], 0, threeLevelSettings()); err == nil {
		t.Fatalf("expected rejection of zero amount")
	}
}
