package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Goodisoft/vestearning/internal/app/domain/investment"
	"github.com/Goodisoft/vestearning/internal/app/domain/referral"
	"github.com/Goodisoft/vestearning/internal/app/domain/transaction"
	"github.com/Goodisoft/vestearning/internal/app/domain/wallet"
	"github.com/Goodisoft/vestearning/internal/app/storage"
)

func TestStore_CreditWallet(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.EnsureWallet(ctx, "u1"); err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}

	w, err := store.CreditWallet(ctx, "u1", wallet.FieldWalletBalance, 100)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if w.WalletBalance != 100 {
		t.Fatalf("balance %v, want 100", w.WalletBalance)
	}

	w, err = store.CreditWallet(ctx, "u1", wallet.FieldWalletBalance, -40)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if w.WalletBalance != 60 {
		t.Fatalf("balance %v, want 60", w.WalletBalance)
	}

	if _, err := store.CreditWallet(ctx, "u1", wallet.FieldWalletBalance, -100); !errors.Is(err, storage.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	w, _ = store.GetWalletByUser(ctx, "u1")
	if w.WalletBalance != 60 {
		t.Fatalf("rejected debit changed the balance: %v", w.WalletBalance)
	}

	if _, err := store.CreditWallet(ctx, "u1", "bogus", 1); err == nil {
		t.Fatalf("expected unknown field rejection")
	}
	if _, err := store.CreditWallet(ctx, "missing", wallet.FieldWalletBalance, 1); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStore_EnsureWalletIsIdempotent(t *testing.T) {
	store := New()
	ctx := context.Background()

	first, err := store.EnsureWallet(ctx, "u1")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := store.CreditWallet(ctx, "u1", wallet.FieldTotalDeposit, 25); err != nil {
		t.Fatalf("credit: %v", err)
	}

	again, err := store.EnsureWallet(ctx, "u1")
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("ensure created a second wallet")
	}
	if again.TotalDeposit != 25 {
		t.Fatalf("ensure reset the wallet: %v", again.TotalDeposit)
	}
}

func TestStore_FindPairedTransaction(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.CreateTransaction(ctx, transaction.Transaction{
		UserID: "u1", PlanID: "p1", Type: transaction.TypeInvestment, Status: transaction.StatusPending,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CreateTransaction(ctx, transaction.Transaction{
		UserID: "u1", PlanID: "p2", Type: transaction.TypeInvestment, Status: transaction.StatusPending,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	tx, err := store.FindPairedTransaction(ctx, "u1", "p1", transaction.TypeInvestment, transaction.StatusPending)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if tx.PlanID != "p1" {
		t.Fatalf("matched wrong plan: %s", tx.PlanID)
	}

	if _, err := store.FindPairedTransaction(ctx, "u1", "p1", transaction.TypeInvestment, transaction.StatusCompleted); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStore_ListDueInvestments(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	due, _ := store.CreateInvestment(ctx, investment.Investment{
		UserID: "u1", Status: investment.StatusActive, EndDate: now.Add(-time.Hour),
	})
	if _, err := store.CreateInvestment(ctx, investment.Investment{
		UserID: "u1", Status: investment.StatusActive, EndDate: now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	uncredited, _ := store.CreateInvestment(ctx, investment.Investment{
		UserID: "u1", Status: investment.StatusCompleted, EndDate: now.Add(-24 * time.Hour),
	})
	if _, err := store.CreateInvestment(ctx, investment.Investment{
		UserID: "u1", Status: investment.StatusCompleted, EndDate: now.Add(-24 * time.Hour), CreditedAt: now,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.ListDueInvestments(ctx, now)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 due, got %d", len(got))
	}
	ids := map[string]bool{}
	for _, inv := range got {
		ids[inv.ID] = true
	}
	if !ids[due.ID] || !ids[uncredited.ID] {
		t.Fatalf("wrong due set: %v", ids)
	}
}

func TestStore_CreditClaimIsExclusive(t *testing.T) {
	store := New()
	ctx := context.Background()
	at := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	inv, err := store.CreateInvestment(ctx, investment.Investment{
		UserID: "u1", Status: investment.StatusCompleted, EndDate: at.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	claimed, err := store.ClaimInvestmentCredit(ctx, inv.ID, at)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !claimed {
		t.Fatalf("first claim must win")
	}
	claimed, err = store.ClaimInvestmentCredit(ctx, inv.ID, at)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if claimed {
		t.Fatalf("second claim must lose")
	}

	// A stale row written through Update must not clear the marker.
	stale, _ := store.GetInvestment(ctx, inv.ID)
	stale.CreditedAt = time.Time{}
	if _, err := store.UpdateInvestment(ctx, stale); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := store.GetInvestment(ctx, inv.ID)
	if got.CreditedAt.IsZero() {
		t.Fatalf("update cleared the credit marker")
	}

	// Release reopens the claim for a payout retry.
	if err := store.ReleaseInvestmentCredit(ctx, inv.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	claimed, err = store.ClaimInvestmentCredit(ctx, inv.ID, at)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if !claimed {
		t.Fatalf("released credit must be claimable again")
	}

	if _, err := store.ClaimInvestmentCredit(ctx, "missing", at); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.ReleaseInvestmentCredit(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStore_UpdatePreservesCreation(t *testing.T) {
	store := New()
	ctx := context.Background()

	inv, err := store.CreateInvestment(ctx, investment.Investment{UserID: "u1", Status: investment.StatusPending})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	inv.Status = investment.StatusActive
	inv.CreatedAt = time.Time{}
	updated, err := store.UpdateInvestment(ctx, inv)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.CreatedAt.IsZero() {
		t.Fatalf("update dropped the creation time")
	}

	if _, err := store.UpdateInvestment(ctx, investment.Investment{ID: "missing"}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStore_ReferralSettingsRoundTrip(t *testing.T) {
	store := New()
	ctx := context.Background()

	empty, err := store.GetReferralSettings(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if empty.Enabled {
		t.Fatalf("unsaved settings must be disabled")
	}

	in := referral.Settings{Enabled: true, Levels: []referral.Level{{Level: 1, CommissionRate: 5}}}
	if err := store.SaveReferralSettings(ctx, in); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, err := store.GetReferralSettings(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !out.Enabled || len(out.Levels) != 1 || out.Levels[0].CommissionRate != 5 {
		t.Fatalf("round trip mismatch: %+v", out)
	}

	// The stored copy is isolated from caller mutation.
	in.Levels[0].CommissionRate = 99
	out, _ = store.GetReferralSettings(ctx)
	if out.Levels[0].CommissionRate != 5 {
		t.Fatalf("stored settings aliased caller slice")
	}
}
