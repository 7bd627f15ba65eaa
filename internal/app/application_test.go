package app

import (
	"context"
	"testing"
	"time"

	"github.com/Goodisoft/vestearning/internal/app/domain/investment"
	"github.com/Goodisoft/vestearning/internal/app/domain/plan"
	"github.com/Goodisoft/vestearning/internal/app/domain/referral"
	"github.com/Goodisoft/vestearning/internal/app/domain/user"
	"github.com/Goodisoft/vestearning/internal/app/storage/memory"
)

// TestApplication_InvestmentLifecycle walks one investment through the
// whole engine: submit, confirm, mature, sweep, payout, with a referral
// commission along the way.
func TestApplication_InvestmentLifecycle(t *testing.T) {
	store := memory.New()
	application, err := New(Stores{
		Users:        store,
		Plans:        store,
		Investments:  store,
		Transactions: store,
		Wallets:      store,
		Settings:     store,
	}, Options{SweepInterval: time.Hour}, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}

	ctx := context.Background()
	if err := application.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer application.Stop(ctx)

	sponsor, _ := store.CreateUser(ctx, user.User{Name: "sponsor"})
	investor, _ := store.CreateUser(ctx, user.User{Name: "investor", ReferredBy: sponsor.ID})
	if _, err := store.EnsureWallet(ctx, sponsor.ID); err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	if err := store.SaveReferralSettings(ctx, referral.Settings{
		Enabled: true,
		Levels:  []referral.Level{{Level: 1, CommissionRate: 5}},
	}); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	p, err := store.CreatePlan(ctx, plan.Plan{
		Name: "gold", MinAmount: 100, MaxAmount: 10000, ROIPercentage: 10,
		Term: 5, TermPeriod: "day", Active: true,
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	application.Confirmation.WithClock(func() time.Time { return start })

	inv, err := application.Confirmation.Submit(ctx, investor.ID, p.ID, 1000)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := application.Confirmation.Confirm(ctx, inv.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	sponsorWallet, _ := store.GetWalletByUser(ctx, sponsor.ID)
	if sponsorWallet.ReferralBalance != 50 {
		t.Fatalf("sponsor referral balance %v, want 50", sponsorWallet.ReferralBalance)
	}

	// Jump past the term end and force a sweep.
	application.Maturity.WithClock(func() time.Time { return start.AddDate(0, 0, 6) })
	application.Sweeper.Tick(ctx)

	got, err := store.GetInvestment(ctx, inv.ID)
	if err != nil {
		t.Fatalf("get investment: %v", err)
	}
	if got.Status != investment.StatusCompleted {
		t.Fatalf("status %s, want completed", got.Status)
	}

	investorWallet, _ := store.GetWalletByUser(ctx, investor.ID)
	if investorWallet.WalletBalance != 1500 {
		t.Fatalf("investor balance %v, want 1500 (principal 1000 + earning 500)", investorWallet.WalletBalance)
	}
	if investorWallet.TotalDeposit != 1000 {
		t.Fatalf("total deposit %v, want 1000", investorWallet.TotalDeposit)
	}
}

func TestApplication_DefaultsToMemoryStores(t *testing.T) {
	application, err := New(Stores{}, Options{}, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}

	ctx := context.Background()
	if err := application.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := application.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestApplication_RejectsBadSweepSchedule(t *testing.T) {
	if _, err := New(Stores{}, Options{SweepSchedule: "nonsense"}, nil); err == nil {
		t.Fatalf("expected schedule parse error")
	}
}
