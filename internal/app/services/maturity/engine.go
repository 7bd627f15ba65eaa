package maturity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Goodisoft/vestearning/internal/app/domain/investment"
	"github.com/Goodisoft/vestearning/internal/app/domain/transaction"
	"github.com/Goodisoft/vestearning/internal/app/domain/wallet"
	"github.com/Goodisoft/vestearning/internal/app/metrics"
	"github.com/Goodisoft/vestearning/internal/app/notify"
	"github.com/Goodisoft/vestearning/internal/app/storage"
	"github.com/Goodisoft/vestearning/pkg/logger"
)

// Engine finalizes matured investments: it completes the investment and
// its paired transaction and pays principal plus earning into the
// wallet exactly once.
type Engine struct {
	investments storage.InvestmentStore
	txs         storage.TransactionStore
	wallets     storage.WalletStore
	notifier    notify.Notifier
	log         *logger.Logger

	nowFn func() time.Time
}

// NewEngine constructs a maturity engine.
func NewEngine(investments storage.InvestmentStore, txs storage.TransactionStore, wallets storage.WalletStore, notifier notify.Notifier, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.NewDefault("maturity")
	}
	return &Engine{
		investments: investments,
		txs:         txs,
		wallets:     wallets,
		notifier:    notifier,
		log:         log,
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the clock. Intended for tests.
func (e *Engine) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		e.nowFn = nowFn
	}
}

// SweepResult summarizes one sweep over due investments.
type SweepResult struct {
	Due       int
	Finalized int
	Failed    int
}

// Sweep finalizes every active investment whose term has elapsed. Items
// are independent: a failing investment is logged, counted and left
// active so the next sweep retries it.
func (e *Engine) Sweep(ctx context.Context) (SweepResult, error) {
	// The domain clock can be pinned in tests; the duration metric always
	// measures wall time.
	began := time.Now()
	start := e.nowFn()

	due, err := e.investments.ListDueInvestments(ctx, start)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list due investments: %w", err)
	}

	result := SweepResult{Due: len(due)}
	for _, inv := range due {
		if err := e.Finalize(ctx, inv.ID); err != nil {
			result.Failed++
			e.log.WithError(err).
				WithField("investment_id", inv.ID).
				Warn("finalize investment failed; will retry next sweep")
			continue
		}
		result.Finalized++
	}

	metrics.RecordSweep(time.Since(began), result.Finalized, result.Failed)
	if result.Due > 0 {
		e.log.WithField("due", result.Due).
			WithField("finalized", result.Finalized).
			WithField("failed", result.Failed).
			Info("maturity sweep completed")
	}
	return result, nil
}

// Finalize completes a single matured investment. It is idempotent: a
// completed investment is a no-op, an existing ExpectedEarning is never
// recomputed, and the wallet credit is gated on an atomic claim of the
// CreditedAt marker so concurrent finalizers and crash retries pay at
// most once.
func (e *Engine) Finalize(ctx context.Context, investmentID string) error {
	inv, err := e.investments.GetInvestment(ctx, investmentID)
	if err != nil {
		return err
	}

	now := e.nowFn()
	switch inv.Status {
	case investment.StatusActive:
		if inv.EndDate.After(now) {
			return fmt.Errorf("investment %s not matured until %s", inv.ID, inv.EndDate.Format(time.RFC3339))
		}
	case investment.StatusCompleted:
		// Crash recovery: the status flipped on a previous run but the
		// credit may still be owed.
		if !inv.CreditedAt.IsZero() {
			return nil
		}
	default:
		return fmt.Errorf("investment %s is %s, not active", inv.ID, inv.Status)
	}

	earning := inv.ExpectedEarning
	if earning == 0 {
		earning = investment.SimpleInterest(inv.Amount, inv.EarningRate, inv.Duration)
	}

	if inv.Status == investment.StatusActive {
		inv.Status = investment.StatusCompleted
		inv.CompletedAt = now
		inv.ExpectedEarning = earning
		inv, err = e.investments.UpdateInvestment(ctx, inv)
		if err != nil {
			return fmt.Errorf("complete investment: %w", err)
		}
	}

	if err := e.completePairedTransaction(ctx, inv, earning, now); err != nil {
		return err
	}

	claimed, err := e.investments.ClaimInvestmentCredit(ctx, inv.ID, now)
	if err != nil {
		return fmt.Errorf("claim wallet credit: %w", err)
	}
	if !claimed {
		// Another finalizer won the claim; it owns the payout.
		return nil
	}

	payout := inv.Amount + earning
	if _, err := e.wallets.CreditWallet(ctx, inv.UserID, wallet.FieldWalletBalance, payout); err != nil {
		if relErr := e.investments.ReleaseInvestmentCredit(ctx, inv.ID); relErr != nil {
			e.log.WithError(relErr).
				WithField("investment_id", inv.ID).
				Error("release credit claim failed; payout needs manual review")
		}
		return fmt.Errorf("credit wallet: %w", err)
	}

	e.log.WithField("investment_id", inv.ID).
		WithField("user_id", inv.UserID).
		WithField("payout", payout).
		Info("investment matured and credited")

	if e.notifier != nil {
		data := map[string]string{
			"principal": fmt.Sprintf("%.2f", inv.Amount),
			"earning":   fmt.Sprintf("%.2f", earning),
		}
		if err := e.notifier.Notify(ctx, inv.UserID, "Investment matured", data); err != nil {
			e.log.WithError(err).
				WithField("investment_id", inv.ID).
				Warn("maturity notification failed")
		}
	}

	return nil
}

func (e *Engine) completePairedTransaction(ctx context.Context, inv investment.Investment, earning float64, now time.Time) error {
	tx, err := e.txs.FindPairedTransaction(ctx, inv.UserID, inv.PlanID, transaction.TypeInvestment, transaction.StatusProcessing)
	if err != nil {
		// Already advanced on an earlier attempt.
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}

	tx.Status = transaction.StatusCompleted
	tx.CompletedAt = now
	if tx.ExpectedEarning == 0 {
		tx.ExpectedEarning = earning
	}
	if _, err := e.txs.UpdateTransaction(ctx, tx); err != nil {
		return fmt.Errorf("complete paired transaction: %w", err)
	}
	return nil
}
