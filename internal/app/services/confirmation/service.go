package confirmation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Goodisoft/vestearning/internal/app/domain/investment"
	"github.com/Goodisoft/vestearning/internal/app/domain/referral"
	"github.com/Goodisoft/vestearning/internal/app/domain/transaction"
	"github.com/Goodisoft/vestearning/internal/app/domain/wallet"
	"github.com/Goodisoft/vestearning/internal/app/metrics"
	"github.com/Goodisoft/vestearning/internal/app/notify"
	referralsvc "github.com/Goodisoft/vestearning/internal/app/services/referral"
	"github.com/Goodisoft/vestearning/internal/app/storage"
	"github.com/Goodisoft/vestearning/pkg/logger"
)

// ErrInvalidState is returned when an operation targets an investment
// outside the status it requires, e.g. confirming one that is already
// active.
var ErrInvalidState = errors.New("invalid investment state")

// ErrInvalidRequest is returned when a submission fails validation
// against its plan: non-positive amount, inactive plan, or an amount
// outside the plan bounds.
var ErrInvalidRequest = errors.New("invalid request")

// Service runs the operator-facing investment workflow: submitting a
// pending investment from a plan, confirming it into an active term, and
// cancelling it.
type Service struct {
	users       storage.UserStore
	plans       storage.PlanStore
	investments storage.InvestmentStore
	txs         storage.TransactionStore
	wallets     storage.WalletStore
	settings    storage.SettingsStore
	distributor *referralsvc.Distributor
	notifier    notify.Notifier
	log         *logger.Logger

	nowFn func() time.Time
}

// New constructs a confirmation service.
func New(users storage.UserStore, plans storage.PlanStore, investments storage.InvestmentStore, txs storage.TransactionStore, wallets storage.WalletStore, settings storage.SettingsStore, distributor *referralsvc.Distributor, notifier notify.Notifier, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("confirmation")
	}
	return &Service{
		users:       users,
		plans:       plans,
		investments: investments,
		txs:         txs,
		wallets:     wallets,
		settings:    settings,
		distributor: distributor,
		notifier:    notifier,
		log:         log,
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the clock. Intended for tests.
func (s *Service) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// Submit creates a pending investment and its paired pending transaction
// from a plan snapshot. The plan's rate and term are copied onto the
// investment so later plan edits never affect it.
func (s *Service) Submit(ctx context.Context, userID, planID string, amount float64) (investment.Investment, error) {
	inv, err := s.submit(ctx, userID, planID, amount)
	metrics.RecordConfirmation("submit", err)
	return inv, err
}

func (s *Service) submit(ctx context.Context, userID, planID string, amount float64) (investment.Investment, error) {
	if amount <= 0 {
		return investment.Investment{}, fmt.Errorf("amount must be positive: %w", ErrInvalidRequest)
	}

	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return investment.Investment{}, fmt.Errorf("user validation failed: %w", err)
	}

	p, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return investment.Investment{}, fmt.Errorf("plan validation failed: %w", err)
	}
	if !p.Active {
		return investment.Investment{}, fmt.Errorf("plan %s is not active: %w", planID, ErrInvalidRequest)
	}
	if amount < p.MinAmount {
		return investment.Investment{}, fmt.Errorf("amount %.2f below plan minimum %.2f: %w", amount, p.MinAmount, ErrInvalidRequest)
	}
	if p.MaxAmount > 0 && amount > p.MaxAmount {
		return investment.Investment{}, fmt.Errorf("amount %.2f above plan maximum %.2f: %w", amount, p.MaxAmount, ErrInvalidRequest)
	}

	inv := investment.Investment{
		UserID:       userID,
		PlanID:       planID,
		Amount:       amount,
		EarningRate:  p.ROIPercentage / 100,
		Duration:     p.Term,
		DurationUnit: investment.DurationUnit(p.TermPeriod),
		Type:         investment.TypeInvestment,
		Status:       investment.StatusPending,
	}
	inv, err = s.investments.CreateInvestment(ctx, inv)
	if err != nil {
		return investment.Investment{}, err
	}

	tx := transaction.Transaction{
		UserID:      userID,
		Type:        transaction.TypeInvestment,
		Amount:      amount,
		Currency:    "USD",
		Status:      transaction.StatusPending,
		PlanID:      planID,
		Description: fmt.Sprintf("investment in plan %s", p.Name),
	}
	if _, err := s.txs.CreateTransaction(ctx, tx); err != nil {
		return investment.Investment{}, fmt.Errorf("create paired transaction: %w", err)
	}

	s.log.WithField("investment_id", inv.ID).
		WithField("user_id", userID).
		WithField("plan_id", planID).
		WithField("amount", amount).
		Info("investment submitted")
	return inv, nil
}

// Confirm activates a pending investment: it stamps the term dates,
// computes the expected earning once, advances the paired transaction to
// processing, counts the principal as deposited, and distributes referral
// commissions. Referral and notification failures are logged, never
// propagated; persistence failures fail the confirmation and the
// operator retries.
func (s *Service) Confirm(ctx context.Context, investmentID string) (investment.Investment, error) {
	inv, err := s.confirm(ctx, investmentID)
	metrics.RecordConfirmation("confirm", err)
	return inv, err
}

func (s *Service) confirm(ctx context.Context, investmentID string) (investment.Investment, error) {
	inv, err := s.investments.GetInvestment(ctx, investmentID)
	if err != nil {
		return investment.Investment{}, err
	}
	if inv.Status != investment.StatusPending {
		return investment.Investment{}, fmt.Errorf("investment %s already %s: %w", inv.ID, inv.Status, ErrInvalidState)
	}

	tx, err := s.txs.FindPairedTransaction(ctx, inv.UserID, inv.PlanID, transaction.TypeInvestment, transaction.StatusPending)
	if err != nil {
		return investment.Investment{}, err
	}

	now := s.nowFn()
	inv.Status = investment.StatusActive
	inv.StartDate = now
	inv.EndDate = investment.TermEnd(now, inv.Duration, inv.DurationUnit)
	inv.ExpectedEarning = investment.SimpleInterest(inv.Amount, inv.EarningRate, inv.Duration)

	inv, err = s.investments.UpdateInvestment(ctx, inv)
	if err != nil {
		return investment.Investment{}, err
	}

	tx.Status = transaction.StatusProcessing
	tx.ExpectedEarning = inv.ExpectedEarning
	if _, err := s.txs.UpdateTransaction(ctx, tx); err != nil {
		return investment.Investment{}, fmt.Errorf("advance paired transaction: %w", err)
	}

	if _, err := s.wallets.EnsureWallet(ctx, inv.UserID); err != nil {
		return investment.Investment{}, err
	}
	if _, err := s.wallets.CreditWallet(ctx, inv.UserID, wallet.FieldTotalDeposit, inv.Amount); err != nil {
		return investment.Investment{}, fmt.Errorf("record deposit: %w", err)
	}

	s.distribute(ctx, inv)

	s.log.WithField("investment_id", inv.ID).
		WithField("user_id", inv.UserID).
		WithField("end_date", inv.EndDate).
		WithField("expected_earning", inv.ExpectedEarning).
		Info("investment confirmed")

	if s.notifier != nil {
		data := map[string]string{
			"amount":   fmt.Sprintf("%.2f", inv.Amount),
			"earning":  fmt.Sprintf("%.2f", inv.ExpectedEarning),
			"end_date": inv.EndDate.Format(time.RFC3339),
		}
		if err := s.notifier.Notify(ctx, inv.UserID, "Investment confirmed", data); err != nil {
			s.log.WithError(err).
				WithField("investment_id", inv.ID).
				Warn("confirmation notification failed")
		}
	}

	return inv, nil
}

// Cancel moves a pending investment and its paired transaction to
// cancelled. Non-pending investments cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, investmentID string) (investment.Investment, error) {
	inv, err := s.cancel(ctx, investmentID)
	metrics.RecordConfirmation("cancel", err)
	return inv, err
}

func (s *Service) cancel(ctx context.Context, investmentID string) (investment.Investment, error) {
	inv, err := s.investments.GetInvestment(ctx, investmentID)
	if err != nil {
		return investment.Investment{}, err
	}
	if inv.Status != investment.StatusPending {
		return investment.Investment{}, fmt.Errorf("investment %s already %s: %w", inv.ID, inv.Status, ErrInvalidState)
	}

	inv.Status = investment.StatusCancelled
	inv, err = s.investments.UpdateInvestment(ctx, inv)
	if err != nil {
		return investment.Investment{}, err
	}

	tx, err := s.txs.FindPairedTransaction(ctx, inv.UserID, inv.PlanID, transaction.TypeInvestment, transaction.StatusPending)
	if err == nil {
		tx.Status = transaction.StatusCancelled
		if _, err := s.txs.UpdateTransaction(ctx, tx); err != nil {
			return investment.Investment{}, fmt.Errorf("cancel paired transaction: %w", err)
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return investment.Investment{}, err
	}

	s.log.WithField("investment_id", inv.ID).
		WithField("user_id", inv.UserID).
		Info("investment cancelled")
	return inv, nil
}

// distribute runs referral payout best-effort. A distribution failure
// never rolls back or fails the confirmation.
func (s *Service) distribute(ctx context.Context, inv investment.Investment) {
	if s.distributor == nil {
		return
	}

	settings, err := s.settingsFor(ctx)
	if err != nil {
		s.log.WithError(err).Warn("load referral settings failed; skipping distribution")
		return
	}
	if !settings.Enabled {
		return
	}

	investor, err := s.users.GetUser(ctx, inv.UserID)
	if err != nil {
		s.log.WithError(err).
			WithField("investment_id", inv.ID).
			Warn("load investor failed; skipping distribution")
		return
	}

	if _, err := s.distributor.Distribute(ctx, investor, inv.Amount, settings); err != nil {
		s.log.WithError(err).
			WithField("investment_id", inv.ID).
			Warn("referral distribution failed")
	}
}

func (s *Service) settingsFor(ctx context.Context) (referral.Settings, error) {
	if s.settings == nil {
		return referral.Settings{}, nil
	}
	return s.settings.GetReferralSettings(ctx)
}
