package storage

import (
	"context"
	"time"

	"github.com/Goodisoft/vestearning/internal/app/domain/investment"
	"github.com/Goodisoft/vestearning/internal/app/domain/plan"
	"github.com/Goodisoft/vestearning/internal/app/domain/referral"
	"github.com/Goodisoft/vestearning/internal/app/domain/transaction"
	"github.com/Goodisoft/vestearning/internal/app/domain/user"
	"github.com/Goodisoft/vestearning/internal/app/domain/wallet"
)

// UserStore persists user records. The referral distributor walks the
// sponsor chain through repeated GetUser calls on the ReferredBy edge.
type UserStore interface {
	CreateUser(ctx context.Context, usr user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
}

// PlanStore persists the plans investments snapshot their terms from.
type PlanStore interface {
	CreatePlan(ctx context.Context, p plan.Plan) (plan.Plan, error)
	UpdatePlan(ctx context.Context, p plan.Plan) (plan.Plan, error)
	GetPlan(ctx context.Context, id string) (plan.Plan, error)
	ListPlans(ctx context.Context) ([]plan.Plan, error)
}

// InvestmentStore persists investments. The CreditedAt marker is owned
// by ClaimInvestmentCredit and ReleaseInvestmentCredit; UpdateInvestment
// never touches it, so concurrent finalizers cannot clear a claim by
// writing a stale row.
type InvestmentStore interface {
	CreateInvestment(ctx context.Context, inv investment.Investment) (investment.Investment, error)
	UpdateInvestment(ctx context.Context, inv investment.Investment) (investment.Investment, error)
	GetInvestment(ctx context.Context, id string) (investment.Investment, error)
	ListInvestments(ctx context.Context, userID string) ([]investment.Investment, error)

	// ListDueInvestments returns investments owed a payout at the given
	// instant: active ones whose end date has passed, plus completed ones
	// whose wallet credit never landed.
	ListDueInvestments(ctx context.Context, now time.Time) ([]investment.Investment, error)

	// ClaimInvestmentCredit sets CreditedAt if and only if it is still
	// unset, in a single atomic step. It reports whether this call won
	// the claim; false means another finalizer holds or already paid it.
	ClaimInvestmentCredit(ctx context.Context, id string, at time.Time) (bool, error)

	// ReleaseInvestmentCredit clears CreditedAt so a failed payout can be
	// retried by the next sweep.
	ReleaseInvestmentCredit(ctx context.Context, id string) error
}

// TransactionStore persists the audit transactions paired with
// investments and referral credits.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx transaction.Transaction) (transaction.Transaction, error)
	UpdateTransaction(ctx context.Context, tx transaction.Transaction) (transaction.Transaction, error)
	GetTransaction(ctx context.Context, id string) (transaction.Transaction, error)
	ListTransactions(ctx context.Context, userID string) ([]transaction.Transaction, error)

	// FindPairedTransaction locates the transaction mirroring an investment
	// by user, plan, type and current status.
	FindPairedTransaction(ctx context.Context, userID, planID string, txType transaction.Type, status transaction.Status) (transaction.Transaction, error)
}

// WalletStore persists wallets. CreditWallet is the only mutation path
// for balances: a single atomic increment so concurrent actors cannot
// lose updates, rejecting any delta that would leave the field negative.
type WalletStore interface {
	EnsureWallet(ctx context.Context, userID string) (wallet.Wallet, error)
	GetWalletByUser(ctx context.Context, userID string) (wallet.Wallet, error)
	CreditWallet(ctx context.Context, userID string, field wallet.Field, amount float64) (wallet.Wallet, error)
}

// SettingsStore persists the referral program configuration.
type SettingsStore interface {
	GetReferralSettings(ctx context.Context) (referral.Settings, error)
	SaveReferralSettings(ctx context.Context, settings referral.Settings) error
}
