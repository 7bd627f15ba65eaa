package referral

import (
	"context"
	"fmt"
	"time"

	"github.com/Goodisoft/vestearning/internal/app/domain/referral"
	"github.com/Goodisoft/vestearning/internal/app/domain/transaction"
	"github.com/Goodisoft/vestearning/internal/app/domain/user"
	"github.com/Goodisoft/vestearning/internal/app/domain/wallet"
	"github.com/Goodisoft/vestearning/internal/app/metrics"
	"github.com/Goodisoft/vestearning/internal/app/notify"
	"github.com/Goodisoft/vestearning/internal/app/storage"
	"github.com/Goodisoft/vestearning/pkg/logger"
)

// Credit is one commission paid out during a distribution.
type Credit struct {
	ReferrerID string
	Level      int
	Amount     float64
}

// Distributor walks the sponsor chain of an investor and credits each
// eligible referrer's referral balance according to the level rates.
type Distributor struct {
	users        storage.UserStore
	transactions storage.TransactionStore
	wallets      storage.WalletStore
	notifier     notify.Notifier
	log          *logger.Logger
}

// NewDistributor constructs a commission distributor.
func NewDistributor(users storage.UserStore, transactions storage.TransactionStore, wallets storage.WalletStore, notifier notify.Notifier, log *logger.Logger) *Distributor {
	if log == nil {
		log = logger.NewDefault("referral")
	}
	return &Distributor{
		users:        users,
		transactions: transactions,
		wallets:      wallets,
		notifier:     notifier,
		log:          log,
	}
}

// Distribute pays commissions for an investment of the given amount made
// by the investor. Settings are passed explicitly so callers control the
// active configuration. The walk stops at the level cap, at the first
// level without configuration, or when the chain runs out; a zero-rate
// level credits nothing but does not stop the walk.
func (d *Distributor) Distribute(ctx context.Context, investor user.User, amount float64, settings referral.Settings) ([]Credit, error) {
	if !settings.Enabled {
		return nil, nil
	}
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	depth := settings.Depth()
	credits := make([]Credit, 0, depth)

	// The sponsor graph is a tree by construction at registration time.
	// The visited set is defense in depth so a corrupted edge can never
	// loop the walk.
	visited := map[string]struct{}{investor.ID: {}}

	referrerID := investor.ReferredBy
	for level := 1; level <= depth && referrerID != ""; level++ {
		if _, seen := visited[referrerID]; seen {
			d.log.WithField("user_id", referrerID).
				WithField("investor_id", investor.ID).
				Warn("sponsor chain cycle detected; stopping distribution")
			break
		}
		visited[referrerID] = struct{}{}

		rate, ok := settings.Rate(level)
		if !ok {
			break
		}

		referrer, err := d.users.GetUser(ctx, referrerID)
		if err != nil {
			return credits, fmt.Errorf("load referrer at level %d: %w", level, err)
		}

		commission := amount * rate / 100
		if commission > 0 {
			if err := d.credit(ctx, referrer, investor, level, commission); err != nil {
				return credits, err
			}
			credits = append(credits, Credit{ReferrerID: referrer.ID, Level: level, Amount: commission})
			metrics.RecordCommission(level, commission)
		}

		referrerID = referrer.ReferredBy
	}

	return credits, nil
}

func (d *Distributor) credit(ctx context.Context, referrer, investor user.User, level int, commission float64) error {
	tx := transaction.Transaction{
		UserID:      referrer.ID,
		Type:        transaction.TypeReferral,
		Amount:      commission,
		Currency:    "USD",
		Status:      transaction.StatusCompleted,
		ReferralID:  investor.ID,
		Description: fmt.Sprintf("level %d referral commission", level),
		CompletedAt: time.Now().UTC(),
	}
	tx, err := d.transactions.CreateTransaction(ctx, tx)
	if err != nil {
		return fmt.Errorf("record commission transaction: %w", err)
	}

	if _, err := d.wallets.CreditWallet(ctx, referrer.ID, wallet.FieldReferralBalance, commission); err != nil {
		return fmt.Errorf("credit referral balance: %w", err)
	}

	d.log.WithField("referrer_id", referrer.ID).
		WithField("investor_id", investor.ID).
		WithField("level", level).
		WithField("amount", commission).
		WithField("tx_id", tx.ID).
		Info("referral commission credited")

	if d.notifier != nil {
		data := map[string]string{
			"amount": fmt.Sprintf("%.2f", commission),
			"level":  fmt.Sprintf("%d", level),
		}
		if err := d.notifier.Notify(ctx, referrer.ID, "Referral commission earned", data); err != nil {
			d.log.WithError(err).
				WithField("referrer_id", referrer.ID).
				Warn("commission notification failed")
		}
	}
	return nil
}
