package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Goodisoft/vestearning/internal/app/domain/investment"
	"github.com/Goodisoft/vestearning/internal/app/domain/plan"
	"github.com/Goodisoft/vestearning/internal/app/domain/referral"
	"github.com/Goodisoft/vestearning/internal/app/domain/transaction"
	"github.com/Goodisoft/vestearning/internal/app/domain/user"
	"github.com/Goodisoft/vestearning/internal/app/domain/wallet"
	"github.com/Goodisoft/vestearning/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is
// safe for concurrent use and is primarily intended for tests and local
// development.
type Store struct {
	mu            sync.RWMutex
	nextID        int64
	users         map[string]user.User
	plans         map[string]plan.Plan
	investments   map[string]investment.Investment
	transactions  map[string]transaction.Transaction
	wallets       map[string]wallet.Wallet // keyed by user ID
	settings      referral.Settings
	settingsSaved bool
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.PlanStore = (*Store)(nil)
var _ storage.InvestmentStore = (*Store)(nil)
var _ storage.TransactionStore = (*Store)(nil)
var _ storage.WalletStore = (*Store)(nil)
var _ storage.SettingsStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:       1,
		users:        make(map[string]user.User),
		plans:        make(map[string]plan.Plan),
		investments:  make(map[string]investment.Investment),
		transactions: make(map[string]transaction.Transaction),
		wallets:      make(map[string]wallet.Wallet),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if usr.ID == "" {
		usr.ID = s.nextIDLocked()
	} else if _, exists := s.users[usr.ID]; exists {
		return user.User{}, fmt.Errorf("user %s already exists", usr.ID)
	}

	now := time.Now().UTC()
	usr.CreatedAt = now
	usr.UpdatedAt = now

	s.users[usr.ID] = usr
	return usr, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	usr, ok := s.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return usr, nil
}

// PlanStore implementation ----------------------------------------------------

func (s *Store) CreatePlan(_ context.Context, p plan.Plan) (plan.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = s.nextIDLocked()
	} else if _, exists := s.plans[p.ID]; exists {
		return plan.Plan{}, fmt.Errorf("plan %s already exists", p.ID)
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	s.plans[p.ID] = p
	return p, nil
}

func (s *Store) UpdatePlan(_ context.Context, p plan.Plan) (plan.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.plans[p.ID]
	if !ok {
		return plan.Plan{}, fmt.Errorf("plan %s: %w", p.ID, storage.ErrNotFound)
	}

	p.CreatedAt = original.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	s.plans[p.ID] = p
	return p, nil
}

func (s *Store) GetPlan(_ context.Context, id string) (plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.plans[id]
	if !ok {
		return plan.Plan{}, fmt.Errorf("plan %s: %w", id, storage.ErrNotFound)
	}
	return p, nil
}

func (s *Store) ListPlans(_ context.Context) ([]plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]plan.Plan, 0, len(s.plans))
	for _, p := range s.plans {
		result = append(result, p)
	}
	return result, nil
}

// InvestmentStore implementation ----------------------------------------------

func (s *Store) CreateInvestment(_ context.Context, inv investment.Investment) (investment.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if inv.ID == "" {
		inv.ID = s.nextIDLocked()
	} else if _, exists := s.investments[inv.ID]; exists {
		return investment.Investment{}, fmt.Errorf("investment %s already exists", inv.ID)
	}

	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	s.investments[inv.ID] = inv
	return inv, nil
}

func (s *Store) UpdateInvestment(_ context.Context, inv investment.Investment) (investment.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.investments[inv.ID]
	if !ok {
		return investment.Investment{}, fmt.Errorf("investment %s: %w", inv.ID, storage.ErrNotFound)
	}

	inv.CreatedAt = original.CreatedAt
	// The credit marker is owned by ClaimInvestmentCredit; a stale row
	// written here must not clear it.
	inv.CreditedAt = original.CreditedAt
	inv.UpdatedAt = time.Now().UTC()

	s.investments[inv.ID] = inv
	return inv, nil
}

func (s *Store) ClaimInvestmentCredit(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.investments[id]
	if !ok {
		return false, fmt.Errorf("investment %s: %w", id, storage.ErrNotFound)
	}
	if !inv.CreditedAt.IsZero() {
		return false, nil
	}
	inv.CreditedAt = at
	inv.UpdatedAt = time.Now().UTC()
	s.investments[id] = inv
	return true, nil
}

func (s *Store) ReleaseInvestmentCredit(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.investments[id]
	if !ok {
		return fmt.Errorf("investment %s: %w", id, storage.ErrNotFound)
	}
	inv.CreditedAt = time.Time{}
	inv.UpdatedAt = time.Now().UTC()
	s.investments[id] = inv
	return nil
}

func (s *Store) GetInvestment(_ context.Context, id string) (investment.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.investments[id]
	if !ok {
		return investment.Investment{}, fmt.Errorf("investment %s: %w", id, storage.ErrNotFound)
	}
	return inv, nil
}

func (s *Store) ListInvestments(_ context.Context, userID string) ([]investment.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]investment.Investment, 0)
	for _, inv := range s.investments {
		if userID == "" || inv.UserID == userID {
			result = append(result, inv)
		}
	}
	return result, nil
}

func (s *Store) ListDueInvestments(_ context.Context, now time.Time) ([]investment.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]investment.Investment, 0)
	for _, inv := range s.investments {
		uncredited := inv.Status == investment.StatusCompleted && inv.CreditedAt.IsZero()
		if inv.Matured(now) || uncredited {
			result = append(result, inv)
		}
	}
	return result, nil
}

// TransactionStore implementation ---------------------------------------------

func (s *Store) CreateTransaction(_ context.Context, tx transaction.Transaction) (transaction.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		tx.ID = s.nextIDLocked()
	} else if _, exists := s.transactions[tx.ID]; exists {
		return transaction.Transaction{}, fmt.Errorf("transaction %s already exists", tx.ID)
	}

	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	s.transactions[tx.ID] = tx
	return tx, nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx transaction.Transaction) (transaction.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.transactions[tx.ID]
	if !ok {
		return transaction.Transaction{}, fmt.Errorf("transaction %s: %w", tx.ID, storage.ErrNotFound)
	}

	tx.CreatedAt = original.CreatedAt
	if tx.CompletedAt.IsZero() {
		tx.CompletedAt = original.CompletedAt
	}
	tx.UpdatedAt = time.Now().UTC()

	s.transactions[tx.ID] = tx
	return tx, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return transaction.Transaction{}, fmt.Errorf("transaction %s: %w", id, storage.ErrNotFound)
	}
	return tx, nil
}

func (s *Store) ListTransactions(_ context.Context, userID string) ([]transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]transaction.Transaction, 0)
	for _, tx := range s.transactions {
		if userID == "" || tx.UserID == userID {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (s *Store) FindPairedTransaction(_ context.Context, userID, planID string, txType transaction.Type, status transaction.Status) (transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tx := range s.transactions {
		if tx.UserID == userID && tx.PlanID == planID && tx.Type == txType && tx.Status == status {
			return tx, nil
		}
	}
	return transaction.Transaction{}, fmt.Errorf("transaction for user %s plan %s (%s/%s): %w", userID, planID, txType, status, storage.ErrNotFound)
}

// WalletStore implementation ----------------------------------------------------

func (s *Store) EnsureWallet(_ context.Context, userID string) (wallet.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.wallets[userID]; ok {
		return cloneWallet(w), nil
	}

	now := time.Now().UTC()
	w := wallet.Wallet{
		ID:        s.nextIDLocked(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.wallets[userID] = w
	return cloneWallet(w), nil
}

func (s *Store) GetWalletByUser(_ context.Context, userID string) (wallet.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wallets[userID]
	if !ok {
		return wallet.Wallet{}, fmt.Errorf("wallet for user %s: %w", userID, storage.ErrNotFound)
	}
	return cloneWallet(w), nil
}

func (s *Store) CreditWallet(_ context.Context, userID string, field wallet.Field, amount float64) (wallet.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[userID]
	if !ok {
		return wallet.Wallet{}, fmt.Errorf("wallet for user %s: %w", userID, storage.ErrNotFound)
	}

	var target *float64
	switch field {
	case wallet.FieldWalletBalance:
		target = &w.WalletBalance
	case wallet.FieldReferralBalance:
		target = &w.ReferralBalance
	case wallet.FieldTotalDeposit:
		target = &w.TotalDeposit
	default:
		return wallet.Wallet{}, fmt.Errorf("unknown wallet field %q", field)
	}

	if *target+amount < 0 {
		return wallet.Wallet{}, fmt.Errorf("wallet for user %s field %s: %w", userID, field, storage.ErrInsufficientBalance)
	}
	*target += amount
	w.UpdatedAt = time.Now().UTC()

	s.wallets[userID] = w
	return cloneWallet(w), nil
}

// SettingsStore implementation --------------------------------------------------

func (s *Store) GetReferralSettings(_ context.Context) (referral.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.settingsSaved {
		return referral.Settings{}, nil
	}
	return cloneSettings(s.settings), nil
}

func (s *Store) SaveReferralSettings(_ context.Context, settings referral.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = cloneSettings(settings)
	s.settingsSaved = true
	return nil
}

// Helpers ------------------------------------------------------------------------

func cloneWallet(w wallet.Wallet) wallet.Wallet {
	w.WithdrawalAddresses = append([]string(nil), w.WithdrawalAddresses...)
	return w
}

func cloneSettings(s referral.Settings) referral.Settings {
	s.Levels = append([]referral.Level(nil), s.Levels...)
	return s
}
