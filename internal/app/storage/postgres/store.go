package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Goodisoft/vestearning/internal/app/domain/investment"
	"github.com/Goodisoft/vestearning/internal/app/domain/plan"
	"github.com/Goodisoft/vestearning/internal/app/domain/referral"
	"github.com/Goodisoft/vestearning/internal/app/domain/transaction"
	"github.com/Goodisoft/vestearning/internal/app/domain/user"
	"github.com/Goodisoft/vestearning/internal/app/domain/wallet"
	"github.com/Goodisoft/vestearning/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.PlanStore = (*Store)(nil)
var _ storage.InvestmentStore = (*Store)(nil)
var _ storage.TransactionStore = (*Store)(nil)
var _ storage.WalletStore = (*Store)(nil)
var _ storage.SettingsStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL and verifies the connection.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// DB exposes the underlying handle, e.g. for migrations.
func (s *Store) DB() *sqlx.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func notFoundOr(err error, wrapped error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return wrapped
	}
	return err
}

// --- UserStore --------------------------------------------------------------

type userRow struct {
	ID         string         `db:"id"`
	Email      string         `db:"email"`
	Name       string         `db:"name"`
	ReferredBy sql.NullString `db:"referred_by"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

func (r userRow) toDomain() user.User {
	return user.User{
		ID:         r.ID,
		Email:      r.Email,
		Name:       r.Name,
		ReferredBy: r.ReferredBy.String,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func (s *Store) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	usr.CreatedAt = now
	usr.UpdatedAt = now

	referredBy := sql.NullString{String: usr.ReferredBy, Valid: usr.ReferredBy != ""}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, referred_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, usr.ID, usr.Email, usr.Name, referredBy, usr.CreatedAt, usr.UpdatedAt)
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, email, name, referred_by, created_at, updated_at
		FROM users WHERE id = $1
	`, id)
	if err != nil {
		return user.User{}, notFoundOr(err, storage.ErrNotFound)
	}
	return row.toDomain(), nil
}

// --- PlanStore --------------------------------------------------------------

type planRow struct {
	ID            string    `db:"id"`
	Name          string    `db:"name"`
	MinAmount     float64   `db:"min_amount"`
	MaxAmount     float64   `db:"max_amount"`
	ROIPercentage float64   `db:"roi_percentage"`
	Term          int       `db:"term"`
	TermPeriod    string    `db:"term_period"`
	Type          string    `db:"type"`
	Active        bool      `db:"active"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r planRow) toDomain() plan.Plan {
	return plan.Plan{
		ID:            r.ID,
		Name:          r.Name,
		MinAmount:     r.MinAmount,
		MaxAmount:     r.MaxAmount,
		ROIPercentage: r.ROIPercentage,
		Term:          r.Term,
		TermPeriod:    r.TermPeriod,
		Type:          r.Type,
		Active:        r.Active,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (s *Store) CreatePlan(ctx context.Context, p plan.Plan) (plan.Plan, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plans (id, name, min_amount, max_amount, roi_percentage, term, term_period, type, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, p.ID, p.Name, p.MinAmount, p.MaxAmount, p.ROIPercentage, p.Term, p.TermPeriod, p.Type, p.Active, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return plan.Plan{}, err
	}
	return p, nil
}

func (s *Store) UpdatePlan(ctx context.Context, p plan.Plan) (plan.Plan, error) {
	p.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE plans
		SET name = $2, min_amount = $3, max_amount = $4, roi_percentage = $5,
		    term = $6, term_period = $7, type = $8, active = $9, updated_at = $10
		WHERE id = $1
	`, p.ID, p.Name, p.MinAmount, p.MaxAmount, p.ROIPercentage, p.Term, p.TermPeriod, p.Type, p.Active, p.UpdatedAt)
	if err != nil {
		return plan.Plan{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return plan.Plan{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetPlan(ctx context.Context, id string) (plan.Plan, error) {
	var row planRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, name, min_amount, max_amount, roi_percentage, term, term_period, type, active, created_at, updated_at
		FROM plans WHERE id = $1
	`, id)
	if err != nil {
		return plan.Plan{}, notFoundOr(err, storage.ErrNotFound)
	}
	return row.toDomain(), nil
}

func (s *Store) ListPlans(ctx context.Context) ([]plan.Plan, error) {
	var rows []planRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, min_amount, max_amount, roi_percentage, term, term_period, type, active, created_at, updated_at
		FROM plans ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	result := make([]plan.Plan, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

// --- InvestmentStore --------------------------------------------------------

type investmentRow struct {
	ID              string       `db:"id"`
	UserID          string       `db:"user_id"`
	PlanID          string       `db:"plan_id"`
	Amount          float64      `db:"amount"`
	EarningRate     float64      `db:"earning_rate"`
	Duration        int          `db:"duration"`
	DurationUnit    string       `db:"duration_unit"`
	Type            string       `db:"type"`
	Status          string       `db:"status"`
	StartDate       sql.NullTime `db:"start_date"`
	EndDate         sql.NullTime `db:"end_date"`
	ExpectedEarning float64      `db:"expected_earning"`
	CompletedAt     sql.NullTime `db:"completed_at"`
	CreditedAt      sql.NullTime `db:"credited_at"`
	CreatedAt       time.Time    `db:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at"`
}

func (r investmentRow) toDomain() investment.Investment {
	return investment.Investment{
		ID:              r.ID,
		UserID:          r.UserID,
		PlanID:          r.PlanID,
		Amount:          r.Amount,
		EarningRate:     r.EarningRate,
		Duration:        r.Duration,
		DurationUnit:    investment.DurationUnit(r.DurationUnit),
		Type:            investment.Type(r.Type),
		Status:          investment.Status(r.Status),
		StartDate:       r.StartDate.Time,
		EndDate:         r.EndDate.Time,
		ExpectedEarning: r.ExpectedEarning,
		CompletedAt:     r.CompletedAt.Time,
		CreditedAt:      r.CreditedAt.Time,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

const investmentColumns = `id, user_id, plan_id, amount, earning_rate, duration, duration_unit, type, status,
	start_date, end_date, expected_earning, completed_at, credited_at, created_at, updated_at`

func (s *Store) CreateInvestment(ctx context.Context, inv investment.Investment) (investment.Investment, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO investments (id, user_id, plan_id, amount, earning_rate, duration, duration_unit, type, status,
			start_date, end_date, expected_earning, completed_at, credited_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, inv.ID, inv.UserID, inv.PlanID, inv.Amount, inv.EarningRate, inv.Duration, string(inv.DurationUnit),
		string(inv.Type), string(inv.Status), nullTime(inv.StartDate), nullTime(inv.EndDate),
		inv.ExpectedEarning, nullTime(inv.CompletedAt), nullTime(inv.CreditedAt), inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return investment.Investment{}, err
	}
	return inv, nil
}

// UpdateInvestment writes every column except credited_at, which is
// owned by ClaimInvestmentCredit so a stale row cannot clear a claim.
func (s *Store) UpdateInvestment(ctx context.Context, inv investment.Investment) (investment.Investment, error) {
	inv.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE investments
		SET status = $2, start_date = $3, end_date = $4, expected_earning = $5,
		    completed_at = $6, updated_at = $7
		WHERE id = $1
	`, inv.ID, string(inv.Status), nullTime(inv.StartDate), nullTime(inv.EndDate),
		inv.ExpectedEarning, nullTime(inv.CompletedAt), inv.UpdatedAt)
	if err != nil {
		return investment.Investment{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return investment.Investment{}, storage.ErrNotFound
	}
	return inv, nil
}

func (s *Store) ClaimInvestmentCredit(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE investments SET credited_at = $2, updated_at = $3
		WHERE id = $1 AND credited_at IS NULL
	`, id, at, time.Now().UTC())
	if err != nil {
		return false, err
	}
	if rows, _ := result.RowsAffected(); rows > 0 {
		return true, nil
	}

	// No row claimed: either it is already credited or it does not exist.
	if _, err := s.GetInvestment(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) ReleaseInvestmentCredit(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE investments SET credited_at = NULL, updated_at = $2 WHERE id = $1
	`, id, time.Now().UTC())
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("investment %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) GetInvestment(ctx context.Context, id string) (investment.Investment, error) {
	var row investmentRow
	err := s.db.GetContext(ctx, &row, `SELECT `+investmentColumns+` FROM investments WHERE id = $1`, id)
	if err != nil {
		return investment.Investment{}, notFoundOr(err, storage.ErrNotFound)
	}
	return row.toDomain(), nil
}

func (s *Store) ListInvestments(ctx context.Context, userID string) ([]investment.Investment, error) {
	var rows []investmentRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+investmentColumns+` FROM investments WHERE user_id = $1 ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	result := make([]investment.Investment, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func (s *Store) ListDueInvestments(ctx context.Context, now time.Time) ([]investment.Investment, error) {
	var rows []investmentRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+investmentColumns+` FROM investments
		WHERE (status = 'active' AND end_date <= $1)
		   OR (status = 'completed' AND credited_at IS NULL)
		ORDER BY end_date
	`, now)
	if err != nil {
		return nil, err
	}
	result := make([]investment.Investment, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

// --- TransactionStore -------------------------------------------------------

type transactionRow struct {
	ID              string         `db:"id"`
	UserID          string         `db:"user_id"`
	Type            string         `db:"type"`
	Amount          float64        `db:"amount"`
	Currency        string         `db:"currency"`
	Status          string         `db:"status"`
	PlanID          sql.NullString `db:"plan_id"`
	ReferralID      sql.NullString `db:"referral_id"`
	Description     string         `db:"description"`
	ExpectedEarning float64        `db:"expected_earning"`
	CompletedAt     sql.NullTime   `db:"completed_at"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r transactionRow) toDomain() transaction.Transaction {
	return transaction.Transaction{
		ID:              r.ID,
		UserID:          r.UserID,
		Type:            transaction.Type(r.Type),
		Amount:          r.Amount,
		Currency:        r.Currency,
		Status:          transaction.Status(r.Status),
		PlanID:          r.PlanID.String,
		ReferralID:      r.ReferralID.String,
		Description:     r.Description,
		ExpectedEarning: r.ExpectedEarning,
		CompletedAt:     r.CompletedAt.Time,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

const transactionColumns = `id, user_id, type, amount, currency, status, plan_id, referral_id, description,
	expected_earning, completed_at, created_at, updated_at`

func (s *Store) CreateTransaction(ctx context.Context, tx transaction.Transaction) (transaction.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, type, amount, currency, status, plan_id, referral_id, description,
			expected_earning, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, tx.ID, tx.UserID, string(tx.Type), tx.Amount, tx.Currency, string(tx.Status), nullString(tx.PlanID),
		nullString(tx.ReferralID), tx.Description, tx.ExpectedEarning, nullTime(tx.CompletedAt), tx.CreatedAt, tx.UpdatedAt)
	if err != nil {
		return transaction.Transaction{}, err
	}
	return tx, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx transaction.Transaction) (transaction.Transaction, error) {
	tx.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = $2, expected_earning = $3, completed_at = COALESCE($4, completed_at), updated_at = $5
		WHERE id = $1
	`, tx.ID, string(tx.Status), tx.ExpectedEarning, nullTime(tx.CompletedAt), tx.UpdatedAt)
	if err != nil {
		return transaction.Transaction{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return transaction.Transaction{}, storage.ErrNotFound
	}
	return tx, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (transaction.Transaction, error) {
	var row transactionRow
	err := s.db.GetContext(ctx, &row, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	if err != nil {
		return transaction.Transaction{}, notFoundOr(err, storage.ErrNotFound)
	}
	return row.toDomain(), nil
}

func (s *Store) ListTransactions(ctx context.Context, userID string) ([]transaction.Transaction, error) {
	var rows []transactionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+transactionColumns+` FROM transactions WHERE user_id = $1 ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	result := make([]transaction.Transaction, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func (s *Store) FindPairedTransaction(ctx context.Context, userID, planID string, txType transaction.Type, status transaction.Status) (transaction.Transaction, error) {
	var row transactionRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = $1 AND plan_id = $2 AND type = $3 AND status = $4
		ORDER BY created_at
		LIMIT 1
	`, userID, planID, string(txType), string(status))
	if err != nil {
		return transaction.Transaction{}, notFoundOr(err, storage.ErrNotFound)
	}
	return row.toDomain(), nil
}

// --- WalletStore ------------------------------------------------------------

type walletRow struct {
	ID                  string         `db:"id"`
	UserID              string         `db:"user_id"`
	WalletBalance       float64        `db:"wallet_balance"`
	ReferralBalance     float64        `db:"referral_balance"`
	TotalDeposit        float64        `db:"total_deposit"`
	TotalWithdrawal     float64        `db:"total_withdrawal"`
	WithdrawalAddresses pq.StringArray `db:"withdrawal_addresses"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

func (r walletRow) toDomain() wallet.Wallet {
	return wallet.Wallet{
		ID:                  r.ID,
		UserID:              r.UserID,
		WalletBalance:       r.WalletBalance,
		ReferralBalance:     r.ReferralBalance,
		TotalDeposit:        r.TotalDeposit,
		TotalWithdrawal:     r.TotalWithdrawal,
		WithdrawalAddresses: r.WithdrawalAddresses,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

const walletColumns = `id, user_id, wallet_balance, referral_balance, total_deposit, total_withdrawal,
	withdrawal_addresses, created_at, updated_at`

func (s *Store) EnsureWallet(ctx context.Context, userID string) (wallet.Wallet, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wallets (id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id) DO NOTHING
	`, uuid.NewString(), userID, now)
	if err != nil {
		return wallet.Wallet{}, err
	}
	return s.GetWalletByUser(ctx, userID)
}

func (s *Store) GetWalletByUser(ctx context.Context, userID string) (wallet.Wallet, error) {
	var row walletRow
	err := s.db.GetContext(ctx, &row, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID)
	if err != nil {
		return wallet.Wallet{}, notFoundOr(err, storage.ErrNotFound)
	}
	return row.toDomain(), nil
}

// CreditWallet applies a single atomic increment guarded against driving
// the field negative, so concurrent actors cannot lose updates or
// overdraw.
func (s *Store) CreditWallet(ctx context.Context, userID string, field wallet.Field, amount float64) (wallet.Wallet, error) {
	column, err := walletColumn(field)
	if err != nil {
		return wallet.Wallet{}, err
	}

	var row walletRow
	err = s.db.GetContext(ctx, &row, `
		UPDATE wallets
		SET `+column+` = `+column+` + $2, updated_at = $3
		WHERE user_id = $1 AND `+column+` + $2 >= 0
		RETURNING `+walletColumns+`
	`, userID, amount, time.Now().UTC())
	if err == nil {
		return row.toDomain(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return wallet.Wallet{}, err
	}

	// Distinguish a missing wallet from a rejected overdraw.
	if _, getErr := s.GetWalletByUser(ctx, userID); getErr != nil {
		return wallet.Wallet{}, getErr
	}
	return wallet.Wallet{}, storage.ErrInsufficientBalance
}

func walletColumn(field wallet.Field) (string, error) {
	switch field {
	case wallet.FieldWalletBalance:
		return "wallet_balance", nil
	case wallet.FieldReferralBalance:
		return "referral_balance", nil
	case wallet.FieldTotalDeposit:
		return "total_deposit", nil
	default:
		return "", errors.New("unknown wallet field " + string(field))
	}
}

// --- SettingsStore ----------------------------------------------------------

func (s *Store) GetReferralSettings(ctx context.Context) (referral.Settings, error) {
	var (
		enabled   bool
		levelsRaw []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT enabled, levels FROM referral_settings WHERE id = 1
	`).Scan(&enabled, &levelsRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return referral.Settings{}, nil
	}
	if err != nil {
		return referral.Settings{}, err
	}

	settings := referral.Settings{Enabled: enabled}
	if len(levelsRaw) > 0 {
		if err := json.Unmarshal(levelsRaw, &settings.Levels); err != nil {
			return referral.Settings{}, err
		}
	}
	return settings, nil
}

func (s *Store) SaveReferralSettings(ctx context.Context, settings referral.Settings) error {
	levelsRaw, err := json.Marshal(settings.Levels)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO referral_settings (id, enabled, levels, updated_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET enabled = $1, levels = $2, updated_at = $3
	`, settings.Enabled, levelsRaw, time.Now().UTC())
	return err
}
