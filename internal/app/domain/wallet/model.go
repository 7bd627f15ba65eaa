package wallet

import "time"

// Field names a creditable wallet balance. Business logic never assigns
// balances directly; every mutation is an atomic increment on one field.
type Field string

const (
	FieldWalletBalance   Field = "wallet_balance"
	FieldReferralBalance Field = "referral_balance"
	FieldTotalDeposit    Field = "total_deposit"
)

// Wallet tracks a user's balances. WalletBalance is spendable principal
// and earnings, ReferralBalance accumulates commissions, TotalDeposit is
// a running count of confirmed principal.
type Wallet struct {
	ID                  string
	UserID              string
	WalletBalance       float64
	ReferralBalance     float64
	TotalDeposit        float64
	TotalWithdrawal     float64
	WithdrawalAddresses []string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
