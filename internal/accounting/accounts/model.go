package accounts

import (
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// NormalBalance returns the side on which accounts of this type increase.
func (t AccountType) NormalBalance() NormalBalance {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return NormalBalanceDebit
	default:
		return NormalBalanceCredit
	}
}

// NormalBalance is the side on which an account naturally increases.
type NormalBalance string

const (
	NormalBalanceDebit  NormalBalance = "DEBIT"
	NormalBalanceCredit NormalBalance = "CREDIT"
)

// Valid reports whether n is DEBIT or CREDIT.
func (n NormalBalance) Valid() bool {
	return n == NormalBalanceDebit || n == NormalBalanceCredit
}

// Delta is the signed effect of a debit/credit pair on a balance kept in
// this normal-balance direction.
func (n NormalBalance) Delta(debit, credit shared.Amount) shared.Amount {
	if n == NormalBalanceDebit {
		return debit - credit
	}
	return credit - debit
}

// Apply returns balance moved by a debit/credit pair, rejecting overflow.
func (n NormalBalance) Apply(balance, debit, credit shared.Amount) (shared.Amount, error) {
	var (
		delta shared.Amount
		err   error
	)
	if n == NormalBalanceDebit {
		delta, err = debit.Sub(credit)
	} else {
		delta, err = credit.Sub(debit)
	}
	if err != nil {
		return 0, err
	}
	return balance.Add(delta)
}

// Account models a chart of accounts node.
type Account struct {
	ID            int64         `json:"id"`
	TenantID      uuid.UUID     `json:"tenant_id"`
	Code          string        `json:"code"`
	Name          string        `json:"name"`
	Type          AccountType   `json:"type"`
	Category      string        `json:"category,omitempty"`
	NormalBalance NormalBalance `json:"normal_balance"`
	ParentID      *int64        `json:"parent_id,omitempty"`
	IsActive      bool          `json:"is_active"`
	IsSystem      bool          `json:"is_system"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// CreateInput carries the fields accepted by Create.
type CreateInput struct {
	Code          string
	Name          string
	Type          AccountType
	Category      string
	NormalBalance NormalBalance
	ParentID      *int64
	IsSystem      bool
}

// UpdateInput carries optional changes. Nil fields are left untouched.
type UpdateInput struct {
	Code          *string
	Name          *string
	Category      *string
	ParentID      *int64
	ClearParent   bool
	IsActive      *bool
	Type          *AccountType
	NormalBalance *NormalBalance
}

// Usage counts references that block deletion.
type Usage struct {
	Children      int64
	JournalLines  int64
	LedgerEntries int64
}

// Node is an account placed in the hierarchy.
type Node struct {
	Account
	Children []*Node `json:"children"`
}

// LedgerTotals aggregates ledger rows for balance queries.
type LedgerTotals struct {
	BeforeDebit  shared.Amount
	BeforeCredit shared.Amount
	Debit        shared.Amount
	Credit       shared.Amount
	Current      shared.Amount
	Entries      int64
}

// Balance reports an account balance over a date range in normal-balance terms.
type Balance struct {
	AccountID     int64            `json:"account_id"`
	Code          string           `json:"code"`
	NormalBalance NormalBalance    `json:"normal_balance"`
	Range         shared.DateRange `json:"range"`
	Opening       shared.Amount    `json:"opening"`
	Debit         shared.Amount    `json:"debit"`
	Credit        shared.Amount    `json:"credit"`
	Closing       shared.Amount    `json:"closing"`
	Current       shared.Amount    `json:"current"`
	Entries       int64            `json:"entries"`
}

// SeedResult summarises a SeedDefaults run.
type SeedResult struct {
	Created []string `json:"created"`
	Skipped []string `json:"skipped"`
}
