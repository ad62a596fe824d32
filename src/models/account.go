package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountTypeDepository AccountType = "depository"
	AccountTypeCredit     AccountType = "credit"
	AccountTypeInvestment AccountType = "investment"
	AccountTypeLoan       AccountType = "loan"
	AccountTypeOther      AccountType = "other"
)

// IsLiability reports whether balances of this type represent money owed.
func (t AccountType) IsLiability() bool {
	return t == AccountTypeCredit || t == AccountTypeLoan
}

type Account struct {
	ID               int64            `json:"id"`
	UserID           int64            `json:"user_id"`
	ItemID           *int64           `json:"item_id"`
	AccountID        *string          `json:"account_id"`
	Name             string           `json:"name"`
	OfficialName     *string          `json:"official_name"`
	Mask             *string          `json:"mask"`
	Type             AccountType      `json:"type"`
	Subtype          *string          `json:"subtype"`
	CurrentBalance   decimal.Decimal  `json:"current_balance"`
	AvailableBalance *decimal.Decimal `json:"available_balance"`
	IsManual         bool             `json:"is_manual"`
	BalanceUpdatedAt *time.Time       `json:"balance_updated_at"`
	CreatedAt        time.Time        `json:"created_at"`
}

// AccountBalanceWrite updates the balances of one linked account.
type AccountBalanceWrite struct {
	AccountID int64
	Current   decimal.Decimal
	Available *decimal.Decimal
	UpdatedAt time.Time
}
