package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction amounts follow the Plaid convention: positive is money out,
// negative is money in.
type Transaction struct {
	ID               int64           `json:"id"`
	AccountID        int64           `json:"account_id"`
	TransactionID    string          `json:"transaction_id"`
	Amount           decimal.Decimal `json:"amount"`
	Name             string          `json:"name"`
	MerchantName     *string         `json:"merchant_name"`
	Date             time.Time       `json:"date"`
	Pending          bool            `json:"pending"`
	PrimaryCategory  *string         `json:"primary_category"`
	DetailedCategory *string         `json:"detailed_category"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TransactionWrite is the full field set written for an added or modified
// transaction, keyed by TransactionID.
type TransactionWrite struct {
	TransactionID    string
	AccountID        int64
	Amount           decimal.Decimal
	Name             string
	MerchantName     *string
	Date             time.Time
	Pending          bool
	PrimaryCategory  *string
	DetailedCategory *string
}
