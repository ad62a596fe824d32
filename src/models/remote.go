package models

import "github.com/shopspring/decimal"

// RemoteTransaction is a transaction as reported by the aggregator.
// Date is the aggregator's YYYY-MM-DD string.
type RemoteTransaction struct {
	TransactionID    string
	AccountID        string
	Amount           decimal.Decimal
	Date             string
	Name             string
	MerchantName     string
	Pending          bool
	PrimaryCategory  string
	DetailedCategory string
}

// DeltaPage is one page of the aggregator's cursor-based change stream.
type DeltaPage struct {
	Added      []RemoteTransaction
	Modified   []RemoteTransaction
	Removed    []string
	NextCursor string
	HasMore    bool
}

type RemoteBalance struct {
	AccountID string
	Current   *decimal.Decimal
	Available *decimal.Decimal
}
