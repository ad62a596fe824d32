package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type NetWorthSnapshot struct {
	ID               int64           `json:"id"`
	UserID           int64           `json:"user_id"`
	Date             time.Time       `json:"date"`
	TotalAssets      decimal.Decimal `json:"total_assets"`
	TotalLiabilities decimal.Decimal `json:"total_liabilities"`
	NetWorth         decimal.Decimal `json:"net_worth"`
	CreatedAt        time.Time       `json:"created_at"`
}

// NetWorthWrite upserts the snapshot for (UserID, Date).
type NetWorthWrite struct {
	UserID           int64
	Date             time.Time
	TotalAssets      decimal.Decimal
	TotalLiabilities decimal.Decimal
	NetWorth         decimal.Decimal
}
