package networth

import (
	"context"
	"fmt"
	"log"
	"time"

	"royal-server/src/models"

	"github.com/shopspring/decimal"
)

type Store interface {
	GetAccountsForUser(ctx context.Context, userID int64) ([]models.Account, error)
	UpsertNetWorth(ctx context.Context, w models.NetWorthWrite) error
}

type SnapshotResult struct {
	UserID           int64           `json:"user_id"`
	Success          bool            `json:"success"`
	Error            string          `json:"error,omitempty"`
	Date             time.Time       `json:"date"`
	TotalAssets      decimal.Decimal `json:"total_assets"`
	TotalLiabilities decimal.Decimal `json:"total_liabilities"`
	NetWorth         decimal.Decimal `json:"net_worth"`
}

// Totals is a net worth computation over a set of accounts.
type Totals struct {
	Assets      decimal.Decimal
	Liabilities decimal.Decimal
	NetWorth    decimal.Decimal
}

// Compute classifies credit and loan balances as liabilities by magnitude and
// every other balance, signed, as an asset.
func Compute(accounts []models.Account) Totals {
	assets := decimal.Zero
	liabilities := decimal.Zero
	for _, a := range accounts {
		if a.Type.IsLiability() {
			liabilities = liabilities.Add(a.CurrentBalance.Abs())
			continue
		}
		assets = assets.Add(a.CurrentBalance)
	}
	return Totals{
		Assets:      assets,
		Liabilities: liabilities,
		NetWorth:    assets.Sub(liabilities),
	}
}

type Snapshotter struct {
	store Store
	now   func() time.Time
}

func NewSnapshotter(store Store) *Snapshotter {
	return &Snapshotter{store: store, now: time.Now}
}

// WithClock replaces the clock used to pick the snapshot day.
func (s *Snapshotter) WithClock(now func() time.Time) *Snapshotter {
	s.now = now
	return s
}

// SnapshotUser writes today's snapshot for the user, replacing any snapshot
// already taken today.
func (s *Snapshotter) SnapshotUser(ctx context.Context, userID int64) SnapshotResult {
	result := SnapshotResult{UserID: userID, Date: Day(s.now())}

	accounts, err := s.store.GetAccountsForUser(ctx, userID)
	if err != nil {
		result.Error = fmt.Sprintf("loading accounts: %v", err)
		log.Printf("ERROR: Net worth snapshot failed for user %d: %v", userID, err)
		return result
	}

	totals := Compute(accounts)
	result.TotalAssets = totals.Assets
	result.TotalLiabilities = totals.Liabilities
	result.NetWorth = totals.NetWorth

	err = s.store.UpsertNetWorth(ctx, models.NetWorthWrite{
		UserID:           userID,
		Date:             result.Date,
		TotalAssets:      totals.Assets,
		TotalLiabilities: totals.Liabilities,
		NetWorth:         totals.NetWorth,
	})
	if err != nil {
		result.Error = fmt.Sprintf("saving snapshot: %v", err)
		log.Printf("ERROR: Failed to save net worth snapshot for user %d: %v", userID, err)
		return result
	}

	result.Success = true
	log.Printf("INFO: Net worth snapshot for user %d on %s: assets=%s liabilities=%s net=%s",
		userID, result.Date.Format(time.DateOnly), totals.Assets.StringFixed(2), totals.Liabilities.StringFixed(2), totals.NetWorth.StringFixed(2))
	return result
}

// Day truncates t to its calendar day in t's own location and returns it as a
// UTC midnight, the form stored in a DATE column.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
