package db

import (
	"context"

	"royal-server/src/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UpsertNetWorth keeps a single row per user and day; a later snapshot on the
// same day replaces the earlier values.
func UpsertNetWorth(ctx context.Context, pool *pgxpool.Pool, w models.NetWorthWrite) error {
	query := `
		INSERT INTO net_worth_history (user_id, date, total_assets, total_liabilities, net_worth)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, date) DO UPDATE SET
			total_assets = EXCLUDED.total_assets,
			total_liabilities = EXCLUDED.total_liabilities,
			net_worth = EXCLUDED.net_worth,
			created_at = NOW()
	`
	_, err := pool.Exec(ctx, query, w.UserID, w.Date, w.TotalAssets, w.TotalLiabilities, w.NetWorth)
	return err
}

func GetNetWorthHistory(ctx context.Context, pool *pgxpool.Pool, userID int64, limit int) ([]models.NetWorthSnapshot, error) {
	query := `
		SELECT id, user_id, date, total_assets, total_liabilities, net_worth, created_at
		FROM net_worth_history
		WHERE user_id = $1
		ORDER BY date DESC
		LIMIT $2
	`
	rows, err := pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := []models.NetWorthSnapshot{}
	for rows.Next() {
		var s models.NetWorthSnapshot
		err := rows.Scan(&s.ID, &s.UserID, &s.Date, &s.TotalAssets, &s.TotalLiabilities, &s.NetWorth, &s.CreatedAt)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}

	return snapshots, rows.Err()
}
