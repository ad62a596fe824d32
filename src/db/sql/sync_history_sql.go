package db

import (
	"context"

	"royal-server/src/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

func InsertSyncHistory(ctx context.Context, pool *pgxpool.Pool, w models.SyncHistoryWrite) error {
	query := `
		INSERT INTO sync_history (run_id, user_id, trigger_type, status, transactions_added, transactions_modified,
			transactions_removed, balances_updated, error_message, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := pool.Exec(ctx, query, w.RunID, w.UserID, w.TriggerType, w.Status, w.Added, w.Modified,
		w.Removed, w.BalancesUpdated, w.ErrorMessage, w.StartedAt, w.CompletedAt)
	return err
}

// GetSyncHistory returns the user's most recent runs, newest first.
func GetSyncHistory(ctx context.Context, pool *pgxpool.Pool, userID int64, limit int) ([]models.SyncHistory, error) {
	query := `
		SELECT id, run_id, user_id, trigger_type, status, transactions_added, transactions_modified,
			transactions_removed, balances_updated, error_message, started_at, completed_at
		FROM sync_history
		WHERE user_id = $1
		ORDER BY started_at DESC, id DESC
		LIMIT $2
	`
	rows, err := pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []models.SyncHistory{}
	for rows.Next() {
		var h models.SyncHistory
		err := rows.Scan(&h.ID, &h.RunID, &h.UserID, &h.TriggerType, &h.Status, &h.Added, &h.Modified,
			&h.Removed, &h.BalancesUpdated, &h.ErrorMessage, &h.StartedAt, &h.CompletedAt)
		if err != nil {
			return nil, err
		}
		history = append(history, h)
	}

	return history, rows.Err()
}
