package db

import (
	"context"

	"royal-server/src/db"
	"royal-server/src/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const plaidItemColumns = `id, user_id, item_id, access_token, institution_id, institution_name, sync_cursor, last_synced_at, created_at`

func scanPlaidItems(rows pgx.Rows) ([]models.PlaidItem, error) {
	defer rows.Close()

	items := []models.PlaidItem{}
	for rows.Next() {
		var item models.PlaidItem
		err := rows.Scan(&item.ID, &item.UserID, &item.ItemID, &item.AccessToken, &item.InstitutionID,
			&item.InstitutionName, &item.Cursor, &item.LastSyncedAt, &item.CreatedAt)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func GetPlaidItemsSQL(ctx context.Context, pool *pgxpool.Pool, userID int64) ([]models.PlaidItem, error) {
	query := `SELECT ` + plaidItemColumns + ` FROM plaid_items WHERE user_id = $1 ORDER BY id`

	rows, err := pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return scanPlaidItems(rows)
}

func GetAllPlaidItemsSQL(ctx context.Context, pool *pgxpool.Pool) ([]models.PlaidItem, error) {
	query := `SELECT ` + plaidItemColumns + ` FROM plaid_items ORDER BY user_id, id`

	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return scanPlaidItems(rows)
}

// GetPlaidItemByID reads one item by primary key. The syncer uses it to pick
// up the cursor another run may have saved while it waited.
func GetPlaidItemByID(ctx context.Context, pool *pgxpool.Pool, id int64) (*models.PlaidItem, error) {
	query := `SELECT ` + plaidItemColumns + ` FROM plaid_items WHERE id = $1`

	rows, err := pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	items, err := scanPlaidItems(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, db.ErrItemNotFound
	}
	return &items[0], nil
}

// GetPlaidItemByItemID looks an item up by Plaid's item_id, as carried by
// webhooks.
func GetPlaidItemByItemID(ctx context.Context, pool *pgxpool.Pool, itemID string) (*models.PlaidItem, error) {
	query := `SELECT ` + plaidItemColumns + ` FROM plaid_items WHERE item_id = $1 ORDER BY id LIMIT 1`

	rows, err := pool.Query(ctx, query, itemID)
	if err != nil {
		return nil, err
	}
	items, err := scanPlaidItems(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, db.ErrItemNotFound
	}
	return &items[0], nil
}

// SaveItemCursor writes the cursor and sync time; nil fields keep the stored
// values.
func SaveItemCursor(ctx context.Context, pool *pgxpool.Pool, w models.ItemCursorWrite) error {
	query := `
		UPDATE plaid_items
		SET sync_cursor = COALESCE($1, sync_cursor),
			last_synced_at = COALESCE($2, last_synced_at)
		WHERE id = $3
	`
	tag, err := pool.Exec(ctx, query, w.Cursor, w.SyncedAt, w.ItemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.ErrItemNotFound
	}
	return nil
}
