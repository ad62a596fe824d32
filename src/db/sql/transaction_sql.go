package db

import (
	"context"

	"royal-server/src/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UpsertTransaction inserts the transaction or overwrites every synced field
// of the existing row with the same transaction_id.
func UpsertTransaction(ctx context.Context, pool *pgxpool.Pool, txn models.TransactionWrite) error {
	query := `
		INSERT INTO transactions (transaction_id, account_id, amount, name, merchant_name, date, pending,
			primary_category, detailed_category)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (transaction_id) DO UPDATE SET
			account_id = EXCLUDED.account_id,
			amount = EXCLUDED.amount,
			name = EXCLUDED.name,
			merchant_name = EXCLUDED.merchant_name,
			date = EXCLUDED.date,
			pending = EXCLUDED.pending,
			primary_category = EXCLUDED.primary_category,
			detailed_category = EXCLUDED.detailed_category,
			updated_at = NOW()
	`
	_, err := pool.Exec(ctx, query, txn.TransactionID, txn.AccountID, txn.Amount, txn.Name, txn.MerchantName,
		txn.Date, txn.Pending, txn.PrimaryCategory, txn.DetailedCategory)
	return err
}

// UpdateTransaction reports whether a row with the transaction_id existed.
func UpdateTransaction(ctx context.Context, pool *pgxpool.Pool, txn models.TransactionWrite) (bool, error) {
	query := `
		UPDATE transactions
		SET account_id = $2,
			amount = $3,
			name = $4,
			merchant_name = $5,
			date = $6,
			pending = $7,
			primary_category = $8,
			detailed_category = $9,
			updated_at = NOW()
		WHERE transaction_id = $1
	`
	tag, err := pool.Exec(ctx, query, txn.TransactionID, txn.AccountID, txn.Amount, txn.Name, txn.MerchantName,
		txn.Date, txn.Pending, txn.PrimaryCategory, txn.DetailedCategory)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func DeleteTransaction(ctx context.Context, pool *pgxpool.Pool, transactionID string) error {
	_, err := pool.Exec(ctx, `DELETE FROM transactions WHERE transaction_id = $1`, transactionID)
	return err
}
