package db

import (
	"context"

	"royal-server/src/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const accountColumns = `id, user_id, item_id, account_id, name, official_name, mask, type, subtype,
	current_balance, available_balance, is_manual, balance_updated_at, created_at`

func scanAccounts(rows pgx.Rows) ([]models.Account, error) {
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		var account models.Account
		var available decimal.NullDecimal
		err := rows.Scan(&account.ID, &account.UserID, &account.ItemID, &account.AccountID, &account.Name,
			&account.OfficialName, &account.Mask, &account.Type, &account.Subtype, &account.CurrentBalance,
			&available, &account.IsManual, &account.BalanceUpdatedAt, &account.CreatedAt)
		if err != nil {
			return nil, err
		}
		if available.Valid {
			account.AvailableBalance = &available.Decimal
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

func GetAccountsForItem(ctx context.Context, pool *pgxpool.Pool, itemID int64) ([]models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE item_id = $1 ORDER BY id`

	rows, err := pool.Query(ctx, query, itemID)
	if err != nil {
		return nil, err
	}
	return scanAccounts(rows)
}

// GetAccountsForUser returns linked and manual accounts alike.
func GetAccountsForUser(ctx context.Context, pool *pgxpool.Pool, userID int64) ([]models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 ORDER BY id`

	rows, err := pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return scanAccounts(rows)
}

// UpdateAccountBalance never writes to a manual account.
func UpdateAccountBalance(ctx context.Context, pool *pgxpool.Pool, w models.AccountBalanceWrite) error {
	query := `
		UPDATE accounts
		SET current_balance = $1,
			available_balance = $2,
			balance_updated_at = $3
		WHERE id = $4 AND is_manual = FALSE
	`
	_, err := pool.Exec(ctx, query, w.Current, w.Available, w.UpdatedAt, w.AccountID)
	return err
}
