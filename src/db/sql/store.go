package db

import (
	"context"

	"royal-server/src/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store binds the query functions in this package to one pool so sync
// components can depend on small interfaces instead of the pool itself.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) GetPlaidItemsForUser(ctx context.Context, userID int64) ([]models.PlaidItem, error) {
	return GetPlaidItemsSQL(ctx, s.pool, userID)
}

func (s *Store) GetAllPlaidItems(ctx context.Context) ([]models.PlaidItem, error) {
	return GetAllPlaidItemsSQL(ctx, s.pool)
}

func (s *Store) GetPlaidItem(ctx context.Context, id int64) (*models.PlaidItem, error) {
	return GetPlaidItemByID(ctx, s.pool, id)
}

func (s *Store) GetPlaidItemByItemID(ctx context.Context, itemID string) (*models.PlaidItem, error) {
	return GetPlaidItemByItemID(ctx, s.pool, itemID)
}

func (s *Store) SaveItemCursor(ctx context.Context, w models.ItemCursorWrite) error {
	return SaveItemCursor(ctx, s.pool, w)
}

func (s *Store) GetAccountsForItem(ctx context.Context, itemID int64) ([]models.Account, error) {
	return GetAccountsForItem(ctx, s.pool, itemID)
}

func (s *Store) GetAccountsForUser(ctx context.Context, userID int64) ([]models.Account, error) {
	return GetAccountsForUser(ctx, s.pool, userID)
}

func (s *Store) UpdateAccountBalance(ctx context.Context, w models.AccountBalanceWrite) error {
	return UpdateAccountBalance(ctx, s.pool, w)
}

func (s *Store) UpsertTransaction(ctx context.Context, txn models.TransactionWrite) error {
	return UpsertTransaction(ctx, s.pool, txn)
}

func (s *Store) UpdateTransaction(ctx context.Context, txn models.TransactionWrite) (bool, error) {
	return UpdateTransaction(ctx, s.pool, txn)
}

func (s *Store) DeleteTransaction(ctx context.Context, transactionID string) error {
	return DeleteTransaction(ctx, s.pool, transactionID)
}

func (s *Store) InsertSyncHistory(ctx context.Context, w models.SyncHistoryWrite) error {
	return InsertSyncHistory(ctx, s.pool, w)
}

func (s *Store) GetSyncHistory(ctx context.Context, userID int64, limit int) ([]models.SyncHistory, error) {
	return GetSyncHistory(ctx, s.pool, userID, limit)
}

func (s *Store) UpsertNetWorth(ctx context.Context, w models.NetWorthWrite) error {
	return UpsertNetWorth(ctx, s.pool, w)
}

func (s *Store) GetNetWorthHistory(ctx context.Context, userID int64, limit int) ([]models.NetWorthSnapshot, error) {
	return GetNetWorthHistory(ctx, s.pool, userID, limit)
}
