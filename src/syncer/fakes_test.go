package syncer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"royal-server/src/models"

	"github.com/shopspring/decimal"
)

type fakeStore struct {
	mu           sync.Mutex
	items        map[int64]*models.PlaidItem
	accounts     []models.Account
	transactions map[string]models.TransactionWrite
	history      []models.SyncHistoryWrite

	listErr       error
	upsertErrs    map[string]error
	balanceErrs   map[int64]error
	cursorErr     error
	getItemErr    error
	cursorHistory map[int64][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items:         make(map[int64]*models.PlaidItem),
		transactions:  make(map[string]models.TransactionWrite),
		upsertErrs:    make(map[string]error),
		balanceErrs:   make(map[int64]error),
		cursorHistory: make(map[int64][]string),
	}
}

func (s *fakeStore) addItem(id, userID int64, token string) models.PlaidItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := &models.PlaidItem{ID: id, UserID: userID, ItemID: token + "-item", AccessToken: token}
	s.items[id] = item
	return *item
}

func (s *fakeStore) addAccount(id, itemID int64, externalID string, typ models.AccountType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ext := externalID
	item := itemID
	s.accounts = append(s.accounts, models.Account{
		ID:        id,
		UserID:    s.items[itemID].UserID,
		ItemID:    &item,
		AccountID: &ext,
		Name:      externalID,
		Type:      typ,
	})
}

func (s *fakeStore) item(id int64) models.PlaidItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.items[id]
}

func (s *fakeStore) account(id int64) models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.ID == id {
			return a
		}
	}
	return models.Account{}
}

func (s *fakeStore) transaction(id string) (models.TransactionWrite, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	return t, ok
}

func (s *fakeStore) transactionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transactions)
}

func (s *fakeStore) historyRows() []models.SyncHistoryWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SyncHistoryWrite(nil), s.history...)
}

func (s *fakeStore) GetPlaidItemsForUser(ctx context.Context, userID int64) ([]models.PlaidItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var items []models.PlaidItem
	for _, item := range s.sortedItems() {
		if item.UserID == userID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (s *fakeStore) GetAllPlaidItems(ctx context.Context) ([]models.PlaidItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.sortedItems(), nil
}

func (s *fakeStore) sortedItems() []models.PlaidItem {
	items := make([]models.PlaidItem, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, *item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (s *fakeStore) GetPlaidItem(ctx context.Context, id int64) (*models.PlaidItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getItemErr != nil {
		return nil, s.getItemErr
	}
	item, ok := s.items[id]
	if !ok {
		return nil, errors.New("item not found")
	}
	cp := *item
	if item.Cursor != nil {
		c := *item.Cursor
		cp.Cursor = &c
	}
	return &cp, nil
}

func (s *fakeStore) GetAccountsForItem(ctx context.Context, itemID int64) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var accounts []models.Account
	for _, a := range s.accounts {
		if a.ItemID != nil && *a.ItemID == itemID {
			accounts = append(accounts, a)
		}
	}
	return accounts, nil
}

func (s *fakeStore) UpsertTransaction(ctx context.Context, txn models.TransactionWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.upsertErrs[txn.TransactionID]; err != nil {
		return err
	}
	s.transactions[txn.TransactionID] = txn
	return nil
}

func (s *fakeStore) UpdateTransaction(ctx context.Context, txn models.TransactionWrite) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[txn.TransactionID]; !ok {
		return false, nil
	}
	s.transactions[txn.TransactionID] = txn
	return true, nil
}

func (s *fakeStore) DeleteTransaction(ctx context.Context, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transactions, transactionID)
	return nil
}

func (s *fakeStore) SaveItemCursor(ctx context.Context, w models.ItemCursorWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursorErr != nil {
		return s.cursorErr
	}
	item := s.items[w.ItemID]
	if w.Cursor != nil {
		c := *w.Cursor
		item.Cursor = &c
		s.cursorHistory[w.ItemID] = append(s.cursorHistory[w.ItemID], c)
	}
	if w.SyncedAt != nil {
		t := *w.SyncedAt
		item.LastSyncedAt = &t
	}
	return nil
}

func (s *fakeStore) UpdateAccountBalance(ctx context.Context, w models.AccountBalanceWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.balanceErrs[w.AccountID]; err != nil {
		return err
	}
	for i := range s.accounts {
		if s.accounts[i].ID == w.AccountID {
			s.accounts[i].CurrentBalance = w.Current
			s.accounts[i].AvailableBalance = w.Available
			t := w.UpdatedAt
			s.accounts[i].BalanceUpdatedAt = &t
		}
	}
	return nil
}

func (s *fakeStore) InsertSyncHistory(ctx context.Context, w models.SyncHistoryWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, w)
	return nil
}

// fakeLedger serves delta pages keyed by access token and request cursor, so
// re-requesting a cursor replays the same page.
type fakeLedger struct {
	mu          sync.Mutex
	pages       map[string]map[string]*models.DeltaPage
	deltaErrs   map[string]map[string]error
	balances    map[string][]models.RemoteBalance
	balanceErrs map[string]error
	calls       []string

	// block, when set, is waited on inside every FetchDelta call.
	block     chan struct{}
	inFlight  int
	maxFlight int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		pages:       make(map[string]map[string]*models.DeltaPage),
		deltaErrs:   make(map[string]map[string]error),
		balances:    make(map[string][]models.RemoteBalance),
		balanceErrs: make(map[string]error),
	}
}

func (l *fakeLedger) addPage(token, cursor string, page models.DeltaPage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pages[token] == nil {
		l.pages[token] = make(map[string]*models.DeltaPage)
	}
	l.pages[token][cursor] = &page
}

func (l *fakeLedger) failAt(token, cursor string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.deltaErrs[token] == nil {
		l.deltaErrs[token] = make(map[string]error)
	}
	l.deltaErrs[token][cursor] = err
}

func (l *fakeLedger) clearFailure(token, cursor string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.deltaErrs[token], cursor)
}

func (l *fakeLedger) deltaCalls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *fakeLedger) FetchDelta(ctx context.Context, accessToken string, cursor *string) (*models.DeltaPage, error) {
	c := ""
	if cursor != nil {
		c = *cursor
	}

	l.mu.Lock()
	l.calls = append(l.calls, accessToken+"@"+c)
	l.inFlight++
	if l.inFlight > l.maxFlight {
		l.maxFlight = l.inFlight
	}
	block := l.block
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.inFlight--
		l.mu.Unlock()
	}()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.deltaErrs[accessToken][c]; err != nil {
		return nil, err
	}
	page, ok := l.pages[accessToken][c]
	if !ok {
		return &models.DeltaPage{NextCursor: c}, nil
	}
	return page, nil
}

func (l *fakeLedger) FetchBalances(ctx context.Context, accessToken string) ([]models.RemoteBalance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.balanceErrs[accessToken]; err != nil {
		return nil, err
	}
	return l.balances[accessToken], nil
}

var errRemote = errors.New("plaid ITEM_LOGIN_REQUIRED: the login details of this item have changed")

func remoteTxn(id, accountID string, amount float64) models.RemoteTransaction {
	return models.RemoteTransaction{
		TransactionID:    id,
		AccountID:        accountID,
		Amount:           decimal.NewFromFloat(amount),
		Date:             "2024-03-14",
		Name:             "Purchase " + id,
		PrimaryCategory:  "FOOD_AND_DRINK",
		DetailedCategory: "FOOD_AND_DRINK_GROCERIES",
	}
}

func fixedClock() func() time.Time {
	t := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func dec(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}
