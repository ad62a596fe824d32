package syncer

import (
	"context"
	"fmt"
	"log"
	"time"

	"royal-server/src/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "royal-server/syncer"

type instruments struct {
	tracer            trace.Tracer
	itemSyncDuration  metric.Float64Histogram
	itemSyncTotal     metric.Int64Counter
	transactionsTotal metric.Int64Counter
}

func newInstruments(tp trace.TracerProvider, mp metric.MeterProvider) instruments {
	meter := mp.Meter(instrumentationName)

	duration, err := meter.Float64Histogram("syncer.item.duration",
		metric.WithDescription("Item sync duration in seconds"), metric.WithUnit("s"))
	if err != nil {
		log.Printf("WARN: Failed to create syncer.item.duration histogram: %v", err)
	}
	total, err := meter.Int64Counter("syncer.item.total", metric.WithDescription("Item syncs by status"))
	if err != nil {
		log.Printf("WARN: Failed to create syncer.item.total counter: %v", err)
	}
	applied, err := meter.Int64Counter("syncer.transactions.applied",
		metric.WithDescription("Transactions applied by change kind"))
	if err != nil {
		log.Printf("WARN: Failed to create syncer.transactions.applied counter: %v", err)
	}

	return instruments{
		tracer:            tp.Tracer(instrumentationName),
		itemSyncDuration:  duration,
		itemSyncTotal:     total,
		transactionsTotal: applied,
	}
}

// Ledger is the aggregator's transaction change stream for one access token.
type Ledger interface {
	FetchDelta(ctx context.Context, accessToken string, cursor *string) (*models.DeltaPage, error)
	FetchBalances(ctx context.Context, accessToken string) ([]models.RemoteBalance, error)
}

// ItemStore is the persistence the item syncer writes through. Every call is
// atomic for a single row only.
type ItemStore interface {
	GetPlaidItem(ctx context.Context, id int64) (*models.PlaidItem, error)
	GetAccountsForItem(ctx context.Context, itemID int64) ([]models.Account, error)
	UpsertTransaction(ctx context.Context, txn models.TransactionWrite) error
	UpdateTransaction(ctx context.Context, txn models.TransactionWrite) (bool, error)
	DeleteTransaction(ctx context.Context, transactionID string) error
	SaveItemCursor(ctx context.Context, w models.ItemCursorWrite) error
	UpdateAccountBalance(ctx context.Context, w models.AccountBalanceWrite) error
}

// ItemResult reports one item sync. Changes applied before a failure stay
// applied.
type ItemResult struct {
	ItemID          int64  `json:"item_id"`
	UserID          int64  `json:"user_id"`
	Success         bool   `json:"success"`
	Added           int    `json:"added"`
	Modified        int    `json:"modified"`
	Removed         int    `json:"removed"`
	BalancesUpdated int    `json:"balances_updated"`
	Error           string `json:"error,omitempty"`
}

// ItemSyncer brings one plaid item's transactions and balances up to date.
type ItemSyncer struct {
	ledger        Ledger
	store         ItemStore
	locks         *itemLocks
	remoteTimeout time.Duration
	now           func() time.Time

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	inst           instruments
}

type Option func(*ItemSyncer)

// WithRemoteTimeout bounds every aggregator call. Zero disables the bound.
func WithRemoteTimeout(d time.Duration) Option {
	return func(s *ItemSyncer) { s.remoteTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *ItemSyncer) { s.now = now }
}

// WithTracerProvider and WithMeterProvider override the global otel
// providers, which are read once when the syncer is built.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *ItemSyncer) { s.tracerProvider = tp }
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *ItemSyncer) { s.meterProvider = mp }
}

func NewItemSyncer(ledger Ledger, store ItemStore, opts ...Option) *ItemSyncer {
	s := &ItemSyncer{
		ledger: ledger,
		store:  store,
		locks:  newItemLocks(),
		now:    time.Now,

		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.inst = newInstruments(s.tracerProvider, s.meterProvider)
	return s
}

// SyncItem pulls every pending delta page for the item, applies it, persists
// the cursor and refreshes account balances. It never returns an error; the
// outcome is carried in the result.
func (s *ItemSyncer) SyncItem(ctx context.Context, item models.PlaidItem) ItemResult {
	result := ItemResult{ItemID: item.ID, UserID: item.UserID}

	ctx, span := s.inst.tracer.Start(ctx, "syncer.sync_item",
		trace.WithAttributes(
			attribute.Int64("item.id", item.ID),
			attribute.Int64("item.user_id", item.UserID),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		s.inst.itemSyncDuration.Record(ctx, time.Since(start).Seconds())
	}()

	unlock, err := s.locks.lock(ctx, item.ID)
	if err != nil {
		return s.fail(ctx, span, result, fmt.Errorf("waiting for item lock: %w", err))
	}
	defer unlock()

	// The caller's copy may predate a run that held the lock before us.
	current, err := s.store.GetPlaidItem(ctx, item.ID)
	if err != nil {
		return s.fail(ctx, span, result, fmt.Errorf("loading item: %w", err))
	}
	item = *current

	accounts, err := s.store.GetAccountsForItem(ctx, item.ID)
	if err != nil {
		return s.fail(ctx, span, result, fmt.Errorf("loading accounts: %w", err))
	}
	byAccountID := indexLinkedAccounts(accounts)

	if err := s.syncTransactions(ctx, item, byAccountID, &result); err != nil {
		return s.fail(ctx, span, result, err)
	}

	if err := s.syncBalances(ctx, item, byAccountID, &result); err != nil {
		return s.fail(ctx, span, result, err)
	}

	result.Success = true
	s.inst.itemSyncTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "success")))
	log.Printf("INFO: Synced item %d for user %d: added=%d modified=%d removed=%d balances=%d",
		item.ID, item.UserID, result.Added, result.Modified, result.Removed, result.BalancesUpdated)
	return result
}

func (s *ItemSyncer) fail(ctx context.Context, span trace.Span, result ItemResult, err error) ItemResult {
	result.Success = false
	result.Error = err.Error()

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.inst.itemSyncTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "error")))
	log.Printf("ERROR: Sync failed for item %d, user %d: %v", result.ItemID, result.UserID, err)
	return result
}

func (s *ItemSyncer) syncTransactions(ctx context.Context, item models.PlaidItem, byAccountID map[string]models.Account, result *ItemResult) error {
	cursor := item.Cursor

	for {
		page, err := s.fetchDelta(ctx, item.AccessToken, cursor)
		if err != nil {
			return fmt.Errorf("fetching transactions: %w", err)
		}

		s.applyAdded(ctx, item, page.Added, byAccountID, result)
		s.applyModified(ctx, item, page.Modified, byAccountID, result)
		s.applyRemoved(ctx, item, page.Removed, result)

		// An empty next_cursor means the aggregator has nothing to resume
		// from yet; keep whatever is stored.
		if page.NextCursor != "" {
			next := page.NextCursor
			cursor = &next
			if err := s.store.SaveItemCursor(ctx, models.ItemCursorWrite{ItemID: item.ID, Cursor: cursor}); err != nil {
				log.Printf("WARN: Failed to checkpoint cursor for item %d: %v", item.ID, err)
			}
		}

		if !page.HasMore {
			break
		}
	}

	syncedAt := s.now()
	err := s.store.SaveItemCursor(ctx, models.ItemCursorWrite{
		ItemID:   item.ID,
		Cursor:   cursor,
		SyncedAt: &syncedAt,
	})
	if err != nil {
		return fmt.Errorf("saving sync cursor: %w", err)
	}
	return nil
}

func (s *ItemSyncer) applyAdded(ctx context.Context, item models.PlaidItem, txns []models.RemoteTransaction, byAccountID map[string]models.Account, result *ItemResult) {
	applied := 0
	defer func() { s.countApplied(ctx, "added", applied) }()

	for _, rt := range txns {
		w, ok := toTransactionWrite(item, rt, byAccountID)
		if !ok {
			continue
		}
		if err := s.store.UpsertTransaction(ctx, w); err != nil {
			log.Printf("ERROR: Failed to upsert transaction %s for item %d: %v", rt.TransactionID, item.ID, err)
			continue
		}
		result.Added++
		applied++
	}
}

func (s *ItemSyncer) applyModified(ctx context.Context, item models.PlaidItem, txns []models.RemoteTransaction, byAccountID map[string]models.Account, result *ItemResult) {
	applied := 0
	defer func() { s.countApplied(ctx, "modified", applied) }()

	for _, rt := range txns {
		w, ok := toTransactionWrite(item, rt, byAccountID)
		if !ok {
			continue
		}
		updated, err := s.store.UpdateTransaction(ctx, w)
		if err != nil {
			log.Printf("ERROR: Failed to update transaction %s for item %d: %v", rt.TransactionID, item.ID, err)
			continue
		}
		if !updated {
			log.Printf("WARN: Modified transaction %s for item %d not found locally", rt.TransactionID, item.ID)
			continue
		}
		result.Modified++
		applied++
	}
}

func (s *ItemSyncer) applyRemoved(ctx context.Context, item models.PlaidItem, ids []string, result *ItemResult) {
	applied := 0
	defer func() { s.countApplied(ctx, "removed", applied) }()

	for _, id := range ids {
		if err := s.store.DeleteTransaction(ctx, id); err != nil {
			log.Printf("ERROR: Failed to delete transaction %s for item %d: %v", id, item.ID, err)
			continue
		}
		result.Removed++
		applied++
	}
}

func (s *ItemSyncer) countApplied(ctx context.Context, kind string, n int) {
	if n > 0 {
		s.inst.transactionsTotal.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", kind)))
	}
}

func (s *ItemSyncer) syncBalances(ctx context.Context, item models.PlaidItem, byAccountID map[string]models.Account, result *ItemResult) error {
	balances, err := s.fetchBalances(ctx, item.AccessToken)
	if err != nil {
		return fmt.Errorf("fetching balances: %w", err)
	}

	updatedAt := s.now()
	for _, b := range balances {
		acct, ok := byAccountID[b.AccountID]
		if !ok {
			continue
		}

		current := acct.CurrentBalance
		if b.Current != nil {
			current = *b.Current
		}
		err := s.store.UpdateAccountBalance(ctx, models.AccountBalanceWrite{
			AccountID: acct.ID,
			Current:   current,
			Available: b.Available,
			UpdatedAt: updatedAt,
		})
		if err != nil {
			log.Printf("ERROR: Failed to update balance for account %d (item %d): %v", acct.ID, item.ID, err)
			continue
		}
		result.BalancesUpdated++
	}
	return nil
}

func (s *ItemSyncer) fetchDelta(ctx context.Context, accessToken string, cursor *string) (*models.DeltaPage, error) {
	ctx, cancel := s.remoteContext(ctx)
	defer cancel()
	return s.ledger.FetchDelta(ctx, accessToken, cursor)
}

func (s *ItemSyncer) fetchBalances(ctx context.Context, accessToken string) ([]models.RemoteBalance, error) {
	ctx, cancel := s.remoteContext(ctx)
	defer cancel()
	return s.ledger.FetchBalances(ctx, accessToken)
}

func (s *ItemSyncer) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.remoteTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.remoteTimeout)
}

// indexLinkedAccounts keys the item's linked accounts by aggregator account id.
// Manual accounts are never touched by a sync.
func indexLinkedAccounts(accounts []models.Account) map[string]models.Account {
	idx := make(map[string]models.Account, len(accounts))
	for _, a := range accounts {
		if a.IsManual || a.AccountID == nil {
			continue
		}
		idx[*a.AccountID] = a
	}
	return idx
}

// toTransactionWrite maps a remote transaction onto its local account. Records
// for untracked accounts or with an unreadable date are skipped.
func toTransactionWrite(item models.PlaidItem, rt models.RemoteTransaction, byAccountID map[string]models.Account) (models.TransactionWrite, bool) {
	acct, ok := byAccountID[rt.AccountID]
	if !ok {
		return models.TransactionWrite{}, false
	}

	date, err := time.Parse(time.DateOnly, rt.Date)
	if err != nil {
		log.Printf("ERROR: Skipping transaction %s for item %d: invalid date %q", rt.TransactionID, item.ID, rt.Date)
		return models.TransactionWrite{}, false
	}

	return models.TransactionWrite{
		TransactionID:    rt.TransactionID,
		AccountID:        acct.ID,
		Amount:           rt.Amount,
		Name:             rt.Name,
		MerchantName:     optional(rt.MerchantName),
		Date:             date,
		Pending:          rt.Pending,
		PrimaryCategory:  optional(rt.PrimaryCategory),
		DetailedCategory: optional(rt.DetailedCategory),
	}, true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
