package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"royal-server/src/db"
	"royal-server/src/middleware"
	"royal-server/src/models"
	"royal-server/src/networth"
	"royal-server/src/scheduler"
	"royal-server/src/syncer"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockUserSyncer struct {
	calls    []int64
	triggers []models.TriggerType
	ctxErr   error
}

func (m *mockUserSyncer) SyncUser(ctx context.Context, userID int64, trigger models.TriggerType) *syncer.UserSyncResult {
	m.calls = append(m.calls, userID)
	m.triggers = append(m.triggers, trigger)
	m.ctxErr = ctx.Err()
	return &syncer.UserSyncResult{RunID: "run-1", UserID: userID, Success: true, ItemsSynced: 2, TotalAdded: 5}
}

type mockSnapshotter struct {
	calls []int64
}

func (m *mockSnapshotter) SnapshotUser(ctx context.Context, userID int64) networth.SnapshotResult {
	m.calls = append(m.calls, userID)
	return networth.SnapshotResult{UserID: userID, Success: true, NetWorth: decimal.NewFromInt(1000)}
}

type mockSweeper struct {
	result *scheduler.SweepResult
	runs   int
}

func (m *mockSweeper) Run(ctx context.Context) *scheduler.SweepResult {
	m.runs++
	return m.result
}

type mockStore struct {
	accounts     []models.Account
	history      []models.SyncHistory
	snapshots    []models.NetWorthSnapshot
	items        map[string]*models.PlaidItem
	err          error
	accountReads int
	onRead       func()
	limits       []int
}

func (m *mockStore) GetAccountsForUser(ctx context.Context, userID int64) ([]models.Account, error) {
	m.accountReads++
	if m.onRead != nil {
		m.onRead()
	}
	return m.accounts, m.err
}

func (m *mockStore) GetSyncHistory(ctx context.Context, userID int64, limit int) ([]models.SyncHistory, error) {
	m.limits = append(m.limits, limit)
	return m.history, m.err
}

func (m *mockStore) GetNetWorthHistory(ctx context.Context, userID int64, limit int) ([]models.NetWorthSnapshot, error) {
	m.limits = append(m.limits, limit)
	return m.snapshots, m.err
}

func (m *mockStore) GetPlaidItemsForUser(ctx context.Context, userID int64) ([]models.PlaidItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []models.PlaidItem
	for _, item := range m.items {
		if item.UserID == userID {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (m *mockStore) GetPlaidItemByItemID(ctx context.Context, itemID string) (*models.PlaidItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	item, ok := m.items[itemID]
	if !ok {
		return nil, db.ErrItemNotFound
	}
	return item, nil
}

type mockVerifier struct {
	err error
}

func (m *mockVerifier) Verify(ctx context.Context, body []byte, header http.Header) error {
	return m.err
}

func newCache(t *testing.T) *db.Cache {
	t.Helper()
	cache, err := db.NewCache(time.Minute)
	require.NoError(t, err)
	t.Cleanup(cache.Close)
	return cache
}

func authed(req *http.Request, userID int64) *http.Request {
	return req.WithContext(middleware.WithUser(req.Context(), userID, "sam", false))
}

func TestSyncUserHandler(t *testing.T) {
	users := &mockUserSyncer{}
	snaps := &mockSnapshotter{}
	cache := newCache(t)
	cache.Set(7, cache.Generation(), db.AccountsKey(7), "stale")

	req := authed(httptest.NewRequest(http.MethodPost, "/api/sync", nil), 7)
	rec := httptest.NewRecorder()
	SyncUser(users, snaps, cache).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{7}, users.calls)
	assert.Equal(t, []models.TriggerType{models.TriggerManual}, users.triggers)
	assert.Equal(t, []int64{7}, snaps.calls)

	var body SyncResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Sync.Success)
	assert.Equal(t, 5, body.Sync.TotalAdded)
	assert.True(t, body.NetWorth.Success)

	_, found := cache.Get(db.AccountsKey(7))
	assert.False(t, found)
}

func TestSyncUserHandlerSurvivesClientDisconnect(t *testing.T) {
	users := &mockUserSyncer{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := authed(httptest.NewRequest(http.MethodPost, "/api/sync", nil).WithContext(ctx), 7)
	SyncUser(users, &mockSnapshotter{}, nil).ServeHTTP(httptest.NewRecorder(), req)

	assert.NoError(t, users.ctxErr)
}

func TestSyncUserHandlerRequiresUser(t *testing.T) {
	users := &mockUserSyncer{}
	rec := httptest.NewRecorder()
	SyncUser(users, &mockSnapshotter{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sync", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, users.calls)
}

func TestAdminSyncUserHandler(t *testing.T) {
	users := &mockUserSyncer{}
	r := chi.NewRouter()
	r.Post("/api/admin/sync/{user_id}", AdminSyncUser(users, &mockSnapshotter{}, nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPost, "/api/admin/sync/12", nil), 1))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{12}, users.calls)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPost, "/api/admin/sync/abc", nil), 1))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCronSyncHandler(t *testing.T) {
	sweeper := &mockSweeper{result: &scheduler.SweepResult{
		Fleet:     &syncer.FleetSummary{RunID: "fleet-1", Success: true, TotalItems: 3, Succeeded: 3},
		Snapshots: []networth.SnapshotResult{{UserID: 1, Success: true}},
	}}

	rec := httptest.NewRecorder()
	CronSync(sweeper).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cron/sync", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, sweeper.runs)
	assert.Contains(t, rec.Body.String(), `"total_items":3`)

	sweeper.result = &scheduler.SweepResult{Fleet: &syncer.FleetSummary{Error: "loading linked items: boom"}}
	rec = httptest.NewRecorder()
	CronSync(sweeper).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cron/sync", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetAccountsIsCached(t *testing.T) {
	store := &mockStore{accounts: []models.Account{{ID: 1, Name: "Checking", Type: models.AccountTypeDepository}}}
	cache := newCache(t)
	handler := GetAccounts(store, cache)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/accounts", nil), 7))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Checking")
	}
	assert.Equal(t, 1, store.accountReads)
}

func TestGetAccountsDoesNotCacheRowsClearedMidRead(t *testing.T) {
	store := &mockStore{accounts: []models.Account{{ID: 1, Name: "Checking", Type: models.AccountTypeDepository}}}
	cache := newCache(t)
	// A sync for the same user finishes while the first read is in flight.
	store.onRead = func() {
		store.onRead = nil
		cache.ClearUser(7)
	}
	handler := GetAccounts(store, cache)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/accounts", nil), 7))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 2, store.accountReads)
}

func TestGetSyncHistoryLimits(t *testing.T) {
	store := &mockStore{history: []models.SyncHistory{{RunID: "run-1", Status: models.SyncStatusFailed}}}
	handler := GetSyncHistory(store, newCache(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/sync/history", nil), 7))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"failed"`)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/sync/history?limit=5", nil), 7))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{defaultSyncHistoryLimit, 5}, store.limits)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/sync/history?limit=0", nil), 7))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetNetWorthHistoryStoreFailure(t *testing.T) {
	store := &mockStore{err: errors.New("connection refused")}

	rec := httptest.NewRecorder()
	GetNetWorthHistory(store, newCache(t)).ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/net-worth/history", nil), 7))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetItemsHidesCredentials(t *testing.T) {
	cursor := "cursor-secret"
	store := &mockStore{items: map[string]*models.PlaidItem{
		"item-abc": {ID: 3, UserID: 7, ItemID: "item-abc", AccessToken: "access-secret", Cursor: &cursor, InstitutionName: "First Bank"},
		"item-xyz": {ID: 4, UserID: 8, ItemID: "item-xyz"},
	}}

	rec := httptest.NewRecorder()
	GetItems(store).ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/items", nil), 7))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "First Bank")
	assert.NotContains(t, body, "item-xyz")
	assert.NotContains(t, body, "access-secret")
	assert.NotContains(t, body, "cursor-secret")
}

func TestGetItemsEmptyList(t *testing.T) {
	rec := httptest.NewRecorder()
	GetItems(&mockStore{}).ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/items", nil), 7))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func webhookRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/api/plaid/webhook", strings.NewReader(body))
}

func TestPlaidWebhookSyncsItemOwner(t *testing.T) {
	store := &mockStore{items: map[string]*models.PlaidItem{"item-abc": {ID: 3, UserID: 44, ItemID: "item-abc"}}}
	users := &mockUserSyncer{}
	snaps := &mockSnapshotter{}
	handler := PlaidWebhook(&mockVerifier{}, store, users, snaps, newCache(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, webhookRequest(`{"webhook_type":"TRANSACTIONS","webhook_code":"SYNC_UPDATES_AVAILABLE","item_id":"item-abc"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{44}, users.calls)
	assert.Equal(t, []models.TriggerType{models.TriggerAutomatic}, users.triggers)
	assert.Equal(t, []int64{44}, snaps.calls)
}

func TestPlaidWebhookIgnoresOtherEvents(t *testing.T) {
	store := &mockStore{items: map[string]*models.PlaidItem{}}
	users := &mockUserSyncer{}
	handler := PlaidWebhook(&mockVerifier{}, store, users, &mockSnapshotter{}, newCache(t))

	for _, body := range []string{
		`{"webhook_type":"ITEM","webhook_code":"ERROR","item_id":"item-abc"}`,
		`{"webhook_type":"TRANSACTIONS","webhook_code":"SYNC_UPDATES_AVAILABLE","item_id":"unknown"}`,
	} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, webhookRequest(body))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "ignored")
	}
	assert.Empty(t, users.calls)
}

func TestPlaidWebhookRejectsBadSignature(t *testing.T) {
	users := &mockUserSyncer{}
	handler := PlaidWebhook(&mockVerifier{err: errors.New("body hash mismatch")}, &mockStore{}, users, &mockSnapshotter{}, newCache(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, webhookRequest(`{"webhook_type":"TRANSACTIONS","webhook_code":"SYNC_UPDATES_AVAILABLE","item_id":"item-abc"}`))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, users.calls)
}

func TestPlaidWebhookLookupFailure(t *testing.T) {
	handler := PlaidWebhook(&mockVerifier{}, &mockStore{err: errors.New("timeout")}, &mockUserSyncer{}, &mockSnapshotter{}, newCache(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, webhookRequest(`{"webhook_type":"TRANSACTIONS","webhook_code":"DEFAULT_UPDATE","item_id":"item-abc"}`))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
