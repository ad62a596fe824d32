package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"royal-server/src/models"
	"royal-server/src/networth"
	"royal-server/src/scheduler"
	"royal-server/src/syncer"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	runs int
}

func (c *countingSweeper) Run(ctx context.Context) *scheduler.SweepResult {
	c.runs++
	return &scheduler.SweepResult{Fleet: &syncer.FleetSummary{Success: true}}
}

type recordingUsers struct {
	calls []int64
}

func (u *recordingUsers) SyncUser(ctx context.Context, userID int64, trigger models.TriggerType) *syncer.UserSyncResult {
	u.calls = append(u.calls, userID)
	return &syncer.UserSyncResult{UserID: userID, Success: true}
}

type noopSnapshots struct{}

func (noopSnapshots) SnapshotUser(ctx context.Context, userID int64) networth.SnapshotResult {
	return networth.SnapshotResult{UserID: userID, Success: true}
}

func signedToken(t *testing.T, userID int64, superAdmin bool) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":     userID,
		"username":    "demo",
		"super_admin": superAdmin,
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func TestRouterHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(Deps{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRouterCronRequiresSecret(t *testing.T) {
	sweeper := &countingSweeper{}
	router := NewRouter(Deps{Sweep: sweeper, CronSecret: "s3cret"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cron/sync", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, sweeper.runs)

	req := httptest.NewRequest(http.MethodPost, "/api/cron/sync", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, sweeper.runs)
}

func TestRouterUserRoutesRequireToken(t *testing.T) {
	router := NewRouter(Deps{JWTSecret: "secret"})

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/sync"},
		{http.MethodGet, "/api/sync/history"},
		{http.MethodGet, "/api/net-worth/history"},
		{http.MethodGet, "/api/accounts"},
		{http.MethodGet, "/api/items"},
		{http.MethodPost, "/api/admin/sync/4"},
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
	}
}

func TestRouterDemoModeAllowsCron(t *testing.T) {
	sweeper := &countingSweeper{}
	router := NewRouter(Deps{Sweep: sweeper, CronSecret: "s3cret", JWTSecret: "secret", DemoMode: true})

	req := httptest.NewRequest(http.MethodPost, "/api/cron/sync", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sync", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterDemoModeBlocksWritesExceptSuperAdmin(t *testing.T) {
	users := &recordingUsers{}
	router := NewRouter(Deps{Users: users, Snapshots: noopSnapshots{}, JWTSecret: "secret", DemoMode: true})

	req := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, 4, false))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, users.calls)

	req = httptest.NewRequest(http.MethodPost, "/api/sync", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, 1, true))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{1}, users.calls)
}

func TestRouterServesMetricsWhenConfigured(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(Deps{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("syncer_item_total 1"))
	})
	rec = httptest.NewRecorder()
	NewRouter(Deps{Metrics: metrics}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "syncer_item_total 1", rec.Body.String())
}
