package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"royal-server/src/db"
	"royal-server/src/middleware"
	"royal-server/src/models"
	"royal-server/src/networth"
	"royal-server/src/scheduler"
	"royal-server/src/syncer"

	"github.com/go-chi/chi/v5"
)

type UserSyncer interface {
	SyncUser(ctx context.Context, userID int64, trigger models.TriggerType) *syncer.UserSyncResult
}

type Snapshotter interface {
	SnapshotUser(ctx context.Context, userID int64) networth.SnapshotResult
}

type Sweeper interface {
	Run(ctx context.Context) *scheduler.SweepResult
}

type SyncResponse struct {
	Sync     *syncer.UserSyncResult  `json:"sync"`
	NetWorth networth.SnapshotResult `json:"net_worth"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: Failed to encode response: %v", err)
	}
}

// syncAndSnapshot runs a user sync followed by a net worth snapshot. The run
// is detached from the request so a dropped connection cannot cut a sync
// short between pages.
func syncAndSnapshot(ctx context.Context, users UserSyncer, snapshots Snapshotter, cache *db.Cache, userID int64, trigger models.TriggerType) SyncResponse {
	ctx = context.WithoutCancel(ctx)

	result := users.SyncUser(ctx, userID, trigger)
	snapshot := snapshots.SnapshotUser(ctx, userID)
	if cache != nil {
		cache.ClearUser(userID)
	}
	return SyncResponse{Sync: result, NetWorth: snapshot}
}

// SyncUser syncs every linked item of the caller. Partial failures are
// reported in the body with a 200; the caller decides how to surface them.
func SyncUser(users UserSyncer, snapshots Snapshotter, cache *db.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		resp := syncAndSnapshot(r.Context(), users, snapshots, cache, userID, models.TriggerManual)
		writeJSON(w, http.StatusOK, resp)
	}
}

func AdminSyncUser(users UserSyncer, snapshots Snapshotter, cache *db.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
		if err != nil || userID <= 0 {
			http.Error(w, "Invalid user ID", http.StatusBadRequest)
			return
		}

		adminID, _ := middleware.UserIDFromContext(r.Context())
		log.Printf("INFO: Admin %d triggered sync for user %d", adminID, userID)

		resp := syncAndSnapshot(r.Context(), users, snapshots, cache, userID, models.TriggerManual)
		writeJSON(w, http.StatusOK, resp)
	}
}

// CronSync runs a full sweep for the external scheduler. Authentication is
// handled by the cron secret middleware before this handler runs.
func CronSync(sweep Sweeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Println("INFO: Cron sync triggered")
		result := sweep.Run(context.WithoutCancel(r.Context()))

		status := http.StatusOK
		if result.Fleet.Error != "" {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, result)
	}
}
