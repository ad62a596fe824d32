package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"royal-server/src/db"
	"royal-server/src/middleware"
	"royal-server/src/models"
)

const (
	defaultSyncHistoryLimit = 50
	defaultNetWorthLimit    = 365
	maxHistoryLimit         = 1000
)

type SyncHistoryReader interface {
	GetSyncHistory(ctx context.Context, userID int64, limit int) ([]models.SyncHistory, error)
}

type NetWorthReader interface {
	GetNetWorthHistory(ctx context.Context, userID int64, limit int) ([]models.NetWorthSnapshot, error)
}

type AccountReader interface {
	GetAccountsForUser(ctx context.Context, userID int64) ([]models.Account, error)
}

type ItemReader interface {
	GetPlaidItemsForUser(ctx context.Context, userID int64) ([]models.PlaidItem, error)
}

func parseLimit(r *http.Request, fallback int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > maxHistoryLimit {
		return 0, fmt.Errorf("limit must be between 1 and %d", maxHistoryLimit)
	}
	return limit, nil
}

// cachedKey scopes a cache key to a non-default limit so pages of different
// sizes never collide.
func cachedKey(base string, limit, fallback int) string {
	if limit == fallback {
		return base
	}
	return fmt.Sprintf("%s:%d", base, limit)
}

func GetSyncHistory(store SyncHistoryReader, cache *db.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		limit, err := parseLimit(r, defaultSyncHistoryLimit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		key := cachedKey(db.SyncHistoryKey(userID), limit, defaultSyncHistoryLimit)
		if cached, found := cache.Get(key); found {
			writeJSON(w, http.StatusOK, cached)
			return
		}
		gen := cache.Generation()

		history, err := store.GetSyncHistory(r.Context(), userID, limit)
		if err != nil {
			http.Error(w, "Failed to retrieve sync history", http.StatusInternalServerError)
			log.Printf("ERROR: Failed to get sync history for user %d: %v", userID, err)
			return
		}

		cache.Set(userID, gen, key, history)
		writeJSON(w, http.StatusOK, history)
	}
}

func GetNetWorthHistory(store NetWorthReader, cache *db.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		limit, err := parseLimit(r, defaultNetWorthLimit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		key := cachedKey(db.NetWorthKey(userID), limit, defaultNetWorthLimit)
		if cached, found := cache.Get(key); found {
			writeJSON(w, http.StatusOK, cached)
			return
		}
		gen := cache.Generation()

		snapshots, err := store.GetNetWorthHistory(r.Context(), userID, limit)
		if err != nil {
			http.Error(w, "Failed to retrieve net worth history", http.StatusInternalServerError)
			log.Printf("ERROR: Failed to get net worth history for user %d: %v", userID, err)
			return
		}

		cache.Set(userID, gen, key, snapshots)
		writeJSON(w, http.StatusOK, snapshots)
	}
}

func GetAccounts(store AccountReader, cache *db.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		key := db.AccountsKey(userID)
		if cached, found := cache.Get(key); found {
			writeJSON(w, http.StatusOK, cached)
			return
		}
		gen := cache.Generation()

		accounts, err := store.GetAccountsForUser(r.Context(), userID)
		if err != nil {
			http.Error(w, "Failed to retrieve accounts", http.StatusInternalServerError)
			log.Printf("ERROR: Failed to get accounts for user %d: %v", userID, err)
			return
		}

		cache.Set(userID, gen, key, accounts)
		writeJSON(w, http.StatusOK, accounts)
	}
}

// GetItems lists the caller's linked items with their last successful sync
// time. Not cached since it reflects in-flight sync progress.
func GetItems(store ItemReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := store.GetPlaidItemsForUser(r.Context(), userID)
		if err != nil {
			http.Error(w, "Failed to retrieve plaid items", http.StatusInternalServerError)
			log.Printf("ERROR: Failed to get plaid items for user %d: %v", userID, err)
			return
		}
		if items == nil {
			items = []models.PlaidItem{}
		}

		writeJSON(w, http.StatusOK, items)
	}
}
