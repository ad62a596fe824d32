package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"royal-server/src/db"
	"royal-server/src/models"
)

const maxWebhookBody = 1 << 20

type WebhookVerifier interface {
	Verify(ctx context.Context, body []byte, header http.Header) error
}

type ItemFinder interface {
	GetPlaidItemByItemID(ctx context.Context, itemID string) (*models.PlaidItem, error)
}

type webhookPayload struct {
	WebhookType string `json:"webhook_type"`
	WebhookCode string `json:"webhook_code"`
	ItemID      string `json:"item_id"`
}

// Transaction webhook codes that mean new data is waiting behind the cursor.
var syncWebhookCodes = map[string]bool{
	"SYNC_UPDATES_AVAILABLE": true,
	"INITIAL_UPDATE":         true,
	"HISTORICAL_UPDATE":      true,
	"DEFAULT_UPDATE":         true,
}

// PlaidWebhook syncs the owner of an item when Plaid reports new transaction
// data. Anything it does not act on is still acknowledged with a 200 so Plaid
// does not retry it.
func PlaidWebhook(verifier WebhookVerifier, items ItemFinder, users UserSyncer, snapshots Snapshotter, cache *db.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			http.Error(w, "Failed to read body", http.StatusBadRequest)
			return
		}

		if err := verifier.Verify(r.Context(), body, r.Header); err != nil {
			log.Printf("ERROR: Rejected Plaid webhook: %v", err)
			http.Error(w, "invalid webhook signature", http.StatusUnauthorized)
			return
		}

		var payload webhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			http.Error(w, "Invalid webhook payload", http.StatusBadRequest)
			return
		}

		if payload.WebhookType != "TRANSACTIONS" || !syncWebhookCodes[payload.WebhookCode] {
			log.Printf("INFO: Ignoring Plaid webhook %s/%s for item %s", payload.WebhookType, payload.WebhookCode, payload.ItemID)
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}

		item, err := items.GetPlaidItemByItemID(r.Context(), payload.ItemID)
		if err != nil {
			if !errors.Is(err, db.ErrItemNotFound) {
				log.Printf("ERROR: Failed to look up item %s for webhook: %v", payload.ItemID, err)
				http.Error(w, "Failed to look up item", http.StatusInternalServerError)
				return
			}
			log.Printf("WARN: Plaid webhook for unknown item %s", payload.ItemID)
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}

		log.Printf("INFO: Plaid webhook %s for item %s, syncing user %d", payload.WebhookCode, payload.ItemID, item.UserID)
		resp := syncAndSnapshot(r.Context(), users, snapshots, cache, item.UserID, models.TriggerAutomatic)
		writeJSON(w, http.StatusOK, resp)
	}
}
