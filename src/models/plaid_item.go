package models

import "time"

// PlaidItem is one linked institution connection. A nil Cursor means the
// next sync requests the full transaction history.
type PlaidItem struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"user_id"`
	ItemID          string     `json:"item_id"`
	AccessToken     string     `json:"-"`
	Cursor          *string    `json:"-"`
	InstitutionID   string     `json:"institution_id"`
	InstitutionName string     `json:"institution_name"`
	LastSyncedAt    *time.Time `json:"last_synced_at"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ItemCursorWrite persists sync progress for one item. Nil fields leave the
// stored value untouched.
type ItemCursorWrite struct {
	ItemID   int64
	Cursor   *string
	SyncedAt *time.Time
}
