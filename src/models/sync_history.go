package models

import "time"

type TriggerType string

const (
	TriggerManual    TriggerType = "manual"
	TriggerAutomatic TriggerType = "automatic"
)

type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusFailed  SyncStatus = "failed"
)

type SyncHistory struct {
	ID              int64       `json:"id"`
	RunID           string      `json:"run_id"`
	UserID          int64       `json:"user_id"`
	TriggerType     TriggerType `json:"trigger_type"`
	Status          SyncStatus  `json:"status"`
	Added           int         `json:"transactions_added"`
	Modified        int         `json:"transactions_modified"`
	Removed         int         `json:"transactions_removed"`
	BalancesUpdated int         `json:"balances_updated"`
	ErrorMessage    *string     `json:"error_message"`
	StartedAt       time.Time   `json:"started_at"`
	CompletedAt     time.Time   `json:"completed_at"`
}

type SyncHistoryWrite struct {
	RunID           string
	UserID          int64
	TriggerType     TriggerType
	Status          SyncStatus
	Added           int
	Modified        int
	Removed         int
	BalancesUpdated int
	ErrorMessage    *string
	StartedAt       time.Time
	CompletedAt     time.Time
}
