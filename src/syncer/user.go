package syncer

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"royal-server/src/models"

	"github.com/google/uuid"
)

type ItemLister interface {
	GetPlaidItemsForUser(ctx context.Context, userID int64) ([]models.PlaidItem, error)
}

type HistoryStore interface {
	InsertSyncHistory(ctx context.Context, w models.SyncHistoryWrite) error
}

// UserSyncResult aggregates every item sync of one orchestrated user run.
type UserSyncResult struct {
	RunID                string       `json:"run_id"`
	UserID               int64        `json:"user_id"`
	Success              bool         `json:"success"`
	ItemsSynced          int          `json:"items_synced"`
	ItemsFailed          int          `json:"items_failed"`
	TotalAdded           int          `json:"total_added"`
	TotalModified        int          `json:"total_modified"`
	TotalRemoved         int          `json:"total_removed"`
	TotalBalancesUpdated int          `json:"total_balances_updated"`
	Errors               []string     `json:"errors"`
	Items                []ItemResult `json:"items"`
	StartedAt            time.Time    `json:"started_at"`
	CompletedAt          time.Time    `json:"completed_at"`
}

func (r *UserSyncResult) add(item models.PlaidItem, ir ItemResult) {
	r.Items = append(r.Items, ir)
	r.TotalAdded += ir.Added
	r.TotalModified += ir.Modified
	r.TotalRemoved += ir.Removed
	r.TotalBalancesUpdated += ir.BalancesUpdated
	if ir.Success {
		r.ItemsSynced++
		return
	}
	r.ItemsFailed++
	r.Errors = append(r.Errors, fmt.Sprintf("item %s: %s", item.ItemID, ir.Error))
}

// UserOrchestrator syncs every item a user owns, one after the other, and
// writes exactly one sync_history row per run.
type UserOrchestrator struct {
	items   ItemLister
	history HistoryStore
	syncer  *ItemSyncer
	now     func() time.Time
}

func NewUserOrchestrator(items ItemLister, history HistoryStore, syncer *ItemSyncer) *UserOrchestrator {
	return &UserOrchestrator{
		items:   items,
		history: history,
		syncer:  syncer,
		now:     syncer.now,
	}
}

func (o *UserOrchestrator) SyncUser(ctx context.Context, userID int64, trigger models.TriggerType) *UserSyncResult {
	startedAt := o.now()

	items, err := o.items.GetPlaidItemsForUser(ctx, userID)
	if err != nil {
		result := o.newResult(userID, startedAt)
		result.Errors = append(result.Errors, fmt.Sprintf("loading linked items: %v", err))
		o.finish(ctx, result, trigger, false)
		return result
	}

	return o.syncItems(ctx, userID, trigger, items, startedAt)
}

// syncItems runs the given items of one user sequentially and records the
// run. Sequential execution keeps the history counts deterministic and keeps
// one credential's calls from overlapping.
func (o *UserOrchestrator) syncItems(ctx context.Context, userID int64, trigger models.TriggerType, items []models.PlaidItem, startedAt time.Time) *UserSyncResult {
	result := o.newResult(userID, startedAt)
	log.Printf("INFO: Sync run %s started for user %d (%s, %d items)", result.RunID, userID, trigger, len(items))

	for _, item := range items {
		result.add(item, o.syncer.SyncItem(ctx, item))
	}

	o.finish(ctx, result, trigger, result.ItemsFailed == 0)
	return result
}

func (o *UserOrchestrator) newResult(userID int64, startedAt time.Time) *UserSyncResult {
	return &UserSyncResult{
		RunID:     uuid.NewString(),
		UserID:    userID,
		Errors:    []string{},
		Items:     []ItemResult{},
		StartedAt: startedAt,
	}
}

func (o *UserOrchestrator) finish(ctx context.Context, result *UserSyncResult, trigger models.TriggerType, success bool) {
	result.Success = success
	result.CompletedAt = o.now()

	status := models.SyncStatusSuccess
	var errMsg *string
	if !success {
		status = models.SyncStatusFailed
	}
	if len(result.Errors) > 0 {
		msg := strings.Join(result.Errors, "; ")
		errMsg = &msg
	}

	// The audit row is written even when the caller has gone away.
	err := o.history.InsertSyncHistory(context.WithoutCancel(ctx), models.SyncHistoryWrite{
		RunID:           result.RunID,
		UserID:          result.UserID,
		TriggerType:     trigger,
		Status:          status,
		Added:           result.TotalAdded,
		Modified:        result.TotalModified,
		Removed:         result.TotalRemoved,
		BalancesUpdated: result.TotalBalancesUpdated,
		ErrorMessage:    errMsg,
		StartedAt:       result.StartedAt,
		CompletedAt:     result.CompletedAt,
	})
	if err != nil {
		log.Printf("ERROR: Failed to record sync history for run %s, user %d: %v", result.RunID, result.UserID, err)
	}

	log.Printf("INFO: Sync run %s for user %d finished with status %s: synced=%d failed=%d added=%d modified=%d removed=%d balances=%d",
		result.RunID, result.UserID, status, result.ItemsSynced, result.ItemsFailed,
		result.TotalAdded, result.TotalModified, result.TotalRemoved, result.TotalBalancesUpdated)
}
