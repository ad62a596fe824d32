package syncer

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"royal-server/src/models"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type FleetLister interface {
	GetAllPlaidItems(ctx context.Context) ([]models.PlaidItem, error)
}

type ItemFailure struct {
	ItemID int64  `json:"item_id"`
	Error  string `json:"error"`
}

// FleetSummary aggregates a sweep over every linked item in the system.
type FleetSummary struct {
	RunID                string        `json:"run_id"`
	Success              bool          `json:"success"`
	Error                string        `json:"error,omitempty"`
	TotalItems           int           `json:"total_items"`
	Succeeded            int           `json:"succeeded"`
	Failed               int           `json:"failed"`
	TotalAdded           int           `json:"total_added"`
	TotalModified        int           `json:"total_modified"`
	TotalRemoved         int           `json:"total_removed"`
	TotalBalancesUpdated int           `json:"total_balances_updated"`
	Failures             []ItemFailure `json:"failures"`
	UserIDs              []int64       `json:"user_ids"`
	StartedAt            time.Time     `json:"started_at"`
	CompletedAt          time.Time     `json:"completed_at"`
}

func (s *FleetSummary) add(r ItemResult) {
	s.TotalAdded += r.Added
	s.TotalModified += r.Modified
	s.TotalRemoved += r.Removed
	s.TotalBalancesUpdated += r.BalancesUpdated
	if r.Success {
		s.Succeeded++
		return
	}
	s.Failed++
	s.Failures = append(s.Failures, ItemFailure{ItemID: r.ItemID, Error: r.Error})
}

// FleetOrchestrator sweeps every plaid item regardless of owner. Different
// users are synced in parallel up to the concurrency limit; a single user's
// items always run one after the other.
type FleetOrchestrator struct {
	items       FleetLister
	syncer      *ItemSyncer
	users       *UserOrchestrator
	concurrency int
}

type FleetOption func(*FleetOrchestrator)

func WithConcurrency(n int) FleetOption {
	return func(f *FleetOrchestrator) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// WithAudit routes each user's items through the user orchestrator so every
// user touched gets one automatic sync_history row.
func WithAudit(users *UserOrchestrator) FleetOption {
	return func(f *FleetOrchestrator) { f.users = users }
}

func NewFleetOrchestrator(items FleetLister, syncer *ItemSyncer, opts ...FleetOption) *FleetOrchestrator {
	f := &FleetOrchestrator{
		items:       items,
		syncer:      syncer,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FleetOrchestrator) SyncFleet(ctx context.Context) *FleetSummary {
	summary := &FleetSummary{
		RunID:     uuid.NewString(),
		Failures:  []ItemFailure{},
		UserIDs:   []int64{},
		StartedAt: f.syncer.now(),
	}

	items, err := f.items.GetAllPlaidItems(ctx)
	if err != nil {
		summary.Error = fmt.Sprintf("loading linked items: %v", err)
		summary.CompletedAt = f.syncer.now()
		log.Printf("ERROR: Fleet sync %s could not list items: %v", summary.RunID, err)
		return summary
	}

	groups := groupByUser(items)
	summary.TotalItems = len(items)
	log.Printf("INFO: Fleet sync %s started: %d items across %d users", summary.RunID, len(items), len(groups))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(f.concurrency)

	for _, grp := range groups {
		g.Go(func() error {
			results := f.syncGroup(ctx, grp)

			mu.Lock()
			defer mu.Unlock()
			summary.UserIDs = append(summary.UserIDs, grp.userID)
			for _, r := range results {
				summary.add(r)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(summary.Failures, func(i, j int) bool { return summary.Failures[i].ItemID < summary.Failures[j].ItemID })
	sort.Slice(summary.UserIDs, func(i, j int) bool { return summary.UserIDs[i] < summary.UserIDs[j] })

	summary.Success = summary.Failed == 0
	summary.CompletedAt = f.syncer.now()
	log.Printf("INFO: Fleet sync %s finished: total=%d succeeded=%d failed=%d added=%d modified=%d removed=%d balances=%d",
		summary.RunID, summary.TotalItems, summary.Succeeded, summary.Failed,
		summary.TotalAdded, summary.TotalModified, summary.TotalRemoved, summary.TotalBalancesUpdated)
	return summary
}

func (f *FleetOrchestrator) syncGroup(ctx context.Context, grp userItems) []ItemResult {
	if f.users != nil {
		return f.users.syncItems(ctx, grp.userID, models.TriggerAutomatic, grp.items, f.syncer.now()).Items
	}

	results := make([]ItemResult, 0, len(grp.items))
	for _, item := range grp.items {
		results = append(results, f.syncer.SyncItem(ctx, item))
	}
	return results
}

type userItems struct {
	userID int64
	items  []models.PlaidItem
}

// groupByUser keeps the order in which users first appear.
func groupByUser(items []models.PlaidItem) []userItems {
	var groups []userItems
	index := make(map[int64]int)
	for _, item := range items {
		i, ok := index[item.UserID]
		if !ok {
			i = len(groups)
			index[item.UserID] = i
			groups = append(groups, userItems{userID: item.UserID})
		}
		groups[i].items = append(groups[i].items, item)
	}
	return groups
}
