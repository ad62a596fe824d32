package scheduler

import (
	"context"
	"log"

	"royal-server/src/networth"
	"royal-server/src/syncer"
)

type FleetSyncer interface {
	SyncFleet(ctx context.Context) *syncer.FleetSummary
}

type Snapshotter interface {
	SnapshotUser(ctx context.Context, userID int64) networth.SnapshotResult
}

type SweepResult struct {
	Fleet     *syncer.FleetSummary      `json:"fleet"`
	Snapshots []networth.SnapshotResult `json:"snapshots"`
}

// Sweep is the periodic job shared by the timer and the cron endpoint: a
// fleet sync followed by a net worth snapshot for every user it touched.
type Sweep struct {
	fleet      FleetSyncer
	snapshots  Snapshotter
	invalidate func(userID int64)
}

// NewSweep builds a sweep. invalidate, if non-nil, is called for every user
// whose data the sweep rewrote.
func NewSweep(fleet FleetSyncer, snapshots Snapshotter, invalidate func(userID int64)) *Sweep {
	return &Sweep{fleet: fleet, snapshots: snapshots, invalidate: invalidate}
}

func (s *Sweep) Run(ctx context.Context) *SweepResult {
	summary := s.fleet.SyncFleet(ctx)
	result := &SweepResult{
		Fleet:     summary,
		Snapshots: make([]networth.SnapshotResult, 0, len(summary.UserIDs)),
	}

	failed := 0
	for _, userID := range summary.UserIDs {
		if ctx.Err() != nil {
			log.Printf("WARN: Sweep %s interrupted before snapshotting user %d: %v", summary.RunID, userID, ctx.Err())
			break
		}
		snap := s.snapshots.SnapshotUser(ctx, userID)
		if !snap.Success {
			failed++
		}
		result.Snapshots = append(result.Snapshots, snap)
		if s.invalidate != nil {
			s.invalidate(userID)
		}
	}

	log.Printf("INFO: Sweep %s complete: %d users snapshotted, %d snapshot failures", summary.RunID, len(result.Snapshots), failed)
	return result
}

// Job adapts the sweep to the scheduler.
func (s *Sweep) Job() Job {
	return func(ctx context.Context) { s.Run(ctx) }
}
