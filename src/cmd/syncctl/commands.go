package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"royal-server/src/app"
	"royal-server/src/config"
	"royal-server/src/db"
	"royal-server/src/models"
	"royal-server/src/networth"
	"royal-server/src/syncer"

	"github.com/Rhymond/go-money"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

var commands = []subcommands.Command{
	&syncUserCmd{},
	&syncFleetCmd{},
	&snapshotCmd{},
	&migrateCmd{},
}

// withDeps loads configuration from the environment and builds the shared
// dependencies for one command.
func withDeps(ctx context.Context, fn func(*app.Dependencies) subcommands.ExitStatus) subcommands.ExitStatus {
	deps, err := app.NewDependencies(ctx, config.Load())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer deps.Close()
	return fn(deps)
}

type syncUserCmd struct {
	userID   int64
	snapshot bool
}

func (*syncUserCmd) Name() string     { return "sync-user" }
func (*syncUserCmd) Synopsis() string { return "sync every plaid item owned by one user" }
func (*syncUserCmd) Usage() string {
	return `syncctl sync-user -user-id <id> [-snapshot=false]

  Runs a manual sync for the user, records one sync_history row and, unless
  disabled, takes today's net worth snapshot afterwards.
`
}

func (c *syncUserCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.userID, "user-id", 0, "The user to sync.")
	f.BoolVar(&c.snapshot, "snapshot", true, "Take a net worth snapshot after the sync.")
}

func (c *syncUserCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.userID <= 0 {
		fmt.Fprintln(os.Stderr, "-user-id is required")
		return subcommands.ExitUsageError
	}
	return withDeps(ctx, func(deps *app.Dependencies) subcommands.ExitStatus {
		result := deps.Users.SyncUser(ctx, c.userID, models.TriggerManual)
		printUserResult(os.Stdout, result)

		status := subcommands.ExitSuccess
		if !result.Success {
			status = subcommands.ExitFailure
		}
		if c.snapshot {
			snap := deps.Snapshots.SnapshotUser(ctx, c.userID)
			printSnapshot(os.Stdout, snap)
			if !snap.Success {
				status = subcommands.ExitFailure
			}
		}
		deps.Cache.ClearUser(c.userID)
		return status
	})
}

type syncFleetCmd struct{}

func (*syncFleetCmd) Name() string     { return "sync-fleet" }
func (*syncFleetCmd) Synopsis() string { return "run the full scheduled sweep once" }
func (*syncFleetCmd) Usage() string {
	return `syncctl sync-fleet

  Syncs every plaid item in the system and snapshots net worth for every
  user that owns one, exactly like a scheduler tick.
`
}

func (*syncFleetCmd) SetFlags(*flag.FlagSet) {}

func (*syncFleetCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withDeps(ctx, func(deps *app.Dependencies) subcommands.ExitStatus {
		result := deps.Sweep.Run(ctx)
		printFleetSummary(os.Stdout, result.Fleet)
		for _, snap := range result.Snapshots {
			printSnapshot(os.Stdout, snap)
		}
		if result.Fleet.Error != "" {
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	})
}

type snapshotCmd struct {
	userID int64
}

func (*snapshotCmd) Name() string     { return "snapshot" }
func (*snapshotCmd) Synopsis() string { return "record today's net worth for one user" }
func (*snapshotCmd) Usage() string {
	return `syncctl snapshot -user-id <id>
`
}

func (c *snapshotCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.userID, "user-id", 0, "The user to snapshot.")
}

func (c *snapshotCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.userID <= 0 {
		fmt.Fprintln(os.Stderr, "-user-id is required")
		return subcommands.ExitUsageError
	}
	return withDeps(ctx, func(deps *app.Dependencies) subcommands.ExitStatus {
		snap := deps.Snapshots.SnapshotUser(ctx, c.userID)
		printSnapshot(os.Stdout, snap)
		deps.Cache.ClearUser(c.userID)
		if !snap.Success {
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	})
}

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "create any missing tables" }
func (*migrateCmd) Usage() string {
	return `syncctl migrate
`
}

func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withDeps(ctx, func(deps *app.Dependencies) subcommands.ExitStatus {
		if err := db.Migrate(ctx, deps.Pool); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		fmt.Println("schema up to date")
		return subcommands.ExitSuccess
	})
}

// usd renders a decimal amount as US dollars, rounding to the cent.
func usd(d decimal.Decimal) string {
	cents := d.Round(2).Shift(2).IntPart()
	return money.New(cents, "USD").Display()
}

func printUserResult(w io.Writer, r *syncer.UserSyncResult) {
	status := "ok"
	if !r.Success {
		status = "FAILED"
	}
	fmt.Fprintf(w, "user %d sync %s (run %s)\n", r.UserID, status, r.RunID)
	fmt.Fprintf(w, "  items: %d synced, %d failed\n", r.ItemsSynced, r.ItemsFailed)
	fmt.Fprintf(w, "  transactions: +%d ~%d -%d, balances updated: %d\n",
		r.TotalAdded, r.TotalModified, r.TotalRemoved, r.TotalBalancesUpdated)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  error: %s\n", e)
	}
}

func printFleetSummary(w io.Writer, s *syncer.FleetSummary) {
	if s.Error != "" {
		fmt.Fprintf(w, "fleet sync FAILED (run %s): %s\n", s.RunID, s.Error)
		return
	}
	fmt.Fprintf(w, "fleet sync (run %s): %d items, %d succeeded, %d failed\n",
		s.RunID, s.TotalItems, s.Succeeded, s.Failed)
	fmt.Fprintf(w, "  transactions: +%d ~%d -%d, balances updated: %d\n",
		s.TotalAdded, s.TotalModified, s.TotalRemoved, s.TotalBalancesUpdated)
	for _, f := range s.Failures {
		fmt.Fprintf(w, "  item %d: %s\n", f.ItemID, f.Error)
	}
}

func printSnapshot(w io.Writer, s networth.SnapshotResult) {
	if !s.Success {
		fmt.Fprintf(w, "user %d net worth FAILED: %s\n", s.UserID, s.Error)
		return
	}
	fmt.Fprintf(w, "user %d net worth on %s: %s\n", s.UserID, s.Date.Format("2006-01-02"), usd(s.NetWorth))
	fmt.Fprintf(w, "  %s\n", strings.Join([]string{
		"assets " + usd(s.TotalAssets),
		"liabilities " + usd(s.TotalLiabilities),
	}, ", "))
}
