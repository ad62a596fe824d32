package app

import (
	"context"
	"fmt"
	"log"

	"royal-server/src/config"
	"royal-server/src/db"
	sqldb "royal-server/src/db/sql"
	"royal-server/src/networth"
	plaidclient "royal-server/src/plaid"
	"royal-server/src/scheduler"
	"royal-server/src/syncer"
	"royal-server/src/util"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Dependencies holds every component the server and the CLI share.
type Dependencies struct {
	Pool  *pgxpool.Pool
	Store *sqldb.Store
	Cache *db.Cache

	Ledger    *plaidclient.Ledger
	Webhooks  *util.WebhookVerifier
	Items     *syncer.ItemSyncer
	Users     *syncer.UserOrchestrator
	Fleet     *syncer.FleetOrchestrator
	Snapshots *networth.Snapshotter
	Sweep     *scheduler.Sweep
}

func NewDependencies(ctx context.Context, cfg config.Config) (*Dependencies, error) {
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("DB connection failed: %w", err)
	}
	log.Println("INFO: Connected to database")

	cache, err := db.NewCache(cfg.CacheTTL)
	if err != nil {
		pool.Close()
		return nil, err
	}

	client, err := plaidclient.NewPlaidClient(cfg.PlaidClientID, cfg.PlaidSecret, cfg.PlaidEnv)
	if err != nil {
		pool.Close()
		cache.Close()
		return nil, err
	}

	store := sqldb.NewStore(pool)
	ledger := plaidclient.NewLedger(client)

	items := syncer.NewItemSyncer(ledger, store, syncer.WithRemoteTimeout(cfg.RemoteTimeout))
	users := syncer.NewUserOrchestrator(store, store, items)

	fleetOpts := []syncer.FleetOption{syncer.WithConcurrency(cfg.FleetConcurrency)}
	if cfg.FleetAudit {
		fleetOpts = append(fleetOpts, syncer.WithAudit(users))
	}
	fleet := syncer.NewFleetOrchestrator(store, items, fleetOpts...)
	snapshots := networth.NewSnapshotter(store)

	return &Dependencies{
		Pool:      pool,
		Store:     store,
		Cache:     cache,
		Ledger:    ledger,
		Webhooks:  util.NewWebhookVerifier(ledger),
		Items:     items,
		Users:     users,
		Fleet:     fleet,
		Snapshots: snapshots,
		Sweep:     scheduler.NewSweep(fleet, snapshots, cache.ClearUser),
	}, nil
}

func (d *Dependencies) Close() {
	d.Cache.Close()
	d.Pool.Close()
}
