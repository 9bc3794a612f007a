package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"auction-coordinator/internal/broadcast"
	"auction-coordinator/internal/clock"
	"auction-coordinator/internal/config"
	"auction-coordinator/internal/ledger"
	model "auction-coordinator/internal/models"
	"auction-coordinator/internal/pipeline"
	"auction-coordinator/internal/scheduler"
	"auction-coordinator/internal/server"
	"auction-coordinator/internal/statestore"
	"auction-coordinator/utils"
)

func main() {
	cfg := config.Load()
	clk := clock.NewSystem()

	store, err := newStore(cfg)
	if err != nil {
		utils.Fatal("failed to initialize state store", map[string]any{"error": err.Error()})
	}
	gateway := ledger.NewMemoryLedger()
	broker := broadcast.NewBroker()

	bidding := pipeline.New(store, gateway, broker, clk, cfg)
	lifecycle := scheduler.New(store, gateway, broker, clk, cfg)
	bidding.SetCloser(lifecycle)
	lifecycle.SetGate(bidding)

	if cfg.DatabaseURL != "" {
		// Durable store: pick up timers for auctions that were open when the
		// previous process stopped.
		if err := lifecycle.Resume(context.Background()); err != nil {
			utils.Fatal("failed to resume open auctions", map[string]any{"error": err.Error()})
		}
	} else {
		prepopulate(gateway, lifecycle, clk)
	}

	router := server.SetupRouter(bidding, lifecycle, broker)

	fmt.Printf("Starting auction coordinator on %s...\n", cfg.Port)
	if err := router.Run(cfg.Port); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start server: %v\n", err)
		os.Exit(1)
	}
}

// newStore selects the state store backend: Postgres when DATABASE_URL is
// set, in-memory otherwise.
func newStore(cfg config.Config) (statestore.AuctionStateStore, error) {
	if cfg.DatabaseURL == "" {
		return statestore.NewMemoryStore(), nil
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	store := statestore.NewPostgresStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// prepopulate seeds demo balances and a pair of sample auctions
func prepopulate(gateway *ledger.MemoryLedger, lifecycle *scheduler.Scheduler, clk clock.Clock) {
	for _, userID := range []string{"user1", "user2", "user3"} {
		gateway.Deposit(userID, decimal.NewFromInt(10_000))
	}

	now := clk.Now()
	auctions := []model.Auction{
		{
			AuctionID:     "auction1",
			SellerID:      "seller1",
			Kind:          model.KindForward,
			StartingPrice: decimal.NewFromInt(100),
			StartTime:     now,
			EndTime:       now.Add(time.Hour),
		},
		{
			AuctionID:     "auction2",
			SellerID:      "seller2",
			Kind:          model.KindReverse,
			StartingPrice: decimal.NewFromInt(500),
			StartTime:     now,
			EndTime:       now.Add(2 * time.Hour),
		},
	}

	for _, a := range auctions {
		if err := lifecycle.Register(context.Background(), a); err != nil {
			utils.Fatal("failed to register sample auction", map[string]any{
				"auction_id": a.AuctionID,
				"error":      err.Error(),
			})
		}
	}
}
