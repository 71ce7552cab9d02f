package app

import (
	"fmt"
	"log/slog"
	"time"

	"auction_go/internal/domain"
	"auction_go/internal/engine"
	"auction_go/internal/infra"
	"auction_go/internal/infra/storage"
	"auction_go/internal/ledger"
)

// Bootstrap orchestrates the daemon startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Storage *storage.Storage
	Ledger  *ledger.Ledger
	Clock   ledger.Clock
	Engine  *engine.Engine
	HouseID ledger.AccountID
	LastSeq uint64
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, DB, ledger)
func (b *Bootstrap) Initialize() error {
	// 1. Load Config
	cfg, err := infra.LoadConfig("configs/config.yaml")
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("database initialized")

	// 4. Restore the ledger from the last persisted snapshot
	b.Ledger = ledger.New()
	snap, err := store.LoadSnapshot()
	if err != nil {
		return fmt.Errorf("failed to load ledger snapshot: %w", err)
	}
	b.Ledger.Restore(snap)

	b.LastSeq, err = store.LastSeq()
	if err != nil {
		return err
	}
	slog.Info("ledger restored",
		slog.Int("tokens", len(snap.Tokens)),
		slog.Int("records", len(snap.Records)),
		slog.Uint64("last_seq", b.LastSeq))

	// 5. Build the engine on the wall clock
	b.Clock = ledger.NewWallClock(time.Duration(cfg.Engine.SlotMS) * time.Millisecond)
	b.Engine = engine.NewEngine(b.Ledger, b.Clock, cfg.Engine.BidCutoff)

	// 6. Make sure the configured house exists
	return b.ensureHouse()
}

// ensureHouse creates the configured auction house on first boot. The admin
// identity is derived from the house name so restarts agree on the fee
// destination.
func (b *Bootstrap) ensureHouse() error {
	houseID, _ := domain.HouseAddress(b.Config.House.Name)
	b.HouseID = houseID

	exists := false
	b.Ledger.View(func(tx *ledger.Txn) {
		exists = tx.HasRecord(houseID)
	})
	if exists {
		slog.Info("house loaded", slog.String("house", houseID.String()), slog.String("name", b.Config.House.Name))
		return nil
	}

	admin, _ := ledger.Derive([]byte("operator"), []byte(b.Config.House.Name))
	if err := b.Ledger.Execute(func(tx *ledger.Txn) error {
		tx.CreditNative(admin, ledger.AccountRent)
		return nil
	}); err != nil {
		return err
	}

	if _, err := b.Engine.InitHouse(admin, b.Config.House.FeeBps, b.Config.House.Name); err != nil {
		return fmt.Errorf("failed to create house %q: %w", b.Config.House.Name, err)
	}
	return nil
}

// Persist writes the current ledger state back to storage. Called on
// shutdown and periodically while running.
func (b *Bootstrap) Persist() error {
	return b.Storage.SaveSnapshot(b.Ledger.Snapshot())
}
