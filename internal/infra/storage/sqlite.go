// Package storage persists the ledger and the applied-operation log in
// SQLite, so a restarted daemon resumes from the exact account state it
// left behind.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"auction_go/internal/event"
	"auction_go/internal/ledger"
)

// OpLogRow is one applied (or rejected) operation.
type OpLogRow struct {
	Seq     uint64 `gorm:"primaryKey"`
	Ts      int64
	Op      string `gorm:"index"`
	Status  string
	Account string
	Actor   string
	Amount  uint64
	Fee     uint64
	Error   string
}

// MintRow persists one asset type.
type MintRow struct {
	ID       string `gorm:"primaryKey"`
	Decimals uint8
}

// TokenRow persists one token account.
type TokenRow struct {
	ID        string `gorm:"primaryKey"`
	Mint      string
	Authority string
	Amount    uint64
}

// RecordRow persists one typed state record.
type RecordRow struct {
	ID   string `gorm:"primaryKey"`
	Kind string `gorm:"index"`
	Data []byte
}

// NativeRow persists one native (rent) balance.
type NativeRow struct {
	ID     string `gorm:"primaryKey"`
	Amount uint64
}

// Storage is the SQLite persistence layer.
type Storage struct {
	db *gorm.DB
}

// NewStorage creates a SQLite storage instance. An empty path uses the
// platform default location.
func NewStorage(path string) (*Storage, error) {
	if path == "" {
		var err error
		path, err = getDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve DB path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Pure Go SQLite
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&OpLogRow{}, &MintRow{}, &TokenRow{}, &RecordRow{}, &NativeRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "AuctionGo", "data", "auction.db"), nil
}

// ======================================================================================
// Operation log
// ======================================================================================

// SaveOp appends one operation to the log. Implements engine.Store.
func (s *Storage) SaveOp(ctx context.Context, ev *event.OperationEvent) error {
	row := OpLogRow{
		Seq:     ev.Seq,
		Ts:      ev.Ts,
		Op:      ev.Op,
		Status:  ev.Status,
		Account: ev.Account,
		Actor:   ev.Actor,
		Amount:  ev.Amount,
		Fee:     ev.Fee,
		Error:   ev.Error,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// RecentOps returns the latest limit operations, newest first.
func (s *Storage) RecentOps(limit int) ([]OpLogRow, error) {
	var rows []OpLogRow
	err := s.db.Order("seq desc").Limit(limit).Find(&rows).Error
	return rows, err
}

// LastSeq returns the highest logged sequence number, 0 when empty.
func (s *Storage) LastSeq() (uint64, error) {
	var row OpLogRow
	err := s.db.Order("seq desc").First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return 0, nil
	}
	return row.Seq, err
}

// ======================================================================================
// Ledger snapshot
// ======================================================================================

// SaveSnapshot replaces the persisted ledger state with snap.
func (s *Storage) SaveSnapshot(snap ledger.Snapshot) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&MintRow{}, &TokenRow{}, &RecordRow{}, &NativeRow{}} {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return err
			}
		}

		for _, m := range snap.Mints {
			if err := tx.Create(&MintRow{ID: m.ID.String(), Decimals: m.Decimals}).Error; err != nil {
				return err
			}
		}
		for _, t := range snap.Tokens {
			row := TokenRow{
				ID:        t.ID.String(),
				Mint:      t.Mint.String(),
				Authority: t.Authority.String(),
				Amount:    t.Amount,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		for _, r := range snap.Records {
			if err := tx.Create(&RecordRow{ID: r.ID.String(), Kind: r.Kind, Data: r.Data}).Error; err != nil {
				return err
			}
		}
		for _, n := range snap.Native {
			if err := tx.Create(&NativeRow{ID: n.ID.String(), Amount: n.Amount}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadSnapshot reads the persisted ledger state.
func (s *Storage) LoadSnapshot() (ledger.Snapshot, error) {
	var snap ledger.Snapshot

	var mints []MintRow
	if err := s.db.Find(&mints).Error; err != nil {
		return snap, err
	}
	for _, m := range mints {
		id, err := ledger.ParseAccountID(m.ID)
		if err != nil {
			return snap, fmt.Errorf("corrupt mint row %q: %w", m.ID, err)
		}
		snap.Mints = append(snap.Mints, ledger.Mint{ID: id, Decimals: m.Decimals})
	}

	var tokens []TokenRow
	if err := s.db.Find(&tokens).Error; err != nil {
		return snap, err
	}
	for _, t := range tokens {
		id, err := ledger.ParseAccountID(t.ID)
		if err != nil {
			return snap, fmt.Errorf("corrupt token row %q: %w", t.ID, err)
		}
		mint, err := ledger.ParseAccountID(t.Mint)
		if err != nil {
			return snap, fmt.Errorf("corrupt token row %q: %w", t.ID, err)
		}
		auth, err := ledger.ParseAccountID(t.Authority)
		if err != nil {
			return snap, fmt.Errorf("corrupt token row %q: %w", t.ID, err)
		}
		snap.Tokens = append(snap.Tokens, ledger.TokenAccount{
			ID: id, Mint: mint, Authority: auth, Amount: t.Amount,
		})
	}

	var records []RecordRow
	if err := s.db.Find(&records).Error; err != nil {
		return snap, err
	}
	for _, r := range records {
		id, err := ledger.ParseAccountID(r.ID)
		if err != nil {
			return snap, fmt.Errorf("corrupt record row %q: %w", r.ID, err)
		}
		snap.Records = append(snap.Records, ledger.RecordEntry{ID: id, Kind: r.Kind, Data: r.Data})
	}

	var natives []NativeRow
	if err := s.db.Find(&natives).Error; err != nil {
		return snap, err
	}
	for _, n := range natives {
		id, err := ledger.ParseAccountID(n.ID)
		if err != nil {
			return snap, fmt.Errorf("corrupt native row %q: %w", n.ID, err)
		}
		snap.Native = append(snap.Native, ledger.NativeEntry{ID: id, Amount: n.Amount})
	}

	return snap, nil
}
