// Package engine implements the auction state machine: house registry,
// listing lifecycle, bid escrow, and terminal settlement. Every operation is
// a single all-or-nothing ledger transaction; the engine holds no state of
// its own beyond its clock and bid-cutoff policy.
package engine

import (
	"log/slog"

	"auction_go/internal/domain"
	"auction_go/internal/ledger"
)

// Record kinds stored on the ledger.
const (
	KindHouse    = "auction_house"
	KindAuction  = "auction"
	KindBidState = "bid_state"
)

// Bid cutoff policies. The original behavior accepted bids until settlement;
// the hard cutoff at the deadline is the stricter default.
const (
	CutoffAtEnd      = "end"
	CutoffAtFinalize = "grace"
)

// Engine applies auction operations to a ledger.
type Engine struct {
	ledger *ledger.Ledger
	clock  ledger.Clock
	cutoff string
}

// NewEngine creates an engine over the given ledger and clock. cutoff is one
// of CutoffAtEnd or CutoffAtFinalize; anything else falls back to CutoffAtEnd.
func NewEngine(l *ledger.Ledger, clock ledger.Clock, cutoff string) *Engine {
	if cutoff != CutoffAtFinalize {
		cutoff = CutoffAtEnd
	}
	return &Engine{ledger: l, clock: clock, cutoff: cutoff}
}

// Ledger exposes the underlying ledger for reads and test setup.
func (e *Engine) Ledger() *ledger.Ledger {
	return e.ledger
}

func loadHouse(tx *ledger.Txn, id ledger.AccountID) (domain.AuctionHouse, error) {
	var h domain.AuctionHouse
	err := tx.Record(id, KindHouse, &h)
	return h, err
}

func loadAuction(tx *ledger.Txn, id ledger.AccountID) (domain.Auction, error) {
	var a domain.Auction
	err := tx.Record(id, KindAuction, &a)
	return a, err
}

func loadBidState(tx *ledger.Txn, id ledger.AccountID) (domain.BidState, error) {
	var b domain.BidState
	err := tx.Record(id, KindBidState, &b)
	return b, err
}

// auctionAuthority reconstructs the derived signing identity of an auction.
func auctionAuthority(a *domain.Auction) ledger.Authority {
	seeds := domain.AuctionSeeds(a.House, a.Seller, a.MintA, a.MintB, a.End)
	return ledger.DerivedAuthority(a.Bump, seeds...)
}

// bidAuthority reconstructs the derived signing identity of a bid state.
func bidAuthority(bs *domain.BidState) ledger.Authority {
	return ledger.DerivedAuthority(bs.Bump, domain.BidSeeds(bs.Auction, bs.Bidder)...)
}

func opFailed(op string, err error) error {
	slog.Debug("operation rejected", slog.String("op", op), slog.Any("error", err))
	return domain.NewOpError(op, err)
}
