// Package service provides the read side of the daemon: point lookups and
// listings over the live ledger, shaped for the HTTP API.
package service

import (
	"encoding/json"
	"sort"

	"auction_go/internal/domain"
	"auction_go/internal/engine"
	"auction_go/internal/ledger"
)

// AuctionView is one listing plus the live balance of its vault.
type AuctionView struct {
	ID ledger.AccountID `json:"id"`
	domain.Auction
	VaultAmount uint64 `json:"vault_amount"`
	Ended       bool   `json:"ended"`
}

// BidView is one bid state plus the live balance of its escrow.
type BidView struct {
	ID ledger.AccountID `json:"id"`
	domain.BidState
	EscrowAmount uint64 `json:"escrow_amount"`
	Winning      bool   `json:"winning"`
}

// AuctionService answers queries against the ledger.
type AuctionService struct {
	ledger *ledger.Ledger
	clock  ledger.Clock
}

// NewAuctionService creates a query service over the ledger.
func NewAuctionService(l *ledger.Ledger, clock ledger.Clock) *AuctionService {
	return &AuctionService{ledger: l, clock: clock}
}

// GetMint returns the mint stored at id.
func (s *AuctionService) GetMint(id ledger.AccountID) (ledger.Mint, error) {
	var m ledger.Mint
	var err error
	s.ledger.View(func(tx *ledger.Txn) {
		m, err = tx.Mint(id)
	})
	return m, err
}

// GetHouse returns the house record stored at id.
func (s *AuctionService) GetHouse(id ledger.AccountID) (domain.AuctionHouse, error) {
	var h domain.AuctionHouse
	var err error
	s.ledger.View(func(tx *ledger.Txn) {
		err = tx.Record(id, engine.KindHouse, &h)
	})
	return h, err
}

// GetAuction returns the listing at id with its vault balance.
func (s *AuctionService) GetAuction(id ledger.AccountID) (AuctionView, error) {
	var v AuctionView
	var err error
	s.ledger.View(func(tx *ledger.Txn) {
		v, err = s.auctionView(tx, id)
	})
	return v, err
}

func (s *AuctionService) auctionView(tx *ledger.Txn, id ledger.AccountID) (AuctionView, error) {
	var a domain.Auction
	if err := tx.Record(id, engine.KindAuction, &a); err != nil {
		return AuctionView{}, err
	}
	v := AuctionView{
		ID:      id,
		Auction: a,
		Ended:   s.clock.Slot() >= a.End,
	}
	vaultID, _ := domain.AuctionVaultAddress(id)
	if vault, err := tx.Token(vaultID); err == nil {
		v.VaultAmount = vault.Amount
	}
	return v, nil
}

// GetBid returns the bid state for (auction, bidder) with its escrow balance.
func (s *AuctionService) GetBid(auctionID, bidder ledger.AccountID) (BidView, error) {
	bidID, _ := domain.BidAddress(auctionID, bidder)

	var v BidView
	var err error
	s.ledger.View(func(tx *ledger.Txn) {
		var bs domain.BidState
		if err = tx.Record(bidID, engine.KindBidState, &bs); err != nil {
			return
		}
		v = BidView{ID: bidID, BidState: bs}

		escrowID, _ := domain.BidEscrowAddress(bidID)
		if escrow, tokenErr := tx.Token(escrowID); tokenErr == nil {
			v.EscrowAmount = escrow.Amount
		}

		var a domain.Auction
		if tx.Record(auctionID, engine.KindAuction, &a) == nil {
			v.Winning = a.IsWinner(bidder)
		}
	})
	return v, err
}

// ListAuctions returns every open listing, ordered by deadline then ID.
func (s *AuctionService) ListAuctions() ([]AuctionView, error) {
	snap := s.ledger.Snapshot()

	views := make([]AuctionView, 0)
	var firstErr error
	s.ledger.View(func(tx *ledger.Txn) {
		for _, r := range snap.Records {
			if r.Kind != engine.KindAuction {
				continue
			}
			v, err := s.auctionView(tx, r.ID)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			views = append(views, v)
		}
	})
	if firstErr != nil {
		return nil, firstErr
	}

	sort.Slice(views, func(i, j int) bool {
		if views[i].End != views[j].End {
			return views[i].End < views[j].End
		}
		return views[i].ID.String() < views[j].ID.String()
	})
	return views, nil
}

// ListBids returns every bid state recorded for auctionID.
func (s *AuctionService) ListBids(auctionID ledger.AccountID) ([]BidView, error) {
	snap := s.ledger.Snapshot()

	var winner *ledger.AccountID
	s.ledger.View(func(tx *ledger.Txn) {
		var a domain.Auction
		if tx.Record(auctionID, engine.KindAuction, &a) == nil {
			winner = a.Bidder
		}
	})

	views := make([]BidView, 0)
	for _, r := range snap.Records {
		if r.Kind != engine.KindBidState {
			continue
		}
		var bs domain.BidState
		if err := json.Unmarshal(r.Data, &bs); err != nil {
			return nil, err
		}
		if bs.Auction != auctionID {
			continue
		}
		v := BidView{ID: r.ID, BidState: bs, Winning: winner != nil && *winner == bs.Bidder}
		escrowID, _ := domain.BidEscrowAddress(r.ID)
		s.ledger.View(func(tx *ledger.Txn) {
			if escrow, err := tx.Token(escrowID); err == nil {
				v.EscrowAmount = escrow.Amount
			}
		})
		views = append(views, v)
	}

	sort.Slice(views, func(i, j int) bool {
		return views[i].ID.String() < views[j].ID.String()
	})
	return views, nil
}
