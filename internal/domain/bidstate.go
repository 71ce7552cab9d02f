package domain

import "auction_go/internal/ledger"

// BidState is the per-bidder record for one auction. Its escrow vault holds
// the payment locked for the bid. The Auction back-reference stops a closed
// escrow from being replayed against a different auction.
type BidState struct {
	Bidder  ledger.AccountID `json:"bidder"`
	Auction ledger.AccountID `json:"auction"`
	Bump    uint8            `json:"bump"`
}

// BidSeeds returns the derivation seeds for a bid state.
func BidSeeds(auction, bidder ledger.AccountID) [][]byte {
	return [][]byte{[]byte("bid"), auction.Bytes(), bidder.Bytes()}
}

// BidAddress derives the record address for a (auction, bidder) pair.
func BidAddress(auction, bidder ledger.AccountID) (ledger.AccountID, uint8) {
	return ledger.Derive(BidSeeds(auction, bidder)...)
}

// BidEscrowAddress derives the payment escrow vault owned by a bid state.
func BidEscrowAddress(bidState ledger.AccountID) (ledger.AccountID, uint8) {
	return ledger.Derive([]byte("escrow"), bidState.Bytes())
}
