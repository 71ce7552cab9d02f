package domain

import "auction_go/internal/ledger"

// Auction is the per-listing record. It owns the vault escrowing the asset
// for sale; the vault's authority is the auction's own derived address.
//
// Bidder is nil until the first accepted bid. HighestPrice only ever rises:
// it starts at startingPrice-1 and each accepted bid strictly increases it.
type Auction struct {
	House        ledger.AccountID  `json:"house"`
	Seller       ledger.AccountID  `json:"seller"`
	MintA        ledger.AccountID  `json:"mint_a"` // asset for sale
	MintB        ledger.AccountID  `json:"mint_b"` // payment asset
	Bump         uint8             `json:"bump"`
	End          uint64            `json:"end"` // deadline slot
	HighestPrice uint64            `json:"highest_price"`
	Decimal      uint8             `json:"decimal"` // precision of HighestPrice
	Bidder       *ledger.AccountID `json:"bidder,omitempty"`
}

// HasBid reports whether any bid has ever been accepted.
func (a *Auction) HasBid() bool {
	return a.Bidder != nil
}

// IsWinner reports whether id is the current highest bidder.
func (a *Auction) IsWinner(id ledger.AccountID) bool {
	return a.Bidder != nil && *a.Bidder == id
}

// AuctionSeeds returns the derivation seeds for an auction. The deadline is
// part of the identity, so one seller can run concurrent auctions on the same
// pair with different ends.
func AuctionSeeds(house, seller, mintA, mintB ledger.AccountID, end uint64) [][]byte {
	return [][]byte{
		[]byte("auction"),
		house.Bytes(),
		seller.Bytes(),
		mintA.Bytes(),
		mintB.Bytes(),
		ledger.EndSeed(end),
	}
}

// AuctionAddress derives the record address for an auction.
func AuctionAddress(house, seller, mintA, mintB ledger.AccountID, end uint64) (ledger.AccountID, uint8) {
	return ledger.Derive(AuctionSeeds(house, seller, mintA, mintB, end)...)
}

// AuctionVaultAddress derives the asset vault owned by an auction.
func AuctionVaultAddress(auction ledger.AccountID) (ledger.AccountID, uint8) {
	return ledger.Derive([]byte("vault"), auction.Bytes())
}
