package domain

import "auction_go/internal/ledger"

// MaxFeeBps is the upper bound for a house fee (100%).
const MaxFeeBps = 10_000

// AuctionHouse is the global, name-keyed registry entry: who administers the
// house and what basis-point cut every settlement pays. There is no update
// operation; a different fee means a different house.
type AuctionHouse struct {
	Admin  ledger.AccountID `json:"admin"`
	FeeBps uint16           `json:"fee_bps"`
	Bump   uint8            `json:"bump"`
	Name   string           `json:"name"`
}

// HouseAddress derives the registry address for a house name.
func HouseAddress(name string) (ledger.AccountID, uint8) {
	return ledger.Derive([]byte("house"), []byte(name))
}

// ValidateHouseName enforces the 1..31 byte name constraint.
func ValidateHouseName(name string) error {
	if name == "" || len(name) >= 32 {
		return ErrNameTooLong
	}
	return nil
}
