package ledger

// Mint describes one fungible asset type and its decimal precision.
type Mint struct {
	ID       AccountID `json:"id"`
	Decimals uint8     `json:"decimals"`
}

// TokenAccount holds a balance of one mint. The Authority address is either
// an external key or a derived identity; transfers out require a matching
// Authority value.
type TokenAccount struct {
	ID        AccountID `json:"id"`
	Mint      AccountID `json:"mint"`
	Authority AccountID `json:"authority"`
	Amount    uint64    `json:"amount"`
}
