package engine

import (
	"log/slog"

	"auction_go/internal/domain"
	"auction_go/internal/ledger"
)

// InitHouse creates the global registry entry for name, administered by
// admin. One house per name, forever; fee changes require a new house.
func (e *Engine) InitHouse(admin ledger.AccountID, feeBps uint16, name string) (ledger.AccountID, error) {
	const op = "init_house"

	if err := domain.ValidateHouseName(name); err != nil {
		return ledger.ZeroID, opFailed(op, err)
	}
	if feeBps > domain.MaxFeeBps {
		return ledger.ZeroID, opFailed(op, domain.ErrInvalidAmount)
	}

	houseID, bump := domain.HouseAddress(name)
	err := e.ledger.Execute(func(tx *ledger.Txn) error {
		return tx.CreateRecord(houseID, KindHouse, domain.AuctionHouse{
			Admin:  admin,
			FeeBps: feeBps,
			Bump:   bump,
			Name:   name,
		}, admin)
	})
	if err != nil {
		return ledger.ZeroID, opFailed(op, err)
	}

	slog.Info("house created",
		slog.String("house", houseID.String()),
		slog.String("name", name),
		slog.Int("fee_bps", int(feeBps)))
	return houseID, nil
}

// InitAuctionParams carries everything init_auction needs. SellerFunding is
// the seller's asset-A token account the deposit is pulled from; when zero,
// the seller's associated account is used.
type InitAuctionParams struct {
	Seller        ledger.AccountID
	House         ledger.AccountID
	MintA         ledger.AccountID
	MintB         ledger.AccountID
	SellerFunding ledger.AccountID
	StartingPrice uint64
	End           uint64
	Amount        uint64
	Decimal       uint8
}

// InitAuction creates a listing and escrows Amount of asset A in the
// auction-owned vault. The stored highest price is StartingPrice-1 so the
// first bid at exactly StartingPrice clears the strictly-greater check.
func (e *Engine) InitAuction(p InitAuctionParams) (ledger.AccountID, error) {
	const op = "init_auction"

	if p.Amount == 0 {
		return ledger.ZeroID, opFailed(op, domain.ErrInvalidAmount)
	}
	// HighestPrice stores StartingPrice-1; a zero starting price has no
	// representable predecessor and would make the opening bid unmatchable.
	if p.StartingPrice == 0 {
		return ledger.ZeroID, opFailed(op, domain.ErrInvalidAmount)
	}

	auctionID, bump := domain.AuctionAddress(p.House, p.Seller, p.MintA, p.MintB, p.End)
	err := e.ledger.Execute(func(tx *ledger.Txn) error {
		if _, err := loadHouse(tx, p.House); err != nil {
			return err
		}

		if err := tx.CreateRecord(auctionID, KindAuction, domain.Auction{
			House:        p.House,
			Seller:       p.Seller,
			MintA:        p.MintA,
			MintB:        p.MintB,
			Bump:         bump,
			End:          p.End,
			HighestPrice: p.StartingPrice - 1,
			Decimal:      p.Decimal,
		}, p.Seller); err != nil {
			return err
		}

		vaultID, _ := domain.AuctionVaultAddress(auctionID)
		if err := tx.CreateTokenAccount(vaultID, p.MintA, auctionID, p.Seller); err != nil {
			return err
		}

		funding := p.SellerFunding
		if funding.IsZero() {
			funding, _ = ledger.AssociatedTokenAddress(p.Seller, p.MintA)
		}
		return tx.Transfer(funding, vaultID, p.Amount, ledger.KeyAuthority(p.Seller))
	})
	if err != nil {
		return ledger.ZeroID, opFailed(op, err)
	}

	slog.Info("auction created",
		slog.String("auction", auctionID.String()),
		slog.Uint64("starting_price", p.StartingPrice),
		slog.Uint64("amount", p.Amount),
		slog.Uint64("end", p.End))
	return auctionID, nil
}
