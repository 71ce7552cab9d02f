package engine

import (
	"log/slog"

	"auction_go/internal/domain"
	"auction_go/internal/ledger"
)

// BidParams carries a bid. Funding is the bidder's asset-B token account the
// deposit is pulled from; when zero, the bidder's associated account is used.
type BidParams struct {
	Bidder  ledger.AccountID
	Auction ledger.AccountID
	Funding ledger.AccountID
	Price   uint64
}

// BidReceipt reports an accepted bid.
type BidReceipt struct {
	BidState ledger.AccountID
	Escrow   ledger.AccountID
	Deposit  uint64
}

// Bid places a bid at Price (scaled by the auction's price decimal). A bid
// must strictly beat the current highest price. On success the bidder's
// escrow is funded with exactly the payment covering the full vault holding
// at the new price, and the bidder becomes the current winner.
func (e *Engine) Bid(p BidParams) (BidReceipt, error) {
	const op = "bid"

	var receipt BidReceipt
	err := e.ledger.Execute(func(tx *ledger.Txn) error {
		auction, err := loadAuction(tx, p.Auction)
		if err != nil {
			return err
		}

		if e.cutoff == CutoffAtEnd && e.clock.Slot() >= auction.End {
			return domain.ErrAuctionEnded
		}
		if p.Price <= auction.HighestPrice {
			return domain.ErrPriceTooLow
		}

		auction.HighestPrice = p.Price
		auction.Bidder = &p.Bidder
		if err := tx.UpdateRecord(p.Auction, KindAuction, auction); err != nil {
			return err
		}

		bidID, bump := domain.BidAddress(p.Auction, p.Bidder)
		if err := tx.CreateRecord(bidID, KindBidState, domain.BidState{
			Bidder:  p.Bidder,
			Auction: p.Auction,
			Bump:    bump,
		}, p.Bidder); err != nil {
			return err
		}

		escrowID, _ := domain.BidEscrowAddress(bidID)
		if err := tx.CreateTokenAccount(escrowID, auction.MintB, bidID, p.Bidder); err != nil {
			return err
		}

		// The deposit covers the whole listed quantity at the price that
		// just won, recomputed from the live vault balance.
		vaultID, _ := domain.AuctionVaultAddress(p.Auction)
		vault, err := tx.Token(vaultID)
		if err != nil {
			return err
		}
		mintA, err := tx.Mint(auction.MintA)
		if err != nil {
			return err
		}
		mintB, err := tx.Mint(auction.MintB)
		if err != nil {
			return err
		}
		deposit, err := domain.RequiredPayment(vault.Amount, auction.HighestPrice,
			mintA.Decimals, mintB.Decimals, auction.Decimal)
		if err != nil {
			return err
		}

		funding := p.Funding
		if funding.IsZero() {
			funding, _ = ledger.AssociatedTokenAddress(p.Bidder, auction.MintB)
		}
		if err := tx.Transfer(funding, escrowID, deposit, ledger.KeyAuthority(p.Bidder)); err != nil {
			return err
		}

		receipt = BidReceipt{BidState: bidID, Escrow: escrowID, Deposit: deposit}
		return nil
	})
	if err != nil {
		return BidReceipt{}, opFailed(op, err)
	}

	slog.Info("bid accepted",
		slog.String("auction", p.Auction.String()),
		slog.String("bidder", p.Bidder.String()),
		slog.Uint64("price", p.Price),
		slog.Uint64("deposit", receipt.Deposit))
	return receipt, nil
}

// Withdraw returns a non-winning bidder's full escrow and closes their bid
// slot. It is allowed at any time unless the caller is the current highest
// bidder on a still-open auction; once the auction record is gone,
// settlement has already excluded this bidder, so withdrawal is free.
func (e *Engine) Withdraw(bidder, auctionID ledger.AccountID) (uint64, error) {
	const op = "withdraw"

	var refunded uint64
	err := e.ledger.Execute(func(tx *ledger.Txn) error {
		bidID, _ := domain.BidAddress(auctionID, bidder)
		bs, err := loadBidState(tx, bidID)
		if err != nil {
			return err
		}
		if bs.Auction != auctionID || bs.Bidder != bidder {
			return domain.ErrNotEligibleToWithdraw
		}

		if tx.HasRecord(auctionID) {
			auction, err := loadAuction(tx, auctionID)
			if err != nil {
				return err
			}
			if auction.IsWinner(bidder) {
				return domain.ErrNotEligibleToWithdraw
			}
		}

		escrowID, _ := domain.BidEscrowAddress(bidID)
		escrow, err := tx.Token(escrowID)
		if err != nil {
			return err
		}

		dest, err := tx.EnsureAssociated(bidder, escrow.Mint, bidder)
		if err != nil {
			return err
		}
		auth := bidAuthority(&bs)
		if err := tx.Transfer(escrowID, dest, escrow.Amount, auth); err != nil {
			return err
		}
		if err := tx.CloseTokenAccount(escrowID, bidder, auth); err != nil {
			return err
		}
		if err := tx.CloseRecord(bidID, bidder); err != nil {
			return err
		}

		refunded = escrow.Amount
		return nil
	})
	if err != nil {
		return 0, opFailed(op, err)
	}

	slog.Info("bid withdrawn",
		slog.String("auction", auctionID.String()),
		slog.String("bidder", bidder.String()),
		slog.Uint64("refunded", refunded))
	return refunded, nil
}
