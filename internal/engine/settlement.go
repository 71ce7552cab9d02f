package engine

import (
	"log/slog"

	"auction_go/internal/domain"
	"auction_go/internal/ledger"
)

// Settlement reports the fund movements of a finalize.
type Settlement struct {
	Winner       ledger.AccountID
	WinnerAmount uint64 // asset A delivered to the winner
	SellerAmount uint64 // asset B to the seller, after fee
	HouseFee     uint64 // asset B to the house admin
}

// Finalize settles an ended auction for its winning bidder: the vault's asset
// goes to the winner, the escrowed payment goes to the seller minus the house
// fee, and every involved account is closed with its rent refunded. Anyone
// may crank it; payer covers rent for destination accounts created on the
// fly. Each transfer is validated against live balances, and the whole
// settlement is one ledger transaction.
func (e *Engine) Finalize(payer, auctionID, bidder ledger.AccountID) (Settlement, error) {
	const op = "finalize"

	var s Settlement
	err := e.ledger.Execute(func(tx *ledger.Txn) error {
		auction, err := loadAuction(tx, auctionID)
		if err != nil {
			return err
		}
		bidID, _ := domain.BidAddress(auctionID, bidder)
		bs, err := loadBidState(tx, bidID)
		if err != nil {
			return err
		}

		// Both records must agree on the winner identity; a mismatched
		// bid state cannot impersonate the winning slot.
		if e.clock.Slot() < auction.End {
			return domain.ErrNotEligibleToWithdraw
		}
		if !auction.IsWinner(bs.Bidder) || bs.Bidder != bidder || bs.Auction != auctionID {
			return domain.ErrNotEligibleToWithdraw
		}

		house, err := loadHouse(tx, auction.House)
		if err != nil {
			return err
		}

		// (a) full vault balance to the winner, signed by the auction's
		// derived authority, then (b) vault closed with rent to the seller.
		vaultID, _ := domain.AuctionVaultAddress(auctionID)
		vault, err := tx.Token(vaultID)
		if err != nil {
			return err
		}
		winnerDest, err := tx.EnsureAssociated(bidder, auction.MintA, payer)
		if err != nil {
			return err
		}
		aAuth := auctionAuthority(&auction)
		if err := tx.Transfer(vaultID, winnerDest, vault.Amount, aAuth); err != nil {
			return err
		}
		if err := tx.CloseTokenAccount(vaultID, auction.Seller, aAuth); err != nil {
			return err
		}

		// (c)-(e) split the live escrow balance between seller and house;
		// the two legs always sum to the pre-settlement escrow exactly.
		escrowID, _ := domain.BidEscrowAddress(bidID)
		escrow, err := tx.Token(escrowID)
		if err != nil {
			return err
		}
		fee, err := domain.HouseFee(escrow.Amount, house.FeeBps)
		if err != nil {
			return err
		}
		sellerAmount := escrow.Amount - fee

		bAuth := bidAuthority(&bs)
		sellerDest, err := tx.EnsureAssociated(auction.Seller, auction.MintB, payer)
		if err != nil {
			return err
		}
		if err := tx.Transfer(escrowID, sellerDest, sellerAmount, bAuth); err != nil {
			return err
		}
		houseDest, err := tx.EnsureAssociated(house.Admin, auction.MintB, payer)
		if err != nil {
			return err
		}
		if err := tx.Transfer(escrowID, houseDest, fee, bAuth); err != nil {
			return err
		}

		// (f)-(g) close escrow and records, refunding rent to their payers.
		if err := tx.CloseTokenAccount(escrowID, bidder, bAuth); err != nil {
			return err
		}
		if err := tx.CloseRecord(bidID, bidder); err != nil {
			return err
		}
		if err := tx.CloseRecord(auctionID, auction.Seller); err != nil {
			return err
		}

		s = Settlement{
			Winner:       bidder,
			WinnerAmount: vault.Amount,
			SellerAmount: sellerAmount,
			HouseFee:     fee,
		}
		return nil
	})
	if err != nil {
		return Settlement{}, opFailed(op, err)
	}

	slog.Info("auction finalized",
		slog.String("auction", auctionID.String()),
		slog.String("winner", bidder.String()),
		slog.Uint64("winner_amount", s.WinnerAmount),
		slog.Uint64("seller_amount", s.SellerAmount),
		slog.Uint64("house_fee", s.HouseFee))
	return s, nil
}

// Cancel lets the seller reclaim an unsold listing after the deadline. It is
// only valid when no bid was ever accepted; an auction with a winner must be
// finalized instead.
func (e *Engine) Cancel(seller, auctionID ledger.AccountID) (uint64, error) {
	const op = "cancel"

	var returned uint64
	err := e.ledger.Execute(func(tx *ledger.Txn) error {
		auction, err := loadAuction(tx, auctionID)
		if err != nil {
			return err
		}
		if auction.Seller != seller {
			return ledger.ErrUnauthorized
		}
		if e.clock.Slot() < auction.End || auction.HasBid() {
			return domain.ErrNotEligibleToWithdraw
		}

		vaultID, _ := domain.AuctionVaultAddress(auctionID)
		vault, err := tx.Token(vaultID)
		if err != nil {
			return err
		}
		dest, err := tx.EnsureAssociated(seller, auction.MintA, seller)
		if err != nil {
			return err
		}
		aAuth := auctionAuthority(&auction)
		if err := tx.Transfer(vaultID, dest, vault.Amount, aAuth); err != nil {
			return err
		}
		if err := tx.CloseTokenAccount(vaultID, seller, aAuth); err != nil {
			return err
		}
		if err := tx.CloseRecord(auctionID, seller); err != nil {
			return err
		}

		returned = vault.Amount
		return nil
	})
	if err != nil {
		return 0, opFailed(op, err)
	}

	slog.Info("auction cancelled",
		slog.String("auction", auctionID.String()),
		slog.Uint64("returned", returned))
	return returned, nil
}
