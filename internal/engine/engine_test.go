package engine

import (
	"errors"
	"testing"

	"auction_go/internal/domain"
	"auction_go/internal/ledger"
)

type testEnv struct {
	t     *testing.T
	l     *ledger.Ledger
	clock *ledger.ManualClock
	eng   *Engine

	admin  ledger.AccountID
	seller ledger.AccountID
	alice  ledger.AccountID // bidder
	bob    ledger.AccountID // bidder

	mintA ledger.Mint
	mintB ledger.Mint
	house ledger.AccountID
}

// newTestEnv builds a ledger with a 250 bps house, a seller holding 1000
// units of asset A, and two bidders holding 1_000_000 units of asset B each.
func newTestEnv(t *testing.T, cutoff string, decA, decB uint8) *testEnv {
	t.Helper()

	env := &testEnv{
		t:      t,
		l:      ledger.New(),
		clock:  &ledger.ManualClock{},
		admin:  ledger.NewKeyID(),
		seller: ledger.NewKeyID(),
		alice:  ledger.NewKeyID(),
		bob:    ledger.NewKeyID(),
	}
	env.eng = NewEngine(env.l, env.clock, cutoff)

	err := env.l.Execute(func(tx *ledger.Txn) error {
		for _, id := range []ledger.AccountID{env.admin, env.seller, env.alice, env.bob} {
			tx.CreditNative(id, 100*ledger.AccountRent)
		}
		env.mintA = tx.CreateMint(decA)
		env.mintB = tx.CreateMint(decB)

		sellerA, err := tx.EnsureAssociated(env.seller, env.mintA.ID, env.seller)
		if err != nil {
			return err
		}
		if err := tx.MintTo(sellerA, 1000); err != nil {
			return err
		}
		for _, bidder := range []ledger.AccountID{env.alice, env.bob} {
			acct, err := tx.EnsureAssociated(bidder, env.mintB.ID, bidder)
			if err != nil {
				return err
			}
			if err := tx.MintTo(acct, 1_000_000); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("env setup failed: %v", err)
	}

	env.house, err = env.eng.InitHouse(env.admin, 250, "main")
	if err != nil {
		t.Fatalf("init house failed: %v", err)
	}
	return env
}

func (env *testEnv) balance(owner ledger.AccountID, mint ledger.Mint) uint64 {
	env.t.Helper()
	var amount uint64
	env.l.View(func(tx *ledger.Txn) {
		id, _ := ledger.AssociatedTokenAddress(owner, mint.ID)
		if tok, err := tx.Token(id); err == nil {
			amount = tok.Amount
		}
	})
	return amount
}

func (env *testEnv) native(id ledger.AccountID) uint64 {
	env.t.Helper()
	var amount uint64
	env.l.View(func(tx *ledger.Txn) { amount = tx.NativeBalance(id) })
	return amount
}

func (env *testEnv) escrowBalance(auction, bidder ledger.AccountID) uint64 {
	env.t.Helper()
	var amount uint64
	env.l.View(func(tx *ledger.Txn) {
		bidID, _ := domain.BidAddress(auction, bidder)
		escrowID, _ := domain.BidEscrowAddress(bidID)
		if tok, err := tx.Token(escrowID); err == nil {
			amount = tok.Amount
		}
	})
	return amount
}

func (env *testEnv) listAuction(startingPrice, end, amount uint64, decimal uint8) ledger.AccountID {
	env.t.Helper()
	id, err := env.eng.InitAuction(InitAuctionParams{
		Seller:        env.seller,
		House:         env.house,
		MintA:         env.mintA.ID,
		MintB:         env.mintB.ID,
		StartingPrice: startingPrice,
		End:           end,
		Amount:        amount,
		Decimal:       decimal,
	})
	if err != nil {
		env.t.Fatalf("init auction failed: %v", err)
	}
	return id
}

func (env *testEnv) readAuction(id ledger.AccountID) domain.Auction {
	env.t.Helper()
	var a domain.Auction
	var err error
	env.l.View(func(tx *ledger.Txn) { a, err = loadAuction(tx, id) })
	if err != nil {
		env.t.Fatalf("read auction: %v", err)
	}
	return a
}

func TestInitHouse(t *testing.T) {
	env := newTestEnv(t, CutoffAtEnd, 0, 0)

	t.Run("rejects long names", func(t *testing.T) {
		_, err := env.eng.InitHouse(env.admin, 100, "this-name-is-definitely-too-long-to-fit")
		if !errors.Is(err, domain.ErrNameTooLong) {
			t.Errorf("err = %v, want ErrNameTooLong", err)
		}
	})

	t.Run("rejects empty names", func(t *testing.T) {
		_, err := env.eng.InitHouse(env.admin, 100, "")
		if !errors.Is(err, domain.ErrNameTooLong) {
			t.Errorf("err = %v, want ErrNameTooLong", err)
		}
	})

	t.Run("rejects fee above 100 percent", func(t *testing.T) {
		_, err := env.eng.InitHouse(env.admin, 10_001, "greedy")
		if !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("err = %v, want ErrInvalidAmount", err)
		}
	})

	t.Run("one house per name", func(t *testing.T) {
		_, err := env.eng.InitHouse(env.admin, 100, "main")
		if !errors.Is(err, ledger.ErrAccountExists) {
			t.Errorf("err = %v, want ErrAccountExists", err)
		}
	})

	t.Run("distinct names coexist", func(t *testing.T) {
		if _, err := env.eng.InitHouse(env.admin, 500, "second"); err != nil {
			t.Errorf("second house failed: %v", err)
		}
	})
}

func TestInitAuction(t *testing.T) {
	env := newTestEnv(t, CutoffAtEnd, 0, 0)

	t.Run("rejects zero deposit", func(t *testing.T) {
		_, err := env.eng.InitAuction(InitAuctionParams{
			Seller: env.seller, House: env.house,
			MintA: env.mintA.ID, MintB: env.mintB.ID,
			StartingPrice: 100, End: 50, Amount: 0, Decimal: 2,
		})
		if !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("err = %v, want ErrInvalidAmount", err)
		}
	})

	t.Run("rejects zero starting price", func(t *testing.T) {
		_, err := env.eng.InitAuction(InitAuctionParams{
			Seller: env.seller, House: env.house,
			MintA: env.mintA.ID, MintB: env.mintB.ID,
			StartingPrice: 0, End: 50, Amount: 10, Decimal: 2,
		})
		if !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("err = %v, want ErrInvalidAmount", err)
		}
	})

	t.Run("escrows the deposit and offsets the starting price", func(t *testing.T) {
		auctionID := env.listAuction(1000, 100, 50, 2)

		a := env.readAuction(auctionID)
		if a.HighestPrice != 999 {
			t.Errorf("highest price = %d, want 999", a.HighestPrice)
		}
		if a.HasBid() {
			t.Error("fresh auction should have no bidder")
		}
		if got := env.balance(env.seller, env.mintA); got != 950 {
			t.Errorf("seller asset balance = %d, want 950", got)
		}

		env.l.View(func(tx *ledger.Txn) {
			vaultID, _ := domain.AuctionVaultAddress(auctionID)
			vault, err := tx.Token(vaultID)
			if err != nil {
				t.Fatalf("vault missing: %v", err)
			}
			if vault.Amount != 50 {
				t.Errorf("vault = %d, want 50", vault.Amount)
			}
			if vault.Authority != auctionID {
				t.Error("vault must be owned by the auction's derived identity")
			}
		})
	})

	t.Run("same derivation cannot be listed twice", func(t *testing.T) {
		_, err := env.eng.InitAuction(InitAuctionParams{
			Seller: env.seller, House: env.house,
			MintA: env.mintA.ID, MintB: env.mintB.ID,
			StartingPrice: 2000, End: 100, Amount: 10, Decimal: 2,
		})
		if !errors.Is(err, ledger.ErrAccountExists) {
			t.Errorf("err = %v, want ErrAccountExists", err)
		}
	})

	t.Run("different end is a different auction", func(t *testing.T) {
		if _, err := env.eng.InitAuction(InitAuctionParams{
			Seller: env.seller, House: env.house,
			MintA: env.mintA.ID, MintB: env.mintB.ID,
			StartingPrice: 2000, End: 200, Amount: 10, Decimal: 2,
		}); err != nil {
			t.Errorf("second auction with new end failed: %v", err)
		}
	})
}

func TestBid(t *testing.T) {
	t.Run("price ladder", func(t *testing.T) {
		env := newTestEnv(t, CutoffAtEnd, 0, 0)
		// starting price "10.00" scaled by decimal 2 -> 1000, stored as 999
		auctionID := env.listAuction(1000, 100, 50, 2)

		first, err := env.eng.Bid(BidParams{Bidder: env.alice, Auction: auctionID, Price: 1000})
		if err != nil {
			t.Fatalf("bid at starting price failed: %v", err)
		}
		// floor(50 * 1000 / 10^2) = 500
		if first.Deposit != 500 {
			t.Errorf("deposit = %d, want 500", first.Deposit)
		}
		if got := env.escrowBalance(auctionID, env.alice); got != 500 {
			t.Errorf("escrow balance = %d, want 500", got)
		}

		if _, err := env.eng.Bid(BidParams{Bidder: env.bob, Auction: auctionID, Price: 1000}); !errors.Is(err, domain.ErrPriceTooLow) {
			t.Errorf("equal price err = %v, want ErrPriceTooLow", err)
		}

		second, err := env.eng.Bid(BidParams{Bidder: env.bob, Auction: auctionID, Price: 1001})
		if err != nil {
			t.Fatalf("outbid failed: %v", err)
		}
		if second.Deposit != 500 { // floor(50*1001/100) = 500
			t.Errorf("outbid deposit = %d, want 500", second.Deposit)
		}

		a := env.readAuction(auctionID)
		if a.HighestPrice != 1001 || !a.IsWinner(env.bob) {
			t.Errorf("auction state = price %d winner bob %v", a.HighestPrice, a.IsWinner(env.bob))
		}
	})

	t.Run("highest price never decreases", func(t *testing.T) {
		env := newTestEnv(t, CutoffAtEnd, 0, 0)
		auctionID := env.listAuction(100, 100, 10, 0)

		prev := env.readAuction(auctionID).HighestPrice
		bidders := []ledger.AccountID{env.alice, env.bob}
		prices := []uint64{100, 150}
		for i, price := range prices {
			if _, err := env.eng.Bid(BidParams{Bidder: bidders[i], Auction: auctionID, Price: price}); err != nil {
				t.Fatalf("bid %d failed: %v", i, err)
			}
			cur := env.readAuction(auctionID).HighestPrice
			if cur <= prev {
				t.Errorf("highest price %d did not strictly increase past %d", cur, prev)
			}
			prev = cur
		}
	})

	t.Run("hard cutoff rejects late bids", func(t *testing.T) {
		env := newTestEnv(t, CutoffAtEnd, 0, 0)
		auctionID := env.listAuction(100, 10, 10, 0)

		env.clock.Set(10)
		_, err := env.eng.Bid(BidParams{Bidder: env.alice, Auction: auctionID, Price: 100})
		if !errors.Is(err, domain.ErrAuctionEnded) {
			t.Errorf("err = %v, want ErrAuctionEnded", err)
		}
	})

	t.Run("grace policy accepts bids after the deadline", func(t *testing.T) {
		env := newTestEnv(t, CutoffAtFinalize, 0, 0)
		auctionID := env.listAuction(100, 10, 10, 0)

		env.clock.Set(10)
		if _, err := env.eng.Bid(BidParams{Bidder: env.alice, Auction: auctionID, Price: 100}); err != nil {
			t.Errorf("grace-period bid failed: %v", err)
		}
	})

	t.Run("live bid slot blocks a second bid", func(t *testing.T) {
		env := newTestEnv(t, CutoffAtEnd, 0, 0)
		auctionID := env.listAuction(100, 100, 10, 0)

		if _, err := env.eng.Bid(BidParams{Bidder: env.alice, Auction: auctionID, Price: 100}); err != nil {
			t.Fatalf("first bid failed: %v", err)
		}
		if _, err := env.eng.Bid(BidParams{Bidder: env.bob, Auction: auctionID, Price: 150}); err != nil {
			t.Fatalf("bob outbid failed: %v", err)
		}
		// alice is outbid but her slot still exists; she must withdraw first
		_, err := env.eng.Bid(BidParams{Bidder: env.alice, Auction: auctionID, Price: 200})
		if !errors.Is(err, ledger.ErrAccountExists) {
			t.Errorf("err = %v, want ErrAccountExists", err)
		}

		if _, err := env.eng.Withdraw(env.alice, auctionID); err != nil {
			t.Fatalf("withdraw failed: %v", err)
		}
		if _, err := env.eng.Bid(BidParams{Bidder: env.alice, Auction: auctionID, Price: 200}); err != nil {
			t.Errorf("re-bid after withdraw failed: %v", err)
		}
	})

	t.Run("bid rolls back entirely when funding is short", func(t *testing.T) {
		env := newTestEnv(t, CutoffAtEnd, 0, 0)
		// 1000 units at price >= 1001 needs more asset B than bidders hold
		auctionID := env.listAuction(1001, 100, 1000, 0)

		_, err := env.eng.Bid(BidParams{Bidder: env.alice, Auction: auctionID, Price: 1001})
		if !errors.Is(err, ledger.ErrInsufficientFunds) {
			t.Fatalf("err = %v, want ErrInsufficientFunds", err)
		}

		// The failed bid must not have touched the auction or left a slot.
		a := env.readAuction(auctionID)
		if a.HasBid() || a.HighestPrice != 1000 {
			t.Errorf("failed bid leaked state: %+v", a)
		}
		env.l.View(func(tx *ledger.Txn) {
			bidID, _ := domain.BidAddress(auctionID, env.alice)
			if tx.HasRecord(bidID) {
				t.Error("failed bid left a bid state behind")
			}
		})
	})
}

func TestWithdraw(t *testing.T) {
	env := newTestEnv(t, CutoffAtEnd, 0, 0)
	auctionID := env.listAuction(100, 100, 10, 0)

	if _, err := env.eng.Bid(BidParams{Bidder: env.alice, Auction: auctionID, Price: 100}); err != nil {
		t.Fatalf("alice bid failed: %v", err)
	}

	t.Run("current winner is blocked", func(t *testing.T) {
		_, err := env.eng.Withdraw(env.alice, auctionID)
		if !errors.Is(err, domain.ErrNotEligibleToWithdraw) {
			t.Errorf("err = %v, want ErrNotEligibleToWithdraw", err)
		}
	})

	if _, err := env.eng.Bid(BidParams{Bidder: env.bob, Auction: auctionID, Price: 150}); err != nil {
		t.Fatalf("bob bid failed: %v", err)
	}

	t.Run("outbid bidder recovers the exact deposit before the end", func(t *testing.T) {
		before := env.balance(env.alice, env.mintB)
		refunded, err := env.eng.Withdraw(env.alice, auctionID)
		if err != nil {
			t.Fatalf("withdraw failed: %v", err)
		}
		if refunded != 1000 { // floor(10*100/1) at decimal 0
			t.Errorf("refunded = %d, want 1000", refunded)
		}
		if after := env.balance(env.alice, env.mintB); after != before+refunded {
			t.Errorf("balance after withdraw = %d, want %d", after, before+refunded)
		}
	})

	t.Run("withdrawing a missing slot fails", func(t *testing.T) {
		_, err := env.eng.Withdraw(env.alice, auctionID)
		if !errors.Is(err, ledger.ErrAccountNotFound) {
			t.Errorf("err = %v, want ErrAccountNotFound", err)
		}
	})
}

func TestFinalize(t *testing.T) {
	setup := func(t *testing.T) (*testEnv, ledger.AccountID) {
		env := newTestEnv(t, CutoffAtEnd, 0, 0)
		// scenario: 50 units of A, price 2.00 (decimal 2), fee 250 bps
		auctionID := env.listAuction(200, 100, 50, 2)
		if _, err := env.eng.Bid(BidParams{Bidder: env.alice, Auction: auctionID, Price: 200}); err != nil {
			t.Fatalf("bid failed: %v", err)
		}
		return env, auctionID
	}

	t.Run("blocked before the deadline", func(t *testing.T) {
		env, auctionID := setup(t)
		_, err := env.eng.Finalize(env.admin, auctionID, env.alice)
		if !errors.Is(err, domain.ErrNotEligibleToWithdraw) {
			t.Errorf("err = %v, want ErrNotEligibleToWithdraw", err)
		}
	})

	t.Run("blocked for a non-winning bid state", func(t *testing.T) {
		env, auctionID := setup(t)
		if _, err := env.eng.Bid(BidParams{Bidder: env.bob, Auction: auctionID, Price: 300}); err != nil {
			t.Fatalf("bob bid failed: %v", err)
		}
		env.clock.Set(100)
		_, err := env.eng.Finalize(env.admin, auctionID, env.alice)
		if !errors.Is(err, domain.ErrNotEligibleToWithdraw) {
			t.Errorf("err = %v, want ErrNotEligibleToWithdraw", err)
		}
	})

	t.Run("settles winner, seller and house exactly", func(t *testing.T) {
		env, auctionID := setup(t)
		env.clock.Set(100)

		escrowBefore := env.escrowBalance(auctionID, env.alice)
		if escrowBefore != 100 { // floor(50*200/100)
			t.Fatalf("escrow before finalize = %d, want 100", escrowBefore)
		}

		s, err := env.eng.Finalize(env.admin, auctionID, env.alice)
		if err != nil {
			t.Fatalf("finalize failed: %v", err)
		}

		if s.WinnerAmount != 50 {
			t.Errorf("winner amount = %d, want 50", s.WinnerAmount)
		}
		if s.HouseFee != 2 { // floor(100*250/10000)
			t.Errorf("house fee = %d, want 2", s.HouseFee)
		}
		if s.SellerAmount != 98 {
			t.Errorf("seller amount = %d, want 98", s.SellerAmount)
		}
		if s.SellerAmount+s.HouseFee != escrowBefore {
			t.Errorf("fee conservation broken: %d + %d != %d", s.SellerAmount, s.HouseFee, escrowBefore)
		}

		if got := env.balance(env.alice, env.mintA); got != 50 {
			t.Errorf("winner asset balance = %d, want 50", got)
		}
		if got := env.balance(env.seller, env.mintB); got != 98 {
			t.Errorf("seller payment balance = %d, want 98", got)
		}
		if got := env.balance(env.admin, env.mintB); got != 2 {
			t.Errorf("house payment balance = %d, want 2", got)
		}
	})

	t.Run("no double settlement", func(t *testing.T) {
		env, auctionID := setup(t)
		env.clock.Set(100)
		if _, err := env.eng.Finalize(env.admin, auctionID, env.alice); err != nil {
			t.Fatalf("first finalize failed: %v", err)
		}

		winnerBefore := env.balance(env.alice, env.mintA)
		_, err := env.eng.Finalize(env.admin, auctionID, env.alice)
		if !errors.Is(err, ledger.ErrAccountNotFound) {
			t.Errorf("second finalize err = %v, want ErrAccountNotFound", err)
		}
		if env.balance(env.alice, env.mintA) != winnerBefore {
			t.Error("second finalize must move no funds")
		}
	})

	t.Run("loser can still withdraw after settlement", func(t *testing.T) {
		env, auctionID := setup(t)
		if _, err := env.eng.Bid(BidParams{Bidder: env.bob, Auction: auctionID, Price: 300}); err != nil {
			t.Fatalf("bob bid failed: %v", err)
		}
		env.clock.Set(100)
		if _, err := env.eng.Finalize(env.admin, auctionID, env.bob); err != nil {
			t.Fatalf("finalize failed: %v", err)
		}

		// The auction record is gone; alice's withdraw needs no further check.
		refunded, err := env.eng.Withdraw(env.alice, auctionID)
		if err != nil {
			t.Fatalf("post-settlement withdraw failed: %v", err)
		}
		if refunded != 100 {
			t.Errorf("refunded = %d, want 100", refunded)
		}
	})

	t.Run("refunds rent for every closed account", func(t *testing.T) {
		env, auctionID := setup(t)
		env.clock.Set(100)

		sellerBefore := env.native(env.seller)
		aliceBefore := env.native(env.alice)
		if _, err := env.eng.Finalize(env.admin, auctionID, env.alice); err != nil {
			t.Fatalf("finalize failed: %v", err)
		}

		// seller: auction record + vault; bidder: bid state + escrow
		if got := env.native(env.seller); got != sellerBefore+2*ledger.AccountRent {
			t.Errorf("seller rent refund: before=%d after=%d", sellerBefore, got)
		}
		if got := env.native(env.alice); got != aliceBefore+2*ledger.AccountRent {
			t.Errorf("bidder rent refund: before=%d after=%d", aliceBefore, got)
		}
	})
}

func TestCancel(t *testing.T) {
	t.Run("returns the unsold asset after the deadline", func(t *testing.T) {
		env := newTestEnv(t, CutoffAtEnd, 0, 0)
		auctionID := env.listAuction(100, 10, 25, 0)
		env.clock.Set(10)

		returned, err := env.eng.Cancel(env.seller, auctionID)
		if err != nil {
			t.Fatalf("cancel failed: %v", err)
		}
		if returned != 25 {
			t.Errorf("returned = %d, want 25", returned)
		}
		if got := env.balance(env.seller, env.mintA); got != 1000 {
			t.Errorf("seller asset balance = %d, want 1000", got)
		}

		env.l.View(func(tx *ledger.Txn) {
			if tx.HasRecord(auctionID) {
				t.Error("auction record should be closed")
			}
		})
	})

	t.Run("blocked before the deadline", func(t *testing.T) {
		env := newTestEnv(t, CutoffAtEnd, 0, 0)
		auctionID := env.listAuction(100, 10, 25, 0)

		_, err := env.eng.Cancel(env.seller, auctionID)
		if !errors.Is(err, domain.ErrNotEligibleToWithdraw) {
			t.Errorf("err = %v, want ErrNotEligibleToWithdraw", err)
		}
	})

	t.Run("blocked once a bid landed", func(t *testing.T) {
		env := newTestEnv(t, CutoffAtEnd, 0, 0)
		auctionID := env.listAuction(100, 10, 25, 0)
		if _, err := env.eng.Bid(BidParams{Bidder: env.alice, Auction: auctionID, Price: 100}); err != nil {
			t.Fatalf("bid failed: %v", err)
		}
		env.clock.Set(10)

		_, err := env.eng.Cancel(env.seller, auctionID)
		if !errors.Is(err, domain.ErrNotEligibleToWithdraw) {
			t.Errorf("err = %v, want ErrNotEligibleToWithdraw", err)
		}
	})

	t.Run("only the seller may cancel", func(t *testing.T) {
		env := newTestEnv(t, CutoffAtEnd, 0, 0)
		auctionID := env.listAuction(100, 10, 25, 0)
		env.clock.Set(10)

		_, err := env.eng.Cancel(env.bob, auctionID)
		if !errors.Is(err, ledger.ErrUnauthorized) {
			t.Errorf("err = %v, want ErrUnauthorized", err)
		}
	})
}

func TestCrossDecimalSettlement(t *testing.T) {
	// asset A with 6 decimals, asset B with 9, price decimal 1
	env := newTestEnv(t, CutoffAtEnd, 6, 9)
	auctionID := env.listAuction(25, 100, 1000, 1) // 0.001 A at 2.5 B/A

	receipt, err := env.eng.Bid(BidParams{Bidder: env.alice, Auction: auctionID, Price: 25})
	if err != nil {
		t.Fatalf("bid failed: %v", err)
	}
	// floor(1000 * 25 * 10^9 / (10^6 * 10^1)) = 2_500_000
	if receipt.Deposit != 2_500_000 {
		t.Errorf("deposit = %d, want 2500000", receipt.Deposit)
	}

	env.clock.Set(100)
	s, err := env.eng.Finalize(env.admin, auctionID, env.alice)
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if s.SellerAmount+s.HouseFee != receipt.Deposit {
		t.Errorf("conservation: %d + %d != %d", s.SellerAmount, s.HouseFee, receipt.Deposit)
	}
}
