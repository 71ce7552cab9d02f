package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"auction_go/internal/event"
	"auction_go/internal/ledger"
)

// Store persists the applied-operation log (WAL).
type Store interface {
	SaveOp(ctx context.Context, ev *event.OperationEvent) error
}

// Request is one operation submitted to the sequencer. Exactly one of the
// param pointers matching Kind must be set. Reply, if non-nil, receives the
// result; it must be buffered or drained by the submitter.
type Request struct {
	Kind        string
	InitHouse   *InitHouseRequest
	InitAuction *InitAuctionParams
	Bid         *BidParams
	Withdraw    *WithdrawRequest
	Finalize    *FinalizeRequest
	Cancel      *CancelRequest
	Reply       chan Result
}

type InitHouseRequest struct {
	Admin  ledger.AccountID
	FeeBps uint16
	Name   string
}

type WithdrawRequest struct {
	Bidder  ledger.AccountID
	Auction ledger.AccountID
}

type FinalizeRequest struct {
	Payer   ledger.AccountID
	Auction ledger.AccountID
	Bidder  ledger.AccountID
}

type CancelRequest struct {
	Seller  ledger.AccountID
	Auction ledger.AccountID
}

// Result reports one processed operation back to its submitter.
type Result struct {
	Seq     uint64
	Account ledger.AccountID // primary account touched (house/auction/bid state)
	Amount  uint64           // funds moved (deposit, refund, winner payout)
	Fee     uint64           // house fee, finalize only
	Err     error
}

// Operation kinds accepted by the sequencer.
const (
	OpInitHouse   = "init_house"
	OpInitAuction = "init_auction"
	OpBid         = "bid"
	OpWithdraw    = "withdraw"
	OpFinalize    = "finalize"
	OpCancel      = "cancel"
)

// Sequencer is the single-threaded operation processor: requests from any
// number of submitters drain through one goroutine, so racing bids are
// serialized and the loser fails its price check against post-serialization
// state. Applied operations are logged to the Store before the next request
// is admitted.
type Sequencer struct {
	inbox   chan *Request
	engine  *Engine
	store   Store
	nextSeq uint64

	// Boundary: used to notify the feed or other systems of applied ops
	onApplied func(*event.OperationEvent)
}

// NewSequencer creates a sequencer over the engine. store and onApplied may
// be nil.
func NewSequencer(inboxSize int, eng *Engine, store Store, onApplied func(*event.OperationEvent)) *Sequencer {
	return &Sequencer{
		inbox:     make(chan *Request, inboxSize),
		engine:    eng,
		store:     store,
		nextSeq:   1,
		onApplied: onApplied,
	}
}

// ResumeFrom sets the sequence counter to continue after lastSeq. Call
// before Run when restoring from a persisted log.
func (s *Sequencer) ResumeFrom(lastSeq uint64) {
	s.nextSeq = lastSeq + 1
}

// Inbox returns the request channel. Submitters send requests here.
func (s *Sequencer) Inbox() chan<- *Request {
	return s.inbox
}

// Submit sends a request and waits for its result.
func (s *Sequencer) Submit(ctx context.Context, req *Request) (Result, error) {
	req.Reply = make(chan Result, 1)
	select {
	case s.inbox <- req:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	select {
	case res := <-req.Reply:
		return res, res.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Run starts the main loop. This MUST be run in a single goroutine.
func (s *Sequencer) Run(ctx context.Context) {
	slog.Info("sequencer started")

	for {
		select {
		case <-ctx.Done():
			slog.Info("sequencer stopping...")
			return
		case req := <-s.inbox:
			s.process(ctx, req)
		}
	}
}

func (s *Sequencer) process(ctx context.Context, req *Request) {
	start := time.Now()
	res := s.dispatch(req)
	res.Seq = s.nextSeq

	ev := event.AcquireOperationEvent()
	ev.Seq = res.Seq
	ev.Ts = start.UnixMicro()
	ev.LatencyNs = time.Since(start).Nanoseconds()
	ev.Op = req.Kind
	ev.Account = res.Account.String()
	ev.Actor = requestActor(req).String()
	ev.Amount = res.Amount
	ev.Fee = res.Fee
	if res.Err != nil {
		ev.Status = event.StatusRejected
		ev.Error = res.Err.Error()
	} else {
		ev.Status = event.StatusApplied
	}

	// WAL: the log entry lands before the next request is admitted. A dead
	// store means a ledger we can no longer reconstruct, so halt.
	if s.store != nil {
		if err := s.store.SaveOp(ctx, ev); err != nil {
			panic(fmt.Sprintf("PERSISTENCE_FAILURE: %v", err))
		}
	}

	if s.onApplied != nil {
		s.onApplied(ev)
	}
	event.ReleaseOperationEvent(ev)

	s.nextSeq++

	if req.Reply != nil {
		req.Reply <- res
	}
}

func (s *Sequencer) dispatch(req *Request) Result {
	switch req.Kind {
	case OpInitHouse:
		if req.InitHouse == nil {
			return Result{Err: errMissingParams(req.Kind)}
		}
		id, err := s.engine.InitHouse(req.InitHouse.Admin, req.InitHouse.FeeBps, req.InitHouse.Name)
		return Result{Account: id, Err: err}

	case OpInitAuction:
		if req.InitAuction == nil {
			return Result{Err: errMissingParams(req.Kind)}
		}
		id, err := s.engine.InitAuction(*req.InitAuction)
		return Result{Account: id, Amount: req.InitAuction.Amount, Err: err}

	case OpBid:
		if req.Bid == nil {
			return Result{Err: errMissingParams(req.Kind)}
		}
		receipt, err := s.engine.Bid(*req.Bid)
		return Result{Account: receipt.BidState, Amount: receipt.Deposit, Err: err}

	case OpWithdraw:
		if req.Withdraw == nil {
			return Result{Err: errMissingParams(req.Kind)}
		}
		refunded, err := s.engine.Withdraw(req.Withdraw.Bidder, req.Withdraw.Auction)
		return Result{Account: req.Withdraw.Auction, Amount: refunded, Err: err}

	case OpFinalize:
		if req.Finalize == nil {
			return Result{Err: errMissingParams(req.Kind)}
		}
		settlement, err := s.engine.Finalize(req.Finalize.Payer, req.Finalize.Auction, req.Finalize.Bidder)
		return Result{
			Account: req.Finalize.Auction,
			Amount:  settlement.WinnerAmount,
			Fee:     settlement.HouseFee,
			Err:     err,
		}

	case OpCancel:
		if req.Cancel == nil {
			return Result{Err: errMissingParams(req.Kind)}
		}
		returned, err := s.engine.Cancel(req.Cancel.Seller, req.Cancel.Auction)
		return Result{Account: req.Cancel.Auction, Amount: returned, Err: err}

	default:
		return Result{Err: errors.New("unknown operation kind: " + req.Kind)}
	}
}

func requestActor(req *Request) ledger.AccountID {
	switch req.Kind {
	case OpInitHouse:
		if req.InitHouse != nil {
			return req.InitHouse.Admin
		}
	case OpInitAuction:
		if req.InitAuction != nil {
			return req.InitAuction.Seller
		}
	case OpBid:
		if req.Bid != nil {
			return req.Bid.Bidder
		}
	case OpWithdraw:
		if req.Withdraw != nil {
			return req.Withdraw.Bidder
		}
	case OpFinalize:
		if req.Finalize != nil {
			return req.Finalize.Payer
		}
	case OpCancel:
		if req.Cancel != nil {
			return req.Cancel.Seller
		}
	}
	return ledger.ZeroID
}

func errMissingParams(kind string) error {
	return errors.New("missing params for " + kind)
}
