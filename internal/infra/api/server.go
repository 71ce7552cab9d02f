// Package api exposes the auction operations over HTTP. Mutations are JSON
// POSTs that land in the sequencer inbox; reads go straight to the query
// service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"auction_go/internal/domain"
	"auction_go/internal/engine"
	"auction_go/internal/infra"
	"auction_go/internal/infra/storage"
	"auction_go/internal/ledger"
	"auction_go/internal/service"
)

// Submitter is the write path into the sequencer.
type Submitter interface {
	Submit(ctx context.Context, req *engine.Request) (engine.Result, error)
}

// Server routes auction requests. All mutating handlers resolve through the
// sequencer, so HTTP concurrency never races the engine.
type Server struct {
	seq     Submitter
	svc     *service.AuctionService
	store   *storage.Storage
	houseID ledger.AccountID
}

func NewServer(seq Submitter, svc *service.AuctionService, store *storage.Storage, houseID ledger.AccountID) *Server {
	return &Server{seq: seq, svc: svc, store: store, houseID: houseID}
}

// Register installs all routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/house", s.handleGetHouse)
	mux.HandleFunc("GET /v1/auctions", s.handleListAuctions)
	mux.HandleFunc("POST /v1/auctions", s.handleInitAuction)
	mux.HandleFunc("GET /v1/auctions/{id}", s.handleGetAuction)
	mux.HandleFunc("GET /v1/auctions/{id}/bids", s.handleListBids)
	mux.HandleFunc("GET /v1/auctions/{id}/bids/{bidder}", s.handleGetBid)
	mux.HandleFunc("POST /v1/auctions/{id}/bids", s.handleBid)
	mux.HandleFunc("POST /v1/auctions/{id}/withdraw", s.handleWithdraw)
	mux.HandleFunc("POST /v1/auctions/{id}/finalize", s.handleFinalize)
	mux.HandleFunc("POST /v1/auctions/{id}/cancel", s.handleCancel)
	mux.HandleFunc("GET /v1/ops", s.handleRecentOps)
	mux.HandleFunc("GET /v1/metrics", s.handleMetrics)
}

type errorBody struct {
	Error string `json:"error"`
}

type opResponse struct {
	Seq     uint64 `json:"seq"`
	Account string `json:"account"`
	Amount  uint64 `json:"amount,omitempty"`
	Fee     uint64 `json:"fee,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encode failed", slog.Any("error", err))
	}
}

// writeError maps engine failures onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrAccountExists):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInsufficientRent),
		errors.Is(err, ledger.ErrVaultNotEmpty):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrUnauthorized),
		errors.Is(err, domain.ErrNotEligibleToWithdraw):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrPriceTooLow),
		errors.Is(err, domain.ErrAuctionEnded),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidFormat),
		errors.Is(err, domain.ErrNameTooLong),
		errors.Is(err, domain.ErrArithmeticOverflow),
		errors.Is(err, ledger.ErrMintMismatch),
		errors.Is(err, ledger.ErrSelfTransfer):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (ledger.AccountID, bool) {
	id, err := ledger.ParseAccountID(r.PathValue(name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed account ID: " + r.PathValue(name)})
		return ledger.ZeroID, false
	}
	return id, true
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, req *engine.Request) {
	res, err := s.seq.Submit(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, opResponse{
		Seq:     res.Seq,
		Account: res.Account.String(),
		Amount:  res.Amount,
		Fee:     res.Fee,
	})
}

// ======================================================================================
// Reads
// ======================================================================================

func (s *Server) handleGetHouse(w http.ResponseWriter, r *http.Request) {
	h, err := s.svc.GetHouse(s.houseID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleListAuctions(w http.ResponseWriter, r *http.Request) {
	views, err := s.svc.ListAuctions()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetAuction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	v, err := s.svc.GetAuction(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleListBids(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	views, err := s.svc.ListBids(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetBid(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	bidder, ok := pathID(w, r, "bidder")
	if !ok {
		return
	}
	v, err := s.svc.GetBid(id, bidder)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleRecentOps(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v <= 0 || v > 1000 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be 1..1000"})
			return
		}
		limit = v
	}
	rows, err := s.store.RecentOps(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, infra.GlobalMetrics.GetSnapshot())
}

// ======================================================================================
// Mutations
// ======================================================================================

type initAuctionBody struct {
	Seller        ledger.AccountID `json:"seller"`
	MintA         ledger.AccountID `json:"mint_a"`
	MintB         ledger.AccountID `json:"mint_b"`
	Funding       ledger.AccountID `json:"funding,omitempty"`
	StartingPrice uint64           `json:"starting_price"`
	End           uint64           `json:"end"`
	Amount        uint64           `json:"amount,omitempty"`
	AmountStr     string           `json:"amount_str,omitempty"` // human units, e.g. "12.34"
	Decimal       uint8            `json:"decimal"`
}

func (s *Server) handleInitAuction(w http.ResponseWriter, r *http.Request) {
	var body initAuctionBody
	if !decodeBody(w, r, &body) {
		return
	}

	amount := body.Amount
	if body.AmountStr != "" {
		mint, err := s.svc.GetMint(body.MintA)
		if err != nil {
			writeError(w, err)
			return
		}
		amount, err = domain.ParseAmount(body.AmountStr, mint.Decimals)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	s.submit(w, r, &engine.Request{
		Kind: engine.OpInitAuction,
		InitAuction: &engine.InitAuctionParams{
			Seller:        body.Seller,
			House:         s.houseID,
			MintA:         body.MintA,
			MintB:         body.MintB,
			SellerFunding: body.Funding,
			StartingPrice: body.StartingPrice,
			End:           body.End,
			Amount:        amount,
			Decimal:       body.Decimal,
		},
	})
}

type bidBody struct {
	Bidder   ledger.AccountID `json:"bidder"`
	Funding  ledger.AccountID `json:"funding,omitempty"`
	Price    uint64           `json:"price,omitempty"`
	PriceStr string           `json:"price_str,omitempty"` // human units, scaled by the auction's decimal
}

func (s *Server) handleBid(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body bidBody
	if !decodeBody(w, r, &body) {
		return
	}

	price := body.Price
	if body.PriceStr != "" {
		v, err := s.svc.GetAuction(auctionID)
		if err != nil {
			writeError(w, err)
			return
		}
		price, err = domain.ParseAmount(body.PriceStr, v.Decimal)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	s.submit(w, r, &engine.Request{
		Kind: engine.OpBid,
		Bid: &engine.BidParams{
			Bidder:  body.Bidder,
			Auction: auctionID,
			Funding: body.Funding,
			Price:   price,
		},
	})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Bidder ledger.AccountID `json:"bidder"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.submit(w, r, &engine.Request{
		Kind:     engine.OpWithdraw,
		Withdraw: &engine.WithdrawRequest{Bidder: body.Bidder, Auction: auctionID},
	})
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Payer  ledger.AccountID `json:"payer"`
		Bidder ledger.AccountID `json:"bidder"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.submit(w, r, &engine.Request{
		Kind:     engine.OpFinalize,
		Finalize: &engine.FinalizeRequest{Payer: body.Payer, Auction: auctionID, Bidder: body.Bidder},
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Seller ledger.AccountID `json:"seller"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.submit(w, r, &engine.Request{
		Kind:   engine.OpCancel,
		Cancel: &engine.CancelRequest{Seller: body.Seller, Auction: auctionID},
	})
}
