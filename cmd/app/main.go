package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction_go/internal/app"
	"auction_go/internal/engine"
	"auction_go/internal/event"
	"auction_go/internal/infra"
	"auction_go/internal/infra/api"
	"auction_go/internal/infra/feed"
	"auction_go/internal/service"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := bootstrap.Config

	// 4. Event Feed (websocket broadcast, optional)
	var feedServer *feed.Server
	if cfg.Feed.Addr != "" {
		feedServer = feed.NewServer()
	}

	// 5. Sequencer (The Hotpath Loop)
	onApplied := func(ev *event.OperationEvent) {
		rejected := ev.Status == event.StatusRejected
		infra.GlobalMetrics.RecordOp(ev.LatencyNs, rejected)
		if !rejected {
			switch ev.Op {
			case engine.OpBid:
				infra.GlobalMetrics.RecordBid()
			case engine.OpFinalize:
				infra.GlobalMetrics.RecordSettlement()
			case engine.OpWithdraw:
				infra.GlobalMetrics.RecordWithdrawal()
			}
		}
		if feedServer != nil {
			feedServer.Broadcast(ev)
		}
	}

	seq := engine.NewSequencer(cfg.Engine.InboxSize, bootstrap.Engine, bootstrap.Storage, onApplied)
	seq.ResumeFrom(bootstrap.LastSeq)
	go seq.Run(ctx)
	slog.InfoContext(ctx, "sequencer started", slog.Uint64("next_seq", bootstrap.LastSeq+1))

	// 6. HTTP surface: REST API plus the websocket feed on one listener
	var httpServer *http.Server
	if cfg.Feed.Addr != "" {
		svc := service.NewAuctionService(bootstrap.Ledger, bootstrap.Clock)
		apiServer := api.NewServer(seq, svc, bootstrap.Storage, bootstrap.HouseID)

		mux := http.NewServeMux()
		mux.HandleFunc("/feed", feedServer.Handler)
		apiServer.Register(mux)

		httpServer = &http.Server{Addr: cfg.Feed.Addr, Handler: mux}
		go func() {
			slog.Info("http listening", slog.String("addr", cfg.Feed.Addr))
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("http server failed", slog.Any("error", err))
			}
		}()
	}

	// 7. Periodic ledger snapshots
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := bootstrap.Persist(); err != nil {
					slog.Error("snapshot failed", slog.Any("error", err))
				}
			}
		}
	}()

	slog.InfoContext(ctx, "auction daemon operational",
		slog.String("house", bootstrap.HouseID.String()),
		slog.String("cutoff", cfg.Engine.BidCutoff))

	// Wait for shutdown signal
	<-ctx.Done()

	slog.Info("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if httpServer != nil {
		httpServer.Shutdown(shutdownCtx)
		feedServer.Shutdown(shutdownCtx)
	}
	if err := bootstrap.Persist(); err != nil {
		slog.Error("final snapshot failed", slog.Any("error", err))
	}
}
