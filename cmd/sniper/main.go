package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"solana-curve-sniper/internal/config"
	"solana-curve-sniper/internal/curve"
	"solana-curve-sniper/internal/domain"
	"solana-curve-sniper/internal/executor"
	"solana-curve-sniper/internal/filter"
	"solana-curve-sniper/internal/listener"
	"solana-curve-sniper/internal/observability"
	"solana-curve-sniper/internal/position"
	"solana-curve-sniper/internal/solana"
	"solana-curve-sniper/internal/storage"
	chstore "solana-curve-sniper/internal/storage/clickhouse"
	"solana-curve-sniper/internal/storage/migrations"
	pgstore "solana-curve-sniper/internal/storage/postgres"
	"solana-curve-sniper/internal/trader"
	"solana-curve-sniper/internal/wallet"
)

func main() {
	envFile := flag.String("env", ".env", "Path to .env file with endpoints and wallet key")
	flag.Parse()

	logger := log.New(os.Stdout, "[sniper] ", log.LstdFlags)

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		logger.Fatalf("load %s: %v", *envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	secret, err := config.PrivateKey()
	if err != nil {
		logger.Fatalf("wallet: %v", err)
	}
	w, err := wallet.FromBase58(secret)
	if err != nil {
		logger.Fatalf("wallet: %v", err)
	}
	logger.Printf("trading as %s", w)

	// Start metrics server if enabled
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(rw http.ResponseWriter, r *http.Request) {
				rw.WriteHeader(http.StatusOK)
				rw.Write([]byte("ok"))
			})
			logger.Printf("metrics server on %s", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(60 * time.Second):
			logger.Println("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, cfg, w, logger)

	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("error: %v", err)
	}
	logger.Println("shutdown complete")
}

func run(ctx context.Context, cfg config.Config, w *wallet.Wallet, logger *log.Logger) error {
	rpc := solana.NewHTTPClient(cfg.RPCEndpoint,
		solana.WithMaxRPS(cfg.MaxRPS),
		solana.WithCallObserver(func(method string, elapsed time.Duration) {
			observability.RecordRPCLatency(method, elapsed.Seconds())
		}))

	// Ledgers: databases when configured, in-memory otherwise.
	var tradeStore storage.TradeStore = storage.NewMemoryTradeStore()
	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("postgres migrations: %w", err)
		}
		tradeStore = pgstore.NewTradeStore(pool)
		logger.Println("trade ledger: postgres")
	}

	var detectionStore storage.DetectionStore = storage.NewMemoryDetectionStore()
	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return fmt.Errorf("clickhouse migrations: %w", err)
		}
		defer conn.Close()
		detectionStore = chstore.NewDetectionStore(conn)
		logger.Println("detection ledger: clickhouse")
	}

	// One WebSocket connection per subscription. Some providers
	// deduplicate same-program subscriptions on a shared connection.
	var listeners []listener.Listener
	for _, lt := range cfg.ListenerTypes {
		opts := listener.Options{
			GeyserWS: cfg.GeyserEndpoint,
			Logger:   log.New(os.Stdout, "[listener] ", log.LstdFlags),
		}
		if lt == "logs" || lt == "blocks" {
			ws, err := solana.NewWSClient(ctx, cfg.WSSEndpoint, nil)
			if err != nil {
				return fmt.Errorf("connect websocket for %s: %w", lt, err)
			}
			defer ws.Close()
			ws.OnReconnect(observability.RecordWSReconnect)
			opts.WS = ws
		}
		l, err := listener.New(lt, opts)
		if err != nil {
			return err
		}
		listeners = append(listeners, l)
	}

	merger := listener.NewMerger(listeners, meteredSink{detectionStore}, logger)
	merger.OnDuplicate(func(transport domain.Transport, lag time.Duration) {
		observability.RecordDuplicateFolded(string(transport), lag.Seconds())
	})

	builder := executor.NewBuilder(w)
	resolver := executor.NewAccountResolver(rpc, 5, 2*time.Second)
	execCfg := executor.DefaultConfig()
	execCfg.MaxAttempts = cfg.MaxAttempts
	execCfg.BasePriorityFee = cfg.BasePriorityFee
	execCfg.MaxPriorityFee = cfg.MaxPriorityFee
	exec := executor.New(rpc, builder, resolver, execCfg,
		log.New(os.Stdout, "[exec] ", log.LstdFlags))
	exec.OnAttempt(func(a domain.TransactionAttempt) {
		observability.RecordAttempt(a.Operation, string(a.Outcome))
		if a.Outcome == domain.AttemptConfirmed {
			observability.RecordTrade(a.Operation, a.PriorityFee)
		}
	})

	fetcher := curve.NewFetcher(rpc)

	rules := position.DefaultExitRules()
	rules.TakeProfit = cfg.TakeProfit
	rules.StopLoss = cfg.StopLoss
	rules.MaxProgress = cfg.ExitMaxProgress
	rules.MaxHold = cfg.MaxHold
	rules.PollInterval = cfg.PollInterval
	rules.SellSlippage = cfg.SellSlippage
	book := position.NewManager(exec, fetcher, tradeStore, rules,
		log.New(os.Stdout, "[position] ", log.LstdFlags))
	book.OnStatusChange(func(pos domain.Position) {
		switch pos.Status {
		case domain.PositionOpen:
			observability.RecordPositionOpened()
		case domain.PositionClosed:
			observability.RecordPositionClosed(string(pos.ExitReason))
		case domain.PositionFailed:
			observability.RecordPositionFailed(!pos.OpenedAt.IsZero())
		}
	})

	criteria := filter.Criteria{
		MinProgress: cfg.MinCurveProgress,
		MaxProgress: cfg.MaxCurveProgress,
		Match:       cfg.MatchString,
		Creator:     cfg.CreatorAddress,
		MaxTokenAge: cfg.MaxTokenAge,
	}

	pipeline := trader.New(merger, fetcher, exec, book, w, rpc, criteria, trader.Config{
		BuyLamports:       uint64(cfg.BuyAmountSOL * curve.LamportsPerSOL),
		BuySlippage:       cfg.BuySlippage,
		WaitAfterCreation: cfg.WaitAfterCreation,
		MaxPositions:      cfg.MaxPositions,
	}, logger)
	pipeline.OnResult(func(res filter.Result) {
		observability.RecordFilterResult(res.Accepted)
	})

	logger.Printf("listening on %v for new tokens", cfg.ListenerTypes)
	return pipeline.Run(ctx)
}

// meteredSink counts sightings per transport on their way to the
// detection ledger.
type meteredSink struct {
	store storage.DetectionStore
}

func (s meteredSink) RecordDetection(ctx context.Context, rec domain.DetectionRecord) error {
	observability.RecordEventDetected(rec.Transport)
	return s.store.RecordDetection(ctx, rec)
}
