package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"partsmarket/internal/auction"
	"partsmarket/internal/cache"
	"partsmarket/internal/checkout"
	"partsmarket/internal/clients/orderservice"
	"partsmarket/internal/config"
	"partsmarket/internal/db"
	"partsmarket/internal/httpserver"
	"partsmarket/internal/messaging"
	"partsmarket/internal/migrate"
	"partsmarket/internal/pricing"
	orderrepo "partsmarket/internal/repository/order"
	cartsvc "partsmarket/internal/service/cart"
	quotesvc "partsmarket/internal/service/quote"
	sessionsvc "partsmarket/internal/service/session"
)

const sweepInterval = time.Minute

func main() {
	cfg := config.FromEnv()
	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger = logger.Named("api")

	pricingCfg, err := config.LoadPricing(cfg.PricingFile)
	if err != nil {
		logger.Fatal("load pricing", zap.Error(err))
	}
	engine := pricing.NewEngine(pricingCfg)
	promos := pricing.NewResolver(pricingCfg.PromoTable)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	readyChecks := map[string]httpserver.Pinger{}

	var (
		orders  checkout.OrderService
		history orderrepo.Repository
		dbpool  *pgxpool.Pool
	)
	if cfg.OrderServiceURL != "" {
		client := orderservice.NewClient(cfg.OrderServiceURL, cfg.OrderServiceTimeout)
		orders = client
		readyChecks["order_service"] = client
		logger.Info("using remote order service", zap.String("url", cfg.OrderServiceURL))
	} else {
		dbpool, err = db.Connect(ctx, cfg.DBConnString, cfg.DBMaxConns, logger)
		if err != nil {
			logger.Fatal("connect to db", zap.Error(err))
		}
		defer dbpool.Close()
		if err := migrate.Apply(ctx, dbpool, logger); err != nil {
			logger.Fatal("apply migrations", zap.Error(err))
		}
		history = orderrepo.NewPostgres(dbpool)
		orders = history
		readyChecks["postgres"] = dbpool
		logger.Info("using postgres order store")
	}

	var checkoutOpts []checkout.Option
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		lock := cache.NewSubmissionLock(rdb, cfg.CheckoutLockTTL)
		checkoutOpts = append(checkoutOpts, checkout.WithLocker(lock))
		readyChecks["redis"] = lock
		logger.Info("checkout lock enabled", zap.String("redis", cfg.RedisAddr))
	}

	sessions := sessionsvc.New(cfg.SessionTTL)
	orchestrator := checkout.New(orders, engine, logger.Named("checkout"), checkoutOpts...)
	carts := cartsvc.New(sessions, engine, promos, orchestrator, logger.Named("cart"))

	var quoteOpts []quotesvc.Option
	if cfg.SimulateBids {
		simLogger := logger.Named("simulator")
		quoteOpts = append(quoteOpts, quotesvc.WithSimulator(func() *auction.Simulator {
			return auction.NewSimulator(simLogger)
		}))
	}
	quoteOpts = append(quoteOpts, quotesvc.WithRetention(cfg.QuoteRetention))
	quotes := quotesvc.New(cfg.QuoteDuration, logger.Named("quote"), quoteOpts...)

	if cfg.RabbitMQURL != "" {
		pool, err := messaging.Dial(cfg.RabbitMQURL, 4, logger.Named("rabbitmq"), cfg.OrderEventsQueue, cfg.BidFeedQueue)
		if err != nil {
			logger.Fatal("connect to rabbitmq", zap.Error(err))
		}
		defer pool.Close()
		carts.WithEvents(messaging.NewPublisher(pool, cfg.OrderEventsQueue, logger.Named("events")))
		readyChecks["rabbitmq"] = pool

		consumer := messaging.NewBidConsumer(pool.Connection(), cfg.BidFeedQueue, quotes, logger.Named("bids"))
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("bid consumer stopped", zap.Error(err))
			}
		}()
	}

	go sweepSessions(ctx, sessions, quotes, logger)

	deps := httpserver.Deps{
		SessionSvc:     sessions,
		CartSvc:        carts,
		QuoteSvc:       quotes,
		Currency:       engine.Currency(),
		AllowedOrigins: cfg.AllowedOrigins,
		ReadyChecks:    readyChecks,
	}
	if history != nil {
		deps.Orders = history
	}
	srv, err := httpserver.New(cfg.HTTPAddr, logger, deps)
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
	stop()
	if err := quotes.Shutdown(shutdownCtx); err != nil {
		logger.Warn("quote auctions did not stop in time", zap.Error(err))
	}
	logger.Info("server stopped")
}

func sweepSessions(ctx context.Context, sessions *sessionsvc.Service, quotes *quotesvc.Service, logger *zap.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dead := sessions.Sweep(ctx)
			evicted := quotes.DropSessions(dead) + quotes.Sweep()
			if len(dead) > 0 || evicted > 0 {
				logger.Debug("expired state swept",
					zap.Int("sessions", len(dead)),
					zap.Int("quotes", evicted))
			}
		}
	}
}
