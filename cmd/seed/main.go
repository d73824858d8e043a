package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"go.uber.org/zap"

	"partsmarket/internal/config"
	"partsmarket/internal/messaging"
	"partsmarket/internal/seed"
)

func main() {
	quoteID := flag.String("quote", "", "quote id to bid on")
	flag.Parse()

	cfg := config.FromEnv()
	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger = logger.Named("seed")

	if *quoteID == "" {
		logger.Fatal("-quote is required")
	}
	if cfg.RabbitMQURL == "" {
		logger.Fatal("RABBITMQ_URL is not set")
	}

	pool, err := messaging.Dial(cfg.RabbitMQURL, 1, logger, cfg.BidFeedQueue)
	if err != nil {
		logger.Fatal("connect rabbitmq", zap.Error(err))
	}
	defer pool.Close()

	pub := messaging.NewPublisher(pool, cfg.BidFeedQueue, logger)
	ctx := context.Background()
	bids := seed.Bids(*quoteID, nil, rand.New(rand.NewSource(time.Now().UnixNano())))
	for _, b := range bids {
		if err := pub.PublishBid(ctx, b); err != nil {
			logger.Fatal("publish bid", zap.String("shop_id", b.ShopID), zap.Error(err))
		}
	}

	logger.Info("bids published", zap.Int("count", len(bids)), zap.String("quote_id", *quoteID))
}
