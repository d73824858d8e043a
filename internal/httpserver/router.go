package httpserver

import (
	"context"
	"errors"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"partsmarket/internal/checkout"
	"partsmarket/internal/domain"
	cartsvc "partsmarket/internal/service/cart"
	quotesvc "partsmarket/internal/service/quote"
)

type sessionService interface {
	Issue(ctx context.Context) (token, sessionID string, err error)
	LookupByToken(ctx context.Context, token string) (string, error)
	AccessTTLSeconds() int
}

type cartService interface {
	Get(ctx context.Context, sessionID string) cartsvc.View
	Update(ctx context.Context, sessionID string, in cartsvc.UpdateInput) (cartsvc.View, error)
	RemoveLineItem(ctx context.Context, sessionID, lineItemID string) cartsvc.View
	Checkout(ctx context.Context, sessionID string, in checkout.Input) (*domain.Order, error)
}

type quoteService interface {
	Create(ctx context.Context, sessionID string, in quotesvc.CreateInput) (domain.AuctionView, error)
	Get(ctx context.Context, sessionID, quoteID string) (domain.AuctionView, error)
	List(ctx context.Context, sessionID string) ([]domain.AuctionView, error)
	SubmitBid(ctx context.Context, quoteID string, bid domain.Bid) (domain.Bid, error)
	Accept(ctx context.Context, sessionID, quoteID, bidID string) (domain.AuctionView, error)
}

type orderHistory interface {
	GetByNumber(ctx context.Context, sessionID, number string) (*domain.Order, error)
	ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.Order, error)
}

// Deps carries the services behind the API. Orders is optional; the order
// history routes are only mounted when it is set.
type Deps struct {
	SessionSvc     sessionService
	CartSvc        cartService
	QuoteSvc       quoteService
	Orders         orderHistory
	Currency       string
	AllowedOrigins []string
	ReadyChecks    map[string]Pinger
}

func (d Deps) validate() error {
	switch {
	case d.SessionSvc == nil:
		return errors.New("session service required")
	case d.CartSvc == nil:
		return errors.New("cart service required")
	case d.QuoteSvc == nil:
		return errors.New("quote service required")
	}
	return nil
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, deps Deps) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Currency == "" {
		deps.Currency = "USD"
	}

	router := gin.New()
	router.Use(gin.LoggerWithWriter(zap.NewStdLog(logger).Writer()), gin.Recovery())
	router.Use(cors.New(corsConfig(deps.AllowedOrigins)))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.ReadyChecks, logger))

	h := &handlers{deps: deps, logger: logger}

	router.POST("/sessions", h.createSession)
	router.POST("/quotes/:quoteID/bids", h.submitBid)

	me := router.Group("/me", sessionMiddleware(deps.SessionSvc))
	me.GET("/cart", h.getCart)
	me.POST("/cart", h.updateCart)
	me.DELETE("/cart/line-items/:lineItemID", h.removeLineItem)
	me.POST("/checkout", h.checkout)

	me.POST("/quotes", h.createQuote)
	me.GET("/quotes", h.listQuotes)
	me.GET("/quotes/:quoteID", h.getQuote)
	me.POST("/quotes/:quoteID/accept", h.acceptBid)

	if deps.Orders != nil {
		me.GET("/orders", h.listOrders)
		me.GET("/orders/:orderNumber", h.getOrder)
	}

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", "Idempotency-Key")
	cfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
