package httpserver

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"partsmarket/internal/checkout"
	"partsmarket/internal/domain"
	cartsvc "partsmarket/internal/service/cart"
	quotesvc "partsmarket/internal/service/quote"
)

type handlers struct {
	deps   Deps
	logger *zap.Logger
}

type sessionResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"tokenType"`
	SessionID string `json:"sessionId"`
	ExpiresIn int    `json:"expiresIn"`
}

type bidRequest struct {
	ShopID         string          `json:"shopId"`
	ShopName       string          `json:"shopName"`
	LaborCost      decimal.Decimal `json:"laborCost"`
	EstimatedTime  string          `json:"estimatedTime"`
	Warranty       string          `json:"warranty"`
	NextAvailable  *time.Time      `json:"nextAvailable"`
	Certifications []string        `json:"certifications"`
}

type acceptRequest struct {
	BidID string `json:"bidId"`
}

type listResponse[T any] struct {
	Count   int `json:"count"`
	Results []T `json:"results"`
}

func (h *handlers) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

func (h *handlers) createSession(c *gin.Context) {
	token, id, err := h.deps.SessionSvc.Issue(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionResponse{
		Token:     token,
		TokenType: "Bearer",
		SessionID: id,
		ExpiresIn: h.deps.SessionSvc.AccessTTLSeconds(),
	})
}

func (h *handlers) getCart(c *gin.Context) {
	view := h.deps.CartSvc.Get(c.Request.Context(), sessionID(c))
	c.JSON(http.StatusOK, toCTCart(view))
}

func (h *handlers) updateCart(c *gin.Context) {
	var in cartsvc.UpdateInput
	if !h.bindJSON(c, &in) {
		return
	}
	view, err := h.deps.CartSvc.Update(c.Request.Context(), sessionID(c), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCTCart(view))
}

func (h *handlers) removeLineItem(c *gin.Context) {
	view := h.deps.CartSvc.RemoveLineItem(c.Request.Context(), sessionID(c), c.Param("lineItemID"))
	c.JSON(http.StatusOK, toCTCart(view))
}

func (h *handlers) checkout(c *gin.Context) {
	var in checkout.Input
	if c.Request.ContentLength != 0 {
		if !h.bindJSON(c, &in) {
			return
		}
	}
	if in.IdempotencyKey == "" {
		in.IdempotencyKey = strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	}
	order, err := h.deps.CartSvc.Checkout(c.Request.Context(), sessionID(c), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toCTOrder(*order))
}

func (h *handlers) createQuote(c *gin.Context) {
	var in quotesvc.CreateInput
	if !h.bindJSON(c, &in) {
		return
	}
	view, err := h.deps.QuoteSvc.Create(c.Request.Context(), sessionID(c), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toCTQuote(h.deps.Currency, view))
}

func (h *handlers) listQuotes(c *gin.Context) {
	views, err := h.deps.QuoteSvc.List(c.Request.Context(), sessionID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]ctQuote, 0, len(views))
	for _, v := range views {
		out = append(out, toCTQuote(h.deps.Currency, v))
	}
	c.JSON(http.StatusOK, listResponse[ctQuote]{Count: len(out), Results: out})
}

func (h *handlers) getQuote(c *gin.Context) {
	view, err := h.deps.QuoteSvc.Get(c.Request.Context(), sessionID(c), c.Param("quoteID"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCTQuote(h.deps.Currency, view))
}

func (h *handlers) acceptBid(c *gin.Context) {
	var in acceptRequest
	if !h.bindJSON(c, &in) {
		return
	}
	if strings.TrimSpace(in.BidID) == "" {
		abortWithError(c, http.StatusBadRequest, "invalid_input", "bidId required")
		return
	}
	view, err := h.deps.QuoteSvc.Accept(c.Request.Context(), sessionID(c), c.Param("quoteID"), in.BidID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCTQuote(h.deps.Currency, view))
}

func (h *handlers) submitBid(c *gin.Context) {
	var in bidRequest
	if !h.bindJSON(c, &in) {
		return
	}
	bid, err := h.deps.QuoteSvc.SubmitBid(c.Request.Context(), c.Param("quoteID"), domain.Bid{
		ShopID:         strings.TrimSpace(in.ShopID),
		ShopName:       strings.TrimSpace(in.ShopName),
		LaborCost:      in.LaborCost,
		EstimatedTime:  in.EstimatedTime,
		Warranty:       in.Warranty,
		NextAvailable:  in.NextAvailable,
		Certifications: in.Certifications,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":          bid.ID,
		"quoteId":     bid.QuoteID,
		"submittedAt": bid.SubmittedAt,
		"laborCost":   toMoney(h.deps.Currency, bid.LaborCost),
	})
}

func (h *handlers) listOrders(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}
	orders, err := h.deps.Orders.ListBySession(c.Request.Context(), sessionID(c), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]ctOrder, 0, len(orders))
	for _, o := range orders {
		out = append(out, toCTOrder(o))
	}
	c.JSON(http.StatusOK, listResponse[ctOrder]{Count: len(out), Results: out})
}

func (h *handlers) getOrder(c *gin.Context) {
	order, err := h.deps.Orders.GetByNumber(c.Request.Context(), sessionID(c), c.Param("orderNumber"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCTOrder(*order))
}
