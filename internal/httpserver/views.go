package httpserver

import (
	"time"

	"github.com/shopspring/decimal"

	"partsmarket/internal/domain"
	"partsmarket/internal/pricing"
	cartsvc "partsmarket/internal/service/cart"
)

// ctMoney renders an amount the way commerce APIs do: integer cents plus
// the rounded decimal string.
type ctMoney struct {
	Type           string `json:"type"`
	CurrencyCode   string `json:"currencyCode"`
	CentAmount     int64  `json:"centAmount"`
	FractionDigits int    `json:"fractionDigits"`
	Amount         string `json:"amount"`
}

func toMoney(currency string, d decimal.Decimal) ctMoney {
	return ctMoney{
		Type:           "centPrecision",
		CurrencyCode:   currency,
		CentAmount:     pricing.Cents(d),
		FractionDigits: pricing.FractionDigits,
		Amount:         pricing.Format(d),
	}
}

type ctLineItem struct {
	ID            string                `json:"id"`
	Kind          domain.LineItemKind   `json:"kind"`
	Name          string                `json:"name,omitempty"`
	ShopID        string                `json:"shopId,omitempty"`
	Price         ctMoney               `json:"price"`
	OriginalPrice *ctMoney              `json:"originalPrice,omitempty"`
	Quantity      int                   `json:"quantity"`
	TotalPrice    ctMoney               `json:"totalPrice"`
	Schedule      *domain.LaborSchedule `json:"schedule,omitempty"`
}

type ctPricing struct {
	PartsSubtotal  ctMoney `json:"partsSubtotal"`
	LaborSubtotal  ctMoney `json:"laborSubtotal"`
	Subtotal       ctMoney `json:"subtotal"`
	ShippingFee    ctMoney `json:"shippingFee"`
	TaxAmount      ctMoney `json:"taxAmount"`
	DiscountAmount ctMoney `json:"discountAmount"`
	GrandTotal     ctMoney `json:"grandTotal"`
	TotalSavings   ctMoney `json:"totalSavings"`
	PromoCode      string  `json:"promoCode,omitempty"`
}

type ctDiscountCode struct {
	Code       string `json:"code"`
	Percentage string `json:"percentage"`
}

type ctCart struct {
	Type                  string           `json:"type"`
	ID                    string           `json:"id"`
	LastModifiedAt        time.Time        `json:"lastModifiedAt"`
	LineItems             []ctLineItem     `json:"lineItems"`
	TotalLineItemQuantity int              `json:"totalLineItemQuantity"`
	DiscountCodes         []ctDiscountCode `json:"discountCodes"`
	TotalPrice            ctMoney          `json:"totalPrice"`
	Pricing               ctPricing        `json:"pricing"`
}

type ctOrder struct {
	Type            string               `json:"type"`
	OrderNumber     string               `json:"orderNumber"`
	CreatedAt       time.Time            `json:"createdAt"`
	LineItems       []ctLineItem         `json:"lineItems"`
	TotalPrice      ctMoney              `json:"totalPrice"`
	Pricing         ctPricing            `json:"pricing"`
	ShippingAddress domain.Address       `json:"shippingAddress"`
	BillingAddress  domain.Address       `json:"billingAddress"`
	Notes           string               `json:"notes,omitempty"`
	PaymentMethod   domain.PaymentMethod `json:"paymentMethod"`
}

type ctBid struct {
	ID             string     `json:"id"`
	ShopID         string     `json:"shopId"`
	ShopName       string     `json:"shopName,omitempty"`
	LaborCost      ctMoney    `json:"laborCost"`
	EstimatedTime  string     `json:"estimatedTime,omitempty"`
	Warranty       string     `json:"warranty,omitempty"`
	NextAvailable  *time.Time `json:"nextAvailable,omitempty"`
	Certifications []string   `json:"certifications"`
	SubmittedAt    time.Time  `json:"submittedAt"`
	Accepted       bool       `json:"accepted"`
	Lowest         bool       `json:"lowest"`
}

type ctQuote struct {
	Type                 string               `json:"type"`
	ID                   string               `json:"id"`
	Description          string               `json:"description"`
	Vehicle              string               `json:"vehicle,omitempty"`
	CreatedAt            time.Time            `json:"createdAt"`
	Status               domain.AuctionStatus `json:"status"`
	CloseReason          domain.CloseReason   `json:"closeReason,omitempty"`
	TimeRemainingSeconds int64                `json:"timeRemainingSeconds"`
	Bids                 []ctBid              `json:"bids"`
	LowestBidID          string               `json:"lowestBidId,omitempty"`
	AcceptedBidID        string               `json:"acceptedBidId,omitempty"`
}

func toCTLineItems(currency string, items []domain.LineItem) []ctLineItem {
	out := make([]ctLineItem, 0, len(items))
	for _, item := range items {
		li := ctLineItem{
			ID:         item.ID,
			Kind:       item.Kind,
			Name:       item.Name,
			ShopID:     item.ShopID,
			Price:      toMoney(currency, item.UnitPrice),
			Quantity:   item.Quantity,
			TotalPrice: toMoney(currency, item.Total()),
			Schedule:   item.Schedule,
		}
		if item.OriginalPrice != nil {
			orig := toMoney(currency, *item.OriginalPrice)
			li.OriginalPrice = &orig
		}
		out = append(out, li)
	}
	return out
}

func toCTPricing(currency string, snap domain.PricingSnapshot) ctPricing {
	return ctPricing{
		PartsSubtotal:  toMoney(currency, snap.PartsSubtotal),
		LaborSubtotal:  toMoney(currency, snap.LaborSubtotal),
		Subtotal:       toMoney(currency, snap.Subtotal),
		ShippingFee:    toMoney(currency, snap.ShippingFee),
		TaxAmount:      toMoney(currency, snap.TaxAmount),
		DiscountAmount: toMoney(currency, snap.DiscountAmount),
		GrandTotal:     toMoney(currency, snap.GrandTotal),
		TotalSavings:   toMoney(currency, snap.TotalSavings),
		PromoCode:      snap.PromoCode,
	}
}

func toCTCart(view cartsvc.View) ctCart {
	codes := []ctDiscountCode{}
	if view.Promo != nil {
		codes = append(codes, ctDiscountCode{Code: view.Promo.Code, Percentage: view.Promo.Percentage.String()})
	}
	return ctCart{
		Type:                  "Cart",
		ID:                    view.ID,
		LastModifiedAt:        view.UpdatedAt,
		LineItems:             toCTLineItems(view.Currency, view.Items),
		TotalLineItemQuantity: view.TotalQuantity,
		DiscountCodes:         codes,
		TotalPrice:            toMoney(view.Currency, view.Pricing.GrandTotal),
		Pricing:               toCTPricing(view.Currency, view.Pricing),
	}
}

func toCTOrder(order domain.Order) ctOrder {
	return ctOrder{
		Type:            "Order",
		OrderNumber:     order.Number,
		CreatedAt:       order.CreatedAt,
		LineItems:       toCTLineItems(order.Currency, order.Items),
		TotalPrice:      toMoney(order.Currency, order.Pricing.GrandTotal),
		Pricing:         toCTPricing(order.Currency, order.Pricing),
		ShippingAddress: order.ShippingAddress,
		BillingAddress:  order.BillingAddress,
		Notes:           order.Notes,
		PaymentMethod:   order.PaymentMethod,
	}
}

func toCTQuote(currency string, view domain.AuctionView) ctQuote {
	bids := make([]ctBid, 0, len(view.Bids))
	for _, b := range view.Bids {
		certs := b.Certifications
		if certs == nil {
			certs = []string{}
		}
		bids = append(bids, ctBid{
			ID:             b.ID,
			ShopID:         b.ShopID,
			ShopName:       b.ShopName,
			LaborCost:      toMoney(currency, b.LaborCost),
			EstimatedTime:  b.EstimatedTime,
			Warranty:       b.Warranty,
			NextAvailable:  b.NextAvailable,
			Certifications: certs,
			SubmittedAt:    b.SubmittedAt,
			Accepted:       b.Accepted,
			Lowest:         b.ID == view.LowestBidID,
		})
	}
	return ctQuote{
		Type:                 "Quote",
		ID:                   view.Quote.ID,
		Description:          view.Quote.Description,
		Vehicle:              view.Quote.Vehicle,
		CreatedAt:            view.Quote.CreatedAt,
		Status:               view.Status,
		CloseReason:          view.CloseReason,
		TimeRemainingSeconds: int64(view.TimeRemaining / time.Second),
		Bids:                 bids,
		LowestBidID:          view.LowestBidID,
		AcceptedBidID:        view.AcceptedBidID,
	}
}
