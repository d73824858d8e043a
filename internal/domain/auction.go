package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionStatus is the lifecycle state of a quote request.
type AuctionStatus string

const (
	AuctionOpen   AuctionStatus = "Open"
	AuctionClosed AuctionStatus = "Closed"
)

// CloseReason records why an auction closed.
type CloseReason string

const (
	CloseReasonNone     CloseReason = ""
	CloseReasonExpired  CloseReason = "expired"
	CloseReasonAccepted CloseReason = "accepted"
)

// QuoteRequest describes the part or service a buyer wants quoted.
type QuoteRequest struct {
	ID          string        `json:"id"`
	SessionID   string        `json:"-"`
	Description string        `json:"description"`
	Vehicle     string        `json:"vehicle,omitempty"`
	Duration    time.Duration `json:"-"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Bid is a shop's offer against an open quote request.
type Bid struct {
	ID             string          `json:"id"`
	QuoteID        string          `json:"quoteId"`
	ShopID         string          `json:"shopId"`
	ShopName       string          `json:"shopName,omitempty"`
	LaborCost      decimal.Decimal `json:"laborCost"`
	EstimatedTime  string          `json:"estimatedTime,omitempty"`
	Warranty       string          `json:"warranty,omitempty"`
	NextAvailable  *time.Time      `json:"nextAvailable,omitempty"`
	Certifications []string        `json:"certifications,omitempty"`
	SubmittedAt    time.Time       `json:"submittedAt"`
	Accepted       bool            `json:"accepted"`
}

// Clone returns a copy that shares no slices or pointers with b.
func (b Bid) Clone() Bid {
	out := b
	if b.NextAvailable != nil {
		t := *b.NextAvailable
		out.NextAvailable = &t
	}
	if b.Certifications != nil {
		out.Certifications = append([]string(nil), b.Certifications...)
	}
	return out
}

// AuctionView is a consistent read of one auction.
type AuctionView struct {
	Quote         QuoteRequest  `json:"quote"`
	Status        AuctionStatus `json:"status"`
	CloseReason   CloseReason   `json:"closeReason,omitempty"`
	TimeRemaining time.Duration `json:"-"`
	Bids          []Bid         `json:"bids"`
	LowestBidID   string        `json:"lowestBidId,omitempty"`
	AcceptedBidID string        `json:"acceptedBidId,omitempty"`
}
