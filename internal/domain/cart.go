package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItemKind distinguishes purchasable parts from bookable labor.
type LineItemKind string

const (
	KindPart  LineItemKind = "part"
	KindLabor LineItemKind = "labor"
)

// Valid reports whether k is a known line item kind.
func (k LineItemKind) Valid() bool {
	return k == KindPart || k == KindLabor
}

// LineItem is a single cart row. ID is opaque and unique within a cart.
type LineItem struct {
	ID            string           `json:"id"`
	Kind          LineItemKind     `json:"kind"`
	Name          string           `json:"name,omitempty"`
	UnitPrice     decimal.Decimal  `json:"unitPrice"`
	Quantity      int              `json:"quantity"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	ShopID        string           `json:"shopId,omitempty"`
	Schedule      *LaborSchedule   `json:"schedule,omitempty"`
}

// LaborSchedule carries booking metadata for labor rows.
type LaborSchedule struct {
	EstimatedMinutes int        `json:"estimatedMinutes,omitempty"`
	ScheduledDate    *time.Time `json:"scheduledDate,omitempty"`
}

// Total returns UnitPrice x Quantity without rounding.
func (li LineItem) Total() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Clone returns a copy that shares no pointers with li.
func (li LineItem) Clone() LineItem {
	out := li
	if li.OriginalPrice != nil {
		orig := *li.OriginalPrice
		out.OriginalPrice = &orig
	}
	if li.Schedule != nil {
		sched := *li.Schedule
		if li.Schedule.ScheduledDate != nil {
			d := *li.Schedule.ScheduledDate
			sched.ScheduledDate = &d
		}
		out.Schedule = &sched
	}
	return out
}

// CloneLineItems deep-copies a slice of line items.
func CloneLineItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}
