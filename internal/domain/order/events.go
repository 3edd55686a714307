package order

import "time"

// CreatedEvent is emitted after an order and its stock decrements have
// been durably committed. It never precedes the commit.
type CreatedEvent struct {
	OrderID     string
	StoreID     string
	TotalAmount string
	ItemCount   int
	OccurredAt  time.Time
}

func (CreatedEvent) EventName() string { return "order.created" }

func NewCreatedEvent(o *Order) CreatedEvent {
	return CreatedEvent{
		OrderID:     o.ID,
		StoreID:     o.StoreID,
		TotalAmount: o.TotalAmount.String(),
		ItemCount:   len(o.Items),
		OccurredAt:  time.Now().UTC(),
	}
}
