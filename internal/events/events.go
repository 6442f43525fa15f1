package events

import "context"

const (
	OrderCreated       = "order.created"
	OrderStatusChanged = "order.status_changed"
)

// Publisher delivers domain events after the originating transaction commits.
type Publisher interface {
	Publish(ctx context.Context, pattern string, data any) error
}

// OrderEvent is the payload of every order.* event.
type OrderEvent struct {
	OrderID    int64  `json:"order_id"`
	CustomerID int64  `json:"customer_id"`
	Status     string `json:"status"`
	Previous   string `json:"previous_status,omitempty"`
	Total      string `json:"total"`
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }
