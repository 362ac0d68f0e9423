package sales

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderPlaced  = "OrderPlaced"
	EventOrderRevised = "OrderRevised"
	EventOrderDeleted = "OrderDeleted"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "sales-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	ProductID ID  `json:"product_id"`
	Qty       int `json:"qty"`
}

type OrderEventPayload struct {
	OrderID    ID        `json:"order_id"`
	ClientID   ID        `json:"client_id"`
	Owner      ID        `json:"owner"`
	Status     Status    `json:"status"`
	Items      []ItemQty `json:"items,omitempty"`
	TotalCents int       `json:"total_cents"`
}

func NewOrderEvent(eventType, producer, traceID string, o Order) (Envelope, error) {
	items := make([]ItemQty, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemQty{ProductID: it.ProductID, Qty: it.Qty})
	}
	payload, err := json.Marshal(OrderEventPayload{
		OrderID:    o.ID,
		ClientID:   o.ClientID,
		Owner:      o.Owner,
		Status:     o.Status,
		Items:      items,
		TotalCents: o.TotalCents,
	})
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: o.ID.String(),
		Payload:       payload,
	}, nil
}
