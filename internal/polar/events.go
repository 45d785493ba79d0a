package polar

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Webhook event types consumed by the sync engine. Everything else the
// platform sends is acknowledged and ignored.
const (
	EventProductCreated = "product.created"
	EventProductUpdated = "product.updated"

	EventSubscriptionCreated    = "subscription.created"
	EventSubscriptionUpdated    = "subscription.updated"
	EventSubscriptionActive     = "subscription.active"
	EventSubscriptionCanceled   = "subscription.canceled"
	EventSubscriptionUncanceled = "subscription.uncanceled"
	EventSubscriptionRevoked    = "subscription.revoked"
)

// Price billing types.
const (
	PriceTypeRecurring = "recurring"
	PriceTypeOneTime   = "one_time"
)

var (
	ErrInvalidEnvelope   = errors.New("invalid_envelope")
	ErrMissingProductID  = errors.New("missing_product_id")
	ErrMissingPriceID    = errors.New("missing_price_id")
	ErrMissingEventID    = errors.New("missing_subscription_id")
	ErrMissingStatus     = errors.New("missing_status")
	ErrMissingCustomerID = errors.New("missing_customer_id")
	ErrMissingPriceType  = errors.New("missing_price_type")
)

// Envelope is the outer webhook payload: a type tag plus the event body.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ParseEnvelope decodes and validates the outer webhook payload.
func ParseEnvelope(payload []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, ErrInvalidEnvelope
	}
	env.Type = strings.TrimSpace(env.Type)
	if env.Type == "" || len(env.Data) == 0 {
		return nil, ErrInvalidEnvelope
	}
	return &env, nil
}

// IsProductEvent reports whether the event type mutates the catalog mirror.
func (e *Envelope) IsProductEvent() bool {
	switch e.Type {
	case EventProductCreated, EventProductUpdated:
		return true
	}
	return false
}

// IsSubscriptionEvent reports whether the event type drives reconciliation.
func (e *Envelope) IsSubscriptionEvent() bool {
	switch e.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionActive,
		EventSubscriptionCanceled, EventSubscriptionUncanceled, EventSubscriptionRevoked:
		return true
	}
	return false
}

// Media is an uploaded product asset.
type Media struct {
	PublicURL string `json:"public_url"`
}

// ProductSnapshot is the product shape carried by catalog and subscription
// events.
type ProductSnapshot struct {
	ID          string         `json:"id"`
	IsArchived  bool           `json:"is_archived"`
	Name        string         `json:"name"`
	Description *string        `json:"description"`
	Medias      []Media        `json:"medias"`
	Metadata    map[string]any `json:"metadata"`
}

// PriceSnapshot is the price shape carried by catalog and subscription
// events. PriceAmount is nil for free and pay-what-you-want pricing.
type PriceSnapshot struct {
	ID                string         `json:"id"`
	AmountType        string         `json:"amount_type"`
	PriceAmount       *int64         `json:"price_amount"`
	Type              string         `json:"type"`
	RecurringInterval *string        `json:"recurring_interval"`
	Metadata          map[string]any `json:"metadata"`
}

// ProductEvent is a catalog change: the product plus its full price list.
type ProductEvent struct {
	ProductSnapshot
	Prices []PriceSnapshot `json:"prices"`
}

// ParseProductEvent decodes and validates a catalog event body.
func ParseProductEvent(data json.RawMessage) (*ProductEvent, error) {
	var event ProductEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, ErrInvalidEnvelope
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return &event, nil
}

func (e *ProductEvent) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return ErrMissingProductID
	}
	for _, price := range e.Prices {
		if strings.TrimSpace(price.ID) == "" {
			return ErrMissingPriceID
		}
		if price.Type != PriceTypeRecurring && price.Type != PriceTypeOneTime {
			return ErrMissingPriceType
		}
	}
	return nil
}

// EventCustomer is the customer block embedded in subscription events.
type EventCustomer struct {
	ID         string         `json:"id"`
	Email      string         `json:"email"`
	ExternalID string         `json:"external_id"`
	Metadata   map[string]any `json:"metadata"`
}

// CustomerHints are the identity fields a subscription event may expose for
// mapping the remote customer back to a local user. Each field is optional;
// the reconciler walks them in order.
type CustomerHints struct {
	RemoteID   string // the platform's customer id, always present
	UserID     string // local user id carried in customer metadata
	ExternalID string // external reference, set to the local user id at creation
	Email      string
}

// Hints extracts the identity hints from the customer block. Metadata is
// probed here and nowhere else; "user_id" is the key this engine writes,
// "supabaseUUID" is accepted for customers created by earlier clients.
func (c EventCustomer) Hints() CustomerHints {
	hints := CustomerHints{
		RemoteID:   strings.TrimSpace(c.ID),
		ExternalID: strings.TrimSpace(c.ExternalID),
		Email:      strings.TrimSpace(c.Email),
	}
	for _, key := range []string{"user_id", "supabaseUUID"} {
		if raw, ok := c.Metadata[key]; ok {
			if value, ok := raw.(string); ok && strings.TrimSpace(value) != "" {
				hints.UserID = strings.TrimSpace(value)
				break
			}
		}
	}
	return hints
}

// HintsFromCustomer extracts the same identity hints from a customer fetched
// live from the platform.
func HintsFromCustomer(customer *Customer) CustomerHints {
	if customer == nil {
		return CustomerHints{}
	}
	return EventCustomer{
		ID:         customer.ID,
		Email:      customer.Email,
		ExternalID: customer.ExternalID,
		Metadata:   customer.Metadata,
	}.Hints()
}

// SubscriptionEvent is a subscription lifecycle event. Product and price
// snapshots are optional; when present they allow on-the-fly catalog repair.
type SubscriptionEvent struct {
	ID                 string           `json:"id"`
	Status             string           `json:"status"`
	CancelAtPeriodEnd  bool             `json:"cancel_at_period_end"`
	CurrentPeriodStart *time.Time       `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time       `json:"current_period_end"`
	Product            *ProductSnapshot `json:"product"`
	Price              *PriceSnapshot   `json:"price"`
	Prices             []PriceSnapshot  `json:"prices"`
	Customer           EventCustomer    `json:"customer"`
}

// ParseSubscriptionEvent decodes and validates a subscription event body.
func ParseSubscriptionEvent(data json.RawMessage) (*SubscriptionEvent, error) {
	var event SubscriptionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, ErrInvalidEnvelope
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return &event, nil
}

func (e *SubscriptionEvent) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return ErrMissingEventID
	}
	if strings.TrimSpace(e.Status) == "" {
		return ErrMissingStatus
	}
	if strings.TrimSpace(e.Customer.ID) == "" {
		return ErrMissingCustomerID
	}
	return nil
}

// PriceSnapshotForSync returns the price this subscription references: the
// singular price when set, otherwise the first of the price list.
func (e *SubscriptionEvent) PriceSnapshotForSync() *PriceSnapshot {
	if e.Price != nil && strings.TrimSpace(e.Price.ID) != "" {
		return e.Price
	}
	if len(e.Prices) > 0 && strings.TrimSpace(e.Prices[0].ID) != "" {
		return &e.Prices[0]
	}
	return nil
}

// ProductID returns the referenced product id, empty when no snapshot was
// delivered.
func (e *SubscriptionEvent) ProductID() string {
	if e.Product == nil {
		return ""
	}
	return strings.TrimSpace(e.Product.ID)
}
