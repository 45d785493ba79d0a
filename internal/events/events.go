package events

// Billing event types emitted after successful synchronization.
const (
	EventSubscriptionSynced = "subscription.synced"
	EventCatalogSynced      = "catalog.synced"
)

// SubscriptionSyncedPayload captures the minimal data downstream consumers
// need to react to a subscription change.
type SubscriptionSyncedPayload struct {
	PolarSubscriptionID string `json:"polar_subscription_id"`
	UserID              string `json:"user_id,omitempty"`
	Status              string `json:"status,omitempty"`
}

// ToMap converts the payload into an outbox-friendly map.
func (p SubscriptionSyncedPayload) ToMap() map[string]any {
	payload := map[string]any{
		"polar_subscription_id": p.PolarSubscriptionID,
	}
	if p.UserID != "" {
		payload["user_id"] = p.UserID
	}
	if p.Status != "" {
		payload["status"] = p.Status
	}
	return payload
}

// CatalogSyncedPayload identifies the mirrored product.
type CatalogSyncedPayload struct {
	PolarProductID string `json:"polar_product_id"`
}

// ToMap converts the payload into an outbox-friendly map.
func (p CatalogSyncedPayload) ToMap() map[string]any {
	return map[string]any{"polar_product_id": p.PolarProductID}
}
