package models

import "time"

// Event types published to the integration bus after local state changes.
const (
	EventTypeOrderPending          = "ORDER_PENDING"
	EventTypeOrderCompleted        = "ORDER_COMPLETED"
	EventTypeOrderFailed           = "ORDER_FAILED"
	EventTypeSubscriptionPending   = "SUBSCRIPTION_PENDING"
	EventTypeSubscriptionActivated = "SUBSCRIPTION_ACTIVATED"
	EventTypeSubscriptionCanceled  = "SUBSCRIPTION_CANCELED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPendingEvent published when checkout opens a payment intent and the
// order is persisted in its pending state.
type OrderPendingEvent struct {
	BaseEvent
	OrderID         string          `json:"order_id"`
	StoreID         string          `json:"store_id"`
	PaymentIntentID string          `json:"payment_intent_id"`
	TotalAmount     string          `json:"total_amount"`
	Currency        string          `json:"currency"`
	Items           []OrderItemData `json:"items"`
}

// OrderCompletedEvent published when the reconciler confirms payment.
type OrderCompletedEvent struct {
	BaseEvent
	PaymentIntentID string `json:"payment_intent_id"`
	StoreID         string `json:"store_id"`
}

// OrderFailedEvent published when the reconciler records a failed payment.
type OrderFailedEvent struct {
	BaseEvent
	PaymentIntentID string `json:"payment_intent_id"`
	StoreID         string `json:"store_id"`
}

// SubscriptionPendingEvent published when a subscription is initiated.
type SubscriptionPendingEvent struct {
	BaseEvent
	StoreID string `json:"store_id"`
	UserID  string `json:"user_id"`
	PlanID  string `json:"plan_id"`
}

// SubscriptionActivatedEvent published when the reconciler flips a
// subscription to active and upgrades the store plan.
type SubscriptionActivatedEvent struct {
	BaseEvent
	StoreID              string `json:"store_id"`
	StripeSubscriptionID string `json:"stripe_subscription_id"`
}

// SubscriptionCanceledEvent published when the reconciler cancels a
// subscription and downgrades the store plan.
type SubscriptionCanceledEvent struct {
	BaseEvent
	StoreID              string `json:"store_id"`
	StripeSubscriptionID string `json:"stripe_subscription_id"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
}
