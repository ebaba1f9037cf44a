package broker

import (
	"context"
	"fmt"

	"storefront-service/internal/models"
)

// EventPublisher publishes order and subscription lifecycle events for
// downstream consumers (analytics, merchant notifications). Publishing is
// best effort; local state is committed before any event leaves the process.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderPending publishes OrderPending event
func (ep *EventPublisher) PublishOrderPending(ctx context.Context, event *models.OrderPendingEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderCompleted publishes OrderCompleted event
func (ep *EventPublisher) PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	return ep.producer.PublishEvent(ctx, intentKey(event.PaymentIntentID), event)
}

// PublishOrderFailed publishes OrderFailed event
func (ep *EventPublisher) PublishOrderFailed(ctx context.Context, event *models.OrderFailedEvent) error {
	return ep.producer.PublishEvent(ctx, intentKey(event.PaymentIntentID), event)
}

// PublishSubscriptionPending publishes SubscriptionPending event
func (ep *EventPublisher) PublishSubscriptionPending(ctx context.Context, event *models.SubscriptionPendingEvent) error {
	return ep.producer.PublishEvent(ctx, storeKey(event.StoreID), event)
}

// PublishSubscriptionActivated publishes SubscriptionActivated event
func (ep *EventPublisher) PublishSubscriptionActivated(ctx context.Context, event *models.SubscriptionActivatedEvent) error {
	return ep.producer.PublishEvent(ctx, storeKey(event.StoreID), event)
}

// PublishSubscriptionCanceled publishes SubscriptionCanceled event
func (ep *EventPublisher) PublishSubscriptionCanceled(ctx context.Context, event *models.SubscriptionCanceledEvent) error {
	return ep.producer.PublishEvent(ctx, storeKey(event.StoreID), event)
}

func orderKey(orderID string) string {
	return fmt.Sprintf("order-%s", orderID)
}

func intentKey(intentID string) string {
	return fmt.Sprintf("intent-%s", intentID)
}

func storeKey(storeID string) string {
	return fmt.Sprintf("store-%s", storeID)
}
