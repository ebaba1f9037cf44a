package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
)

// dedupeTTL bounds how long processed webhook event ids are remembered.
// Stripe retries span days at most; the DB transitions stay idempotent past
// the TTL anyway.
const dedupeTTL = 72 * time.Hour

// ReconcilerStore is the persistence surface webhook handlers mutate. Every
// method is idempotent: reapplying the same event converges on the same row
// state.
type ReconcilerStore interface {
	UpdateOrderStatusByIntent(ctx context.Context, intentID, status string) (int64, error)
	UpdateSubscriptionByRemoteID(ctx context.Context, remoteID, status string, periodEnd *time.Time) (int64, error)
	SetSubscriptionStatusByRemoteID(ctx context.Context, remoteID, status string) (int64, error)
	BindSubscriptionRemoteID(ctx context.Context, storeID, remoteID string) (bool, error)
	SetStorePlan(ctx context.Context, storeID, plan string) error
}

// EventDeduper short-circuits redelivered webhook events. Best effort: a
// deduper failure falls through to the idempotent DB transitions.
type EventDeduper interface {
	MarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
}

type eventHandler func(ctx context.Context, data json.RawMessage) error

// Reconciler applies the payment processor's asynchronous lifecycle events to
// local order and subscription state. Dispatch is a registered table of event
// type to handler; unknown types are acknowledged and logged.
type Reconciler struct {
	store         ReconcilerStore
	events        *broker.EventPublisher
	dedupe        EventDeduper
	webhookSecret string
	logger        *zap.Logger
	handlers      map[string]eventHandler
}

// NewReconciler creates a webhook reconciler with the standard event table.
func NewReconciler(
	store ReconcilerStore,
	events *broker.EventPublisher,
	dedupe EventDeduper,
	webhookSecret string,
) *Reconciler {
	r := &Reconciler{
		store:         store,
		events:        events,
		dedupe:        dedupe,
		webhookSecret: webhookSecret,
		logger:        util.GetLogger(),
	}
	r.handlers = map[string]eventHandler{
		"customer.subscription.created": r.handleSubscriptionChange,
		"customer.subscription.updated": r.handleSubscriptionChange,
		"customer.subscription.deleted": r.handleSubscriptionDeleted,
		"invoice.payment_failed":        r.handleInvoicePaymentFailed,
		"payment_intent.succeeded":      r.handleIntentSucceeded,
		"payment_intent.payment_failed": r.handleIntentFailed,
	}
	return r
}

// HandleWebhook verifies the delivery signature and dispatches the event.
// Signature failures return ErrInvalidSignature with nothing mutated.
// Handler errors are logged and still acknowledged: the processor cannot fix
// local persistence by retrying indefinitely.
func (r *Reconciler) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	ctx, span := util.StartSpan(ctx, "Reconciler.HandleWebhook")
	defer span.End()

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, r.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		util.WebhookSignatureFailures.Inc()
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	eventType := string(event.Type)
	handler, ok := r.handlers[eventType]
	if !ok {
		r.logger.Info("Ignoring unhandled webhook event type",
			zap.String("type", eventType), zap.String("event_id", event.ID))
		util.WebhookEventsTotal.WithLabelValues(eventType, "ignored").Inc()
		return nil
	}

	if r.dedupe != nil {
		first, err := r.dedupe.MarkEventProcessed(ctx, event.ID, dedupeTTL)
		if err != nil {
			r.logger.Warn("Event dedupe unavailable, relying on idempotent transitions",
				zap.String("event_id", event.ID), zap.Error(err))
		} else if !first {
			r.logger.Info("Duplicate webhook event skipped",
				zap.String("type", eventType), zap.String("event_id", event.ID))
			util.WebhookEventsTotal.WithLabelValues(eventType, "duplicate").Inc()
			return nil
		}
	}

	if err := handler(ctx, event.Data.Raw); err != nil {
		r.logger.Error("Webhook event processing failed",
			zap.String("type", eventType),
			zap.String("event_id", event.ID),
			zap.Error(err))
		util.WebhookEventsTotal.WithLabelValues(eventType, "error").Inc()
		return nil
	}

	util.WebhookEventsTotal.WithLabelValues(eventType, "processed").Inc()
	return nil
}

// Event payloads are decoded into local structs rather than the SDK's full
// types; only the fields the handlers read are bound.

type subscriptionPayload struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	CurrentPeriodEnd int64             `json:"current_period_end"`
	Metadata         map[string]string `json:"metadata"`
}

type invoicePayload struct {
	Subscription string `json:"subscription"`
}

type intentPayload struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

func (r *Reconciler) handleSubscriptionChange(ctx context.Context, data json.RawMessage) error {
	var sub subscriptionPayload
	if err := json.Unmarshal(data, &sub); err != nil {
		return fmt.Errorf("decode subscription payload: %w", err)
	}

	status := mapRemoteSubscriptionStatus(sub.Status)
	var periodEnd *time.Time
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		periodEnd = &t
	}

	storeID := sub.Metadata[models.MetadataKeyStoreID]

	n, err := r.store.UpdateSubscriptionByRemoteID(ctx, sub.ID, status, periodEnd)
	if err != nil {
		return fmt.Errorf("update subscription %s: %w", sub.ID, err)
	}
	if n == 0 && storeID != "" {
		// The initiation flow persists the row before the processor assigns a
		// subscription id; the first event binds them.
		bound, err := r.store.BindSubscriptionRemoteID(ctx, storeID, sub.ID)
		if err != nil {
			return fmt.Errorf("bind subscription %s: %w", sub.ID, err)
		}
		if bound {
			if _, err := r.store.UpdateSubscriptionByRemoteID(ctx, sub.ID, status, periodEnd); err != nil {
				return fmt.Errorf("update bound subscription %s: %w", sub.ID, err)
			}
		} else {
			r.logger.Warn("No subscription row matched remote id",
				zap.String("stripe_subscription_id", sub.ID),
				zap.String("store_id", storeID))
		}
	}

	if status != models.SubscriptionStatusActive {
		return nil
	}
	if storeID == "" {
		r.logger.Warn("Active subscription without store metadata",
			zap.String("stripe_subscription_id", sub.ID))
		return nil
	}
	if err := r.store.SetStorePlan(ctx, storeID, models.PlanPro); err != nil {
		return fmt.Errorf("upgrade store %s plan: %w", storeID, err)
	}

	r.publishSubscriptionActivated(ctx, storeID, sub.ID)
	return nil
}

func (r *Reconciler) handleSubscriptionDeleted(ctx context.Context, data json.RawMessage) error {
	var sub subscriptionPayload
	if err := json.Unmarshal(data, &sub); err != nil {
		return fmt.Errorf("decode subscription payload: %w", err)
	}

	if _, err := r.store.SetSubscriptionStatusByRemoteID(ctx, sub.ID, models.SubscriptionStatusCanceled); err != nil {
		return fmt.Errorf("cancel subscription %s: %w", sub.ID, err)
	}

	storeID := sub.Metadata[models.MetadataKeyStoreID]
	if storeID != "" {
		if err := r.store.SetStorePlan(ctx, storeID, models.PlanFree); err != nil {
			return fmt.Errorf("downgrade store %s plan: %w", storeID, err)
		}
	}

	r.publishSubscriptionCanceled(ctx, storeID, sub.ID)
	return nil
}

func (r *Reconciler) handleInvoicePaymentFailed(ctx context.Context, data json.RawMessage) error {
	var inv invoicePayload
	if err := json.Unmarshal(data, &inv); err != nil {
		return fmt.Errorf("decode invoice payload: %w", err)
	}
	if inv.Subscription == "" {
		return nil
	}

	if _, err := r.store.SetSubscriptionStatusByRemoteID(ctx, inv.Subscription, models.SubscriptionStatusPastDue); err != nil {
		return fmt.Errorf("mark subscription %s past due: %w", inv.Subscription, err)
	}
	return nil
}

func (r *Reconciler) handleIntentSucceeded(ctx context.Context, data json.RawMessage) error {
	var intent intentPayload
	if err := json.Unmarshal(data, &intent); err != nil {
		return fmt.Errorf("decode payment intent payload: %w", err)
	}
	if intent.Metadata[models.MetadataKeyType] != models.PurchaseTypeProduct {
		return nil
	}

	n, err := r.store.UpdateOrderStatusByIntent(ctx, intent.ID, models.OrderStatusCompleted)
	if err != nil {
		return fmt.Errorf("complete order for intent %s: %w", intent.ID, err)
	}
	if n > 0 {
		util.OrdersCompletedTotal.Inc()
		r.publishOrderCompleted(ctx, intent)
	}
	return nil
}

func (r *Reconciler) handleIntentFailed(ctx context.Context, data json.RawMessage) error {
	var intent intentPayload
	if err := json.Unmarshal(data, &intent); err != nil {
		return fmt.Errorf("decode payment intent payload: %w", err)
	}
	if intent.Metadata[models.MetadataKeyType] != models.PurchaseTypeProduct {
		return nil
	}

	n, err := r.store.UpdateOrderStatusByIntent(ctx, intent.ID, models.OrderStatusFailed)
	if err != nil {
		return fmt.Errorf("fail order for intent %s: %w", intent.ID, err)
	}
	if n > 0 {
		util.OrdersFailedTotal.Inc()
		r.publishOrderFailed(ctx, intent)
	}
	return nil
}

// mapRemoteSubscriptionStatus maps the processor's subscription status to the
// local lifecycle; anything unrecognized stays pending.
func mapRemoteSubscriptionStatus(status string) string {
	switch status {
	case "active":
		return models.SubscriptionStatusActive
	case "canceled":
		return models.SubscriptionStatusCanceled
	case "past_due":
		return models.SubscriptionStatusPastDue
	default:
		return models.SubscriptionStatusPending
	}
}

func (r *Reconciler) publishSubscriptionActivated(ctx context.Context, storeID, remoteID string) {
	if r.events == nil {
		return
	}
	event := &models.SubscriptionActivatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSubscriptionActivated,
			Timestamp: time.Now(),
		},
		StoreID:              storeID,
		StripeSubscriptionID: remoteID,
	}
	if err := r.events.PublishSubscriptionActivated(ctx, event); err != nil {
		r.logger.Error("Failed to publish SubscriptionActivated event", zap.Error(err))
	}
}

func (r *Reconciler) publishSubscriptionCanceled(ctx context.Context, storeID, remoteID string) {
	if r.events == nil {
		return
	}
	event := &models.SubscriptionCanceledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSubscriptionCanceled,
			Timestamp: time.Now(),
		},
		StoreID:              storeID,
		StripeSubscriptionID: remoteID,
	}
	if err := r.events.PublishSubscriptionCanceled(ctx, event); err != nil {
		r.logger.Error("Failed to publish SubscriptionCanceled event", zap.Error(err))
	}
}

func (r *Reconciler) publishOrderCompleted(ctx context.Context, intent intentPayload) {
	if r.events == nil {
		return
	}
	event := &models.OrderCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCompleted,
			Timestamp: time.Now(),
		},
		PaymentIntentID: intent.ID,
		StoreID:         intent.Metadata[models.MetadataKeyStoreID],
	}
	if err := r.events.PublishOrderCompleted(ctx, event); err != nil {
		r.logger.Error("Failed to publish OrderCompleted event", zap.Error(err))
	}
}

func (r *Reconciler) publishOrderFailed(ctx context.Context, intent intentPayload) {
	if r.events == nil {
		return
	}
	event := &models.OrderFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderFailed,
			Timestamp: time.Now(),
		},
		PaymentIntentID: intent.ID,
		StoreID:         intent.Metadata[models.MetadataKeyStoreID],
	}
	if err := r.events.PublishOrderFailed(ctx, event); err != nil {
		r.logger.Error("Failed to publish OrderFailed event", zap.Error(err))
	}
}
