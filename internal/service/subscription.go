package service

import (
	"context"
	"fmt"
	"time"

	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/payments"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubscriptionStore is the persistence surface the subscription flow needs.
type SubscriptionStore interface {
	CreateSubscription(ctx context.Context, sub *models.Subscription) error
}

// SubscriptionService initiates recurring pro-plan subscriptions for
// merchants.
type SubscriptionService struct {
	store        SubscriptionStore
	gateway      PaymentGateway
	events       *broker.EventPublisher
	planAmount   int64
	planCurrency string
	logger       *zap.Logger
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(
	store SubscriptionStore,
	gateway PaymentGateway,
	events *broker.EventPublisher,
	planAmount int64,
	planCurrency string,
) *SubscriptionService {
	return &SubscriptionService{
		store:        store,
		gateway:      gateway,
		events:       events,
		planAmount:   planAmount,
		planCurrency: planCurrency,
		logger:       util.GetLogger(),
	}
}

// SubscriptionResponse carries what the client needs to confirm the first
// period's payment.
type SubscriptionResponse struct {
	ClientSecret string `json:"clientSecret"`
	CustomerID   string `json:"customerId"`
	PriceID      string `json:"priceId"`
}

// CreateSubscription resolves the remote plan price, creates a customer for
// the email, opens a payment intent for the first period with the payment
// method saved for off-session renewals, and persists a pending subscription
// row.
func (s *SubscriptionService) CreateSubscription(ctx context.Context, userID, storeID, email string) (*SubscriptionResponse, error) {
	ctx, span := util.StartSpan(ctx, "SubscriptionService.CreateSubscription")
	defer span.End()

	if userID == "" {
		util.SubscriptionsFailedTotal.WithLabelValues("unauthorized").Inc()
		return nil, fmt.Errorf("%w: identity required", ErrUnauthorized)
	}
	if storeID == "" || email == "" {
		util.SubscriptionsFailedTotal.WithLabelValues("invalid_request").Inc()
		return nil, fmt.Errorf("%w: store id and email are required", ErrValidation)
	}

	priceID, err := s.gateway.EnsureProPlanPrice(ctx, s.planAmount, s.planCurrency)
	if err != nil {
		util.SubscriptionsFailedTotal.WithLabelValues("plan_price_error").Inc()
		return nil, fmt.Errorf("failed to resolve plan price: %w", err)
	}

	customerID, err := s.gateway.CreateCustomer(ctx, email, storeID)
	if err != nil {
		util.SubscriptionsFailedTotal.WithLabelValues("customer_error").Inc()
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, payments.IntentParams{
		Amount:           s.planAmount,
		Currency:         s.planCurrency,
		CustomerID:       customerID,
		Description:      "Pro plan - first month",
		SaveForFutureUse: true,
		Metadata: map[string]string{
			models.MetadataKeyStoreID: storeID,
			models.MetadataKeyType:    models.PurchaseTypeSubscriptionInitial,
			models.MetadataKeyPriceID: priceID,
		},
	})
	if err != nil {
		util.SubscriptionsFailedTotal.WithLabelValues("payment_intent_error").Inc()
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	sub := &models.Subscription{
		StoreID: storeID,
		UserID:  userID,
		PlanID:  models.PlanPro,
		Status:  models.SubscriptionStatusPending,
	}
	if err := s.store.CreateSubscription(ctx, sub); err != nil {
		// The remote intent exists; the pending row is what the reconciler
		// binds to later, so this is a hard failure.
		util.SubscriptionsFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	util.SubscriptionsCreatedTotal.Inc()
	s.logger.Info("Subscription initiated",
		zap.String("store_id", storeID),
		zap.String("customer_id", customerID),
		zap.String("price_id", priceID))

	s.publishSubscriptionPending(ctx, sub)

	return &SubscriptionResponse{
		ClientSecret: intent.ClientSecret,
		CustomerID:   customerID,
		PriceID:      priceID,
	}, nil
}

func (s *SubscriptionService) publishSubscriptionPending(ctx context.Context, sub *models.Subscription) {
	if s.events == nil {
		return
	}

	event := &models.SubscriptionPendingEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSubscriptionPending,
			Timestamp: time.Now(),
		},
		StoreID: sub.StoreID,
		UserID:  sub.UserID,
		PlanID:  sub.PlanID,
	}
	if err := s.events.PublishSubscriptionPending(ctx, event); err != nil {
		s.logger.Error("Failed to publish SubscriptionPending event", zap.Error(err))
	}
}
