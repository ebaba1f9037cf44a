package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/payments"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CheckoutStore is the persistence surface the checkout flow needs.
type CheckoutStore interface {
	GetProductsForStore(ctx context.Context, ids []string, storeID string) ([]models.Product, error)
	GetStoreByID(ctx context.Context, id string) (*models.Store, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	SetOrderPaymentIntent(ctx context.Context, orderID, intentID string) error
	UpdateOrderStatus(ctx context.Context, orderID, status string) error
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
}

// CheckoutService opens payment intents for carts and persists the matching
// pending order.
type CheckoutService struct {
	store           CheckoutStore
	gateway         PaymentGateway
	events          *broker.EventPublisher
	defaultCurrency string
	logger          *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	store CheckoutStore,
	gateway PaymentGateway,
	events *broker.EventPublisher,
	defaultCurrency string,
) *CheckoutService {
	return &CheckoutService{
		store:           store,
		gateway:         gateway,
		events:          events,
		defaultCurrency: defaultCurrency,
		logger:          util.GetLogger(),
	}
}

// CheckoutRequest represents a cart to check out.
type CheckoutRequest struct {
	StoreID       string   `json:"storeId"`
	ProductIDs    []string `json:"productIds"`
	CustomerEmail string   `json:"customerEmail,omitempty"`
	CustomerName  string   `json:"customerName,omitempty"`
}

// CheckoutResponse carries what the client needs to confirm the payment.
type CheckoutResponse struct {
	ClientSecret    string          `json:"clientSecret"`
	PaymentIntentID string          `json:"paymentIntentId"`
	OrderID         string          `json:"orderId"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
}

// CreateCheckout validates the cart, persists a pending order, opens a
// payment intent and links the two. The order row is written first; if intent
// creation fails the order is marked failed instead of leaving a half-written
// record behind.
func (s *CheckoutService) CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.CreateCheckout")
	defer span.End()

	if req.StoreID == "" || len(req.ProductIDs) == 0 {
		util.CheckoutsFailedTotal.WithLabelValues("invalid_request").Inc()
		return nil, fmt.Errorf("%w: store id and product ids are required", ErrValidation)
	}

	// Scoping by store id silently drops product ids that belong to another
	// tenant.
	products, err := s.store.GetProductsForStore(ctx, req.ProductIDs, req.StoreID)
	if err != nil {
		util.CheckoutsFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	if len(products) == 0 {
		util.CheckoutsFailedTotal.WithLabelValues("products_not_found").Inc()
		return nil, fmt.Errorf("%w: no products matched the cart", ErrNotFound)
	}

	total := CartTotal(products)

	storeName := "store"
	currency := s.defaultCurrency
	if st, err := s.store.GetStoreByID(ctx, req.StoreID); err != nil {
		s.logger.Warn("Failed to load store for checkout, using defaults",
			zap.String("store_id", req.StoreID), zap.Error(err))
	} else {
		storeName = st.Name
		if st.Currency != "" {
			currency = st.Currency
		}
	}
	currency = strings.ToLower(currency)

	order := &models.Order{
		StoreID:     req.StoreID,
		TotalAmount: total,
		Currency:    strings.ToUpper(currency),
		Status:      models.OrderStatusPending,
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		util.CheckoutsFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	// Item snapshots are best effort: a failure here leaves the order pending
	// and recoverable through support, never rolled back.
	eventItems := make([]models.OrderItemData, 0, len(products))
	for i := range products {
		p := &products[i]
		item := &models.OrderItem{
			OrderID:   order.ID,
			ProductID: p.ID,
			Price:     p.EffectivePrice(),
		}
		if err := s.store.CreateOrderItem(ctx, item); err != nil {
			s.logger.Error("Failed to create order item",
				zap.String("order_id", order.ID),
				zap.String("product_id", p.ID),
				zap.Error(err))
			continue
		}
		eventItems = append(eventItems, models.OrderItemData{
			ProductID: p.ID,
			Price:     item.Price.String(),
		})
	}

	resolvedIDs := make([]string, 0, len(products))
	for i := range products {
		resolvedIDs = append(resolvedIDs, products[i].ID)
	}
	productIDsJSON, _ := json.Marshal(resolvedIDs)

	intent, err := s.gateway.CreatePaymentIntent(ctx, payments.IntentParams{
		Amount:      MinorUnits(total),
		Currency:    currency,
		Description: fmt.Sprintf("Purchase from %s", storeName),
		Metadata: map[string]string{
			models.MetadataKeyStoreID:       req.StoreID,
			models.MetadataKeyProductIDs:    string(productIDsJSON),
			models.MetadataKeyCustomerEmail: req.CustomerEmail,
			models.MetadataKeyCustomerName:  req.CustomerName,
			models.MetadataKeyType:          models.PurchaseTypeProduct,
		},
	})
	if err != nil {
		if updErr := s.store.UpdateOrderStatus(ctx, order.ID, models.OrderStatusFailed); updErr != nil {
			s.logger.Error("Failed to mark order failed after intent error",
				zap.String("order_id", order.ID), zap.Error(updErr))
		}
		util.CheckoutsFailedTotal.WithLabelValues("payment_intent_error").Inc()
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	if err := s.store.SetOrderPaymentIntent(ctx, order.ID, intent.ID); err != nil {
		// The order stays pending and unmatched; support can reconcile it.
		s.logger.Error("Failed to attach payment intent to order",
			zap.String("order_id", order.ID),
			zap.String("payment_intent_id", intent.ID),
			zap.Error(err))
	}

	util.CheckoutsCreatedTotal.Inc()
	s.logger.Info("Checkout created",
		zap.String("order_id", order.ID),
		zap.String("payment_intent_id", intent.ID),
		zap.String("total", total.String()))

	s.publishOrderPending(ctx, order, intent.ID, eventItems)

	return &CheckoutResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		OrderID:         order.ID,
		Amount:          total,
		Currency:        strings.ToUpper(currency),
	}, nil
}

func (s *CheckoutService) publishOrderPending(ctx context.Context, order *models.Order, intentID string, items []models.OrderItemData) {
	if s.events == nil {
		return
	}

	event := &models.OrderPendingEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPending,
			Timestamp: time.Now(),
		},
		OrderID:         order.ID,
		StoreID:         order.StoreID,
		PaymentIntentID: intentID,
		TotalAmount:     order.TotalAmount.String(),
		Currency:        order.Currency,
		Items:           items,
	}
	if err := s.events.PublishOrderPending(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPending event", zap.Error(err))
	}
}

// CartTotal sums each product's effective price.
func CartTotal(products []models.Product) decimal.Decimal {
	total := decimal.Zero
	for i := range products {
		total = total.Add(products[i].EffectivePrice())
	}
	return total
}

// MinorUnits converts an amount to the processor's minor-unit integer. The
// ×100 shift uses banker's rounding (round half to even), so sub-cent
// remainders are dropped deterministically.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).RoundBank(0).IntPart()
}
