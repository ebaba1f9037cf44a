package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"storefront-service/internal/models"
)

// CreateOrder creates a new order
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (store_id, total_amount, currency, status, payment_intent_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, order, query,
		order.StoreID, order.TotalAmount, order.Currency, order.Status, order.PaymentIntentID)
}

// SetOrderPaymentIntent attaches the remote payment intent to an order.
func (s *Store) SetOrderPaymentIntent(ctx context.Context, orderID, intentID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET payment_intent_id = $1, updated_at = NOW() WHERE id = $2",
		intentID, orderID)
	return err
}

// UpdateOrderStatus updates order status by order id.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	return err
}

// UpdateOrderStatusByIntent transitions the order matching a payment intent.
// Transitions are monotonic: only a pending row matches, so a row leaves
// pending exactly once and re-applying a terminal status affects zero rows.
// Callers gate their side effects on the returned row count.
func (s *Store) UpdateOrderStatusByIntent(ctx context.Context, intentID, status string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE payment_intent_id = $2 AND status = $3`,
		status, intentID, models.OrderStatusPending)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetOrderForStore retrieves an order by id scoped to a store.
func (s *Store) GetOrderForStore(ctx context.Context, orderID, storeID string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE id = $1 AND store_id = $2", orderID, storeID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateOrderItem creates a new order item
func (s *Store) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, price)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, item, query,
		item.OrderID, item.ProductID, item.Price)
}

// GetDownloadItems joins an order's items to their products, projecting only
// the fields the download gate exposes.
func (s *Store) GetDownloadItems(ctx context.Context, orderID string) ([]models.DownloadItem, error) {
	var items []models.DownloadItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT p.id AS product_id, p.name, p.file_url, p.download_limit, p.expiry_days
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.created_at`, orderID)
	return items, err
}

// CreateSubscription creates a new subscription record
func (s *Store) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	query := `
		INSERT INTO subscriptions (store_id, user_id, plan_id, status, stripe_subscription_id, current_period_end)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, sub, query,
		sub.StoreID, sub.UserID, sub.PlanID, sub.Status, sub.StripeSubscriptionID, sub.CurrentPeriodEnd)
}

// UpdateSubscriptionByRemoteID updates status and period end for the
// subscription matching the processor's subscription id. Returns rows matched.
func (s *Store) UpdateSubscriptionByRemoteID(ctx context.Context, remoteID, status string, periodEnd *time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET status = $1, current_period_end = COALESCE($2, current_period_end), updated_at = NOW()
		WHERE stripe_subscription_id = $3`,
		status, periodEnd, remoteID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetSubscriptionStatusByRemoteID forces a status for the subscription
// matching the processor's subscription id. Returns rows matched.
func (s *Store) SetSubscriptionStatusByRemoteID(ctx context.Context, remoteID, status string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE subscriptions SET status = $1, updated_at = NOW() WHERE stripe_subscription_id = $2",
		status, remoteID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// BindSubscriptionRemoteID attaches a processor subscription id to the
// store's most recent pending subscription that has none yet. The initiation
// flow persists the row before the processor assigns the id, so the first
// lifecycle event binds them here.
func (s *Store) BindSubscriptionRemoteID(ctx context.Context, storeID, remoteID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET stripe_subscription_id = $1, updated_at = NOW()
		WHERE id = (
			SELECT id FROM subscriptions
			WHERE store_id = $2 AND stripe_subscription_id IS NULL AND status = $3
			ORDER BY created_at DESC
			LIMIT 1
		)`,
		remoteID, storeID, models.SubscriptionStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
