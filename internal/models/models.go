package models

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// API responses carry amounts as JSON numbers, not quoted strings.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Store is a merchant tenant with its own products and storefront.
type Store struct {
	ID               string    `db:"id" json:"id"`
	OwnerID          string    `db:"owner_id" json:"owner_id"`
	Name             string    `db:"name" json:"name"`
	Slug             string    `db:"slug" json:"slug"`
	Currency         string    `db:"currency" json:"currency"`
	SubscriptionPlan string    `db:"subscription_plan" json:"subscription_plan"`
	Status           string    `db:"status" json:"status"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Product is a digital good owned by exactly one store. The file reference
// points at an externally hosted asset; this service never touches the bytes.
type Product struct {
	ID            string          `db:"id" json:"id"`
	StoreID       string          `db:"store_id" json:"store_id"`
	Name          string          `db:"name" json:"name"`
	Description   string          `db:"description" json:"description"`
	Category      string          `db:"category" json:"category"`
	Price         decimal.Decimal `db:"price" json:"price"`
	SalePrice     decimal.Decimal `db:"sale_price" json:"sale_price"`
	Status        string          `db:"status" json:"status"`
	ImageURLs     pq.StringArray  `db:"image_urls" json:"image_urls"`
	FileURL       sql.NullString  `db:"file_url" json:"file_url"`
	DownloadLimit sql.NullInt64   `db:"download_limit" json:"download_limit"`
	ExpiryDays    sql.NullInt64   `db:"expiry_days" json:"expiry_days"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// EffectivePrice is the unit price charged at checkout: the sale price when
// one is set and positive, the regular price otherwise.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.SalePrice.IsPositive() {
		return p.SalePrice
	}
	return p.Price
}

// Order is a purchase transaction against a store. Status only ever leaves
// pending; completed and failed are terminal.
type Order struct {
	ID              string          `db:"id" json:"id"`
	StoreID         string          `db:"store_id" json:"store_id"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"total_amount"`
	Currency        string          `db:"currency" json:"currency"`
	Status          string          `db:"status" json:"status"`
	PaymentIntentID string          `db:"payment_intent_id" json:"payment_intent_id"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderItem snapshots a product's effective price at purchase time.
// Immutable after creation.
type OrderItem struct {
	ID        string          `db:"id" json:"id"`
	OrderID   string          `db:"order_id" json:"order_id"`
	ProductID string          `db:"product_id" json:"product_id"`
	Price     decimal.Decimal `db:"price" json:"price"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Subscription is a recurring relationship between a store, a user identity
// and a plan. The payment processor is the system of record for the remote
// lifecycle; rows here mirror it.
type Subscription struct {
	ID                   string         `db:"id" json:"id"`
	StoreID              string         `db:"store_id" json:"store_id"`
	UserID               string         `db:"user_id" json:"user_id"`
	PlanID               string         `db:"plan_id" json:"plan_id"`
	Status               string         `db:"status" json:"status"`
	StripeSubscriptionID sql.NullString `db:"stripe_subscription_id" json:"stripe_subscription_id"`
	CurrentPeriodEnd     sql.NullTime   `db:"current_period_end" json:"current_period_end"`
	CreatedAt            time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at" json:"updated_at"`
}

// DownloadItem is the download-gate projection of an order item joined to its
// product. A null file URL means the asset is not currently retrievable.
type DownloadItem struct {
	ProductID     string         `db:"product_id" json:"product_id"`
	Name          string         `db:"name" json:"name"`
	FileURL       sql.NullString `db:"file_url" json:"-"`
	DownloadLimit sql.NullInt64  `db:"download_limit" json:"download_limit"`
	ExpiryDays    sql.NullInt64  `db:"expiry_days" json:"expiry_days"`
}

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusFailed    = "failed"
)

// Subscription statuses
const (
	SubscriptionStatusPending  = "pending"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
)

// Subscription plans
const (
	PlanFree = "free"
	PlanPro  = "pro"
)

// Product statuses
const (
	ProductStatusDraft     = "draft"
	ProductStatusPublished = "published"
)

// Store statuses
const (
	StoreStatusActive = "active"
)

// Payment intent metadata keys and purchase type tags. The type tag routes
// webhook events: only intents tagged as product purchases touch orders.
const (
	MetadataKeyStoreID       = "store_id"
	MetadataKeyProductIDs    = "product_ids"
	MetadataKeyCustomerEmail = "customer_email"
	MetadataKeyCustomerName  = "customer_name"
	MetadataKeyType          = "type"
	MetadataKeyPriceID       = "price_id"

	PurchaseTypeProduct             = "product_purchase"
	PurchaseTypeSubscriptionInitial = "subscription_initial"
)
