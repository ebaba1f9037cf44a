package payments

import (
	"context"
	"fmt"
	"time"

	"storefront-service/internal/util"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// planMetadataKey tags the remote plan product so lookup survives renaming.
const (
	planMetadataKey = "plan"
	planMetadataPro = "pro"

	proPlanName        = "Pro Plan"
	proPlanDescription = "Monthly pro plan store subscription"
)

// Intent is the subset of a remote payment intent the services need.
type Intent struct {
	ID           string
	ClientSecret string
}

// IntentParams describes a payment intent to open with the processor.
type IntentParams struct {
	Amount      int64
	Currency    string
	CustomerID  string
	Description string
	Metadata    map[string]string
	// SaveForFutureUse requests the payment method be stored for later
	// off-session charges (recurring billing).
	SaveForFutureUse bool
}

// Client wraps the Stripe SDK behind the handful of calls this service makes.
type Client struct {
	api *client.API
}

// NewClient creates a Stripe client bound to the given secret key.
func NewClient(secretKey string) *Client {
	return &Client{api: client.New(secretKey, nil)}
}

// CreatePaymentIntent opens a payment intent with the processor.
func (c *Client) CreatePaymentIntent(ctx context.Context, p IntentParams) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Params:      stripe.Params{Context: ctx},
		Amount:      stripe.Int64(p.Amount),
		Currency:    stripe.String(p.Currency),
		Description: stripe.String(p.Description),
	}
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	}
	if p.SaveForFutureUse {
		params.SetupFutureUsage = stripe.String(string(stripe.PaymentIntentSetupFutureUsageOffSession))
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	start := time.Now()
	pi, err := c.api.PaymentIntents.New(params)
	util.PaymentIntentLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// CreateCustomer creates a remote customer for the email, tagged with the
// store it subscribed from.
func (c *Client) CreateCustomer(ctx context.Context, email, storeID string) (string, error) {
	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(email),
	}
	params.AddMetadata("store_id", storeID)

	cust, err := c.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	return cust.ID, nil
}

// EnsureProPlanPrice finds or creates the remote recurring price for the pro
// plan: a product tagged plan=pro carrying a monthly price at the given
// amount. Subscription billing uses the platform currency, never the
// merchant's.
func (c *Client) EnsureProPlanPrice(ctx context.Context, amount int64, currency string) (string, error) {
	productID, err := c.findPlanProduct(ctx)
	if err != nil {
		return "", err
	}

	if productID == "" {
		params := &stripe.ProductParams{
			Params:      stripe.Params{Context: ctx},
			Name:        stripe.String(proPlanName),
			Description: stripe.String(proPlanDescription),
		}
		params.AddMetadata(planMetadataKey, planMetadataPro)

		prod, err := c.api.Products.New(params)
		if err != nil {
			return "", fmt.Errorf("create plan product: %w", err)
		}
		productID = prod.ID
	}

	priceID, err := c.findMonthlyPrice(ctx, productID, amount)
	if err != nil {
		return "", err
	}
	if priceID != "" {
		return priceID, nil
	}

	price, err := c.api.Prices.New(&stripe.PriceParams{
		Params:     stripe.Params{Context: ctx},
		Product:    stripe.String(productID),
		UnitAmount: stripe.Int64(amount),
		Currency:   stripe.String(currency),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("create plan price: %w", err)
	}

	return price.ID, nil
}

// findPlanProduct looks up the pro plan product by its metadata tag. Matching
// on metadata rather than name tolerates renaming the product in the
// processor's dashboard.
func (c *Client) findPlanProduct(ctx context.Context) (string, error) {
	iter := c.api.Products.List(&stripe.ProductListParams{
		ListParams: stripe.ListParams{Context: ctx, Limit: stripe.Int64(10)},
	})
	for iter.Next() {
		p := iter.Product()
		if p.Metadata[planMetadataKey] == planMetadataPro {
			return p.ID, nil
		}
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("list plan products: %w", err)
	}
	return "", nil
}

func (c *Client) findMonthlyPrice(ctx context.Context, productID string, amount int64) (string, error) {
	iter := c.api.Prices.List(&stripe.PriceListParams{
		ListParams: stripe.ListParams{Context: ctx, Limit: stripe.Int64(5)},
		Product:    stripe.String(productID),
		Active:     stripe.Bool(true),
	})
	for iter.Next() {
		pr := iter.Price()
		if pr.UnitAmount == amount && pr.Recurring != nil &&
			pr.Recurring.Interval == stripe.PriceRecurringIntervalMonth {
			return pr.ID, nil
		}
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("list plan prices: %w", err)
	}
	return "", nil
}
