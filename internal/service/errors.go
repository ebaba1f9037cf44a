package service

import (
	"context"
	"errors"

	"storefront-service/internal/payments"
)

// Error taxonomy surfaced to the API layer. Everything else is a downstream
// failure and maps to a generic 500 without leaking detail.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrOrderNotCompleted = errors.New("order not completed")
	ErrInvalidSignature  = errors.New("invalid webhook signature")
)

// PaymentGateway is the slice of the payment processor the services use.
// Implemented by payments.Client; faked in tests.
type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, p payments.IntentParams) (*payments.Intent, error)
	CreateCustomer(ctx context.Context, email, storeID string) (string, error)
	EnsureProPlanPrice(ctx context.Context, amount int64, currency string) (string, error)
}
