package services

import (
	"context"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"
)

// PaymentGateway is the part of Stripe the order flows use.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	// VerifyEvent checks the Stripe-Signature header before decoding payload.
	VerifyEvent(payload []byte, signature string) (stripe.Event, error)
	// GetCheckoutSession fetches a session with its line items and products expanded.
	GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error)
}

type StripeService struct {
	api        *client.API
	webhookKey string
}

// NewStripeService builds a client bound to secretKey. backends may be nil;
// tests pass backends pointing at a local server.
func NewStripeService(secretKey, webhookKey string, backends *stripe.Backends) *StripeService {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &StripeService{api: api, webhookKey: webhookKey}
}

func (s *StripeService) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	params.Context = ctx
	return s.api.CheckoutSessions.New(params)
}

func (s *StripeService) VerifyEvent(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signature, s.webhookKey, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

func (s *StripeService) GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items.data.price.product")
	return s.api.CheckoutSessions.Get(id, params)
}
