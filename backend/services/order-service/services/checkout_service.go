package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	awspkg "github.com/bouboudada/labbekids-site-V1/backend/pkg/aws"
	apperrors "github.com/bouboudada/labbekids-site-V1/backend/services/common/errors"
	"github.com/bouboudada/labbekids-site-V1/backend/services/common/logger"
	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/models"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

const (
	ErrMsgInvalidAmount   = "Invalid or missing amount"
	ErrMsgMissingOrder    = "Missing orderData"
	ErrMsgInvalidEmail    = "Invalid or missing email"
	ErrMsgConsentRequired = "Terms and conditions must be accepted"
	ErrMsgCheckoutFailed  = "Failed to create checkout session"

	StepCreateSession = "create_checkout_session"
)

// CheckoutRequest is the create-checkout body. Amount is kept raw because
// the storefront sends it either as a number or as a numeric string.
type CheckoutRequest struct {
	Amount    json.RawMessage   `json:"amount"`
	OrderData models.Submission `json:"orderData"`
}

type CheckoutResult struct {
	ID    string
	URL   string
	Quote models.PriceQuote
}

type CheckoutService interface {
	CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutResult, error)
}

var validate = validator.New()

// ValidateCheckout checks, in order: amount, presence of orderData, email,
// consent. It returns the normalized order and the client's display amount.
func ValidateCheckout(req *CheckoutRequest) (models.Order, decimal.Decimal, error) {
	amount, ok := parseAmount(req.Amount)
	if !ok {
		return models.Order{}, decimal.Zero, apperrors.Validation(ErrMsgInvalidAmount)
	}
	if req.OrderData == nil {
		return models.Order{}, decimal.Zero, apperrors.Validation(ErrMsgMissingOrder)
	}

	order := req.OrderData.Order()
	if err := validate.Var(order.Email, "required,email"); err != nil {
		return models.Order{}, decimal.Zero, apperrors.Validation(ErrMsgInvalidEmail)
	}
	if !order.AcceptCGV {
		return models.Order{}, decimal.Zero, apperrors.Validation(ErrMsgConsentRequired)
	}
	return order, amount, nil
}

// parseAmount accepts a positive finite number, as a JSON number or numeric string.
func parseAmount(raw json.RawMessage) (decimal.Decimal, bool) {
	if len(raw) == 0 {
		return decimal.Zero, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return decimal.Zero, false
	}

	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return decimal.Zero, false
		}
		f = parsed
	default:
		return decimal.Zero, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

type checkoutServiceImpl struct {
	gateway  PaymentGateway
	siteURL  string
	observer Observer
	logger   *zap.Logger
	now      func() time.Time
}

func NewCheckoutService(gateway PaymentGateway, siteURL string, observer Observer, logger *zap.Logger) CheckoutService {
	observer.Logger = logger
	return &checkoutServiceImpl{
		gateway:  gateway,
		siteURL:  strings.TrimSuffix(siteURL, "/"),
		observer: observer,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateCheckout validates the submission, prices it from the server table
// and opens a Stripe Checkout session.
func (s *checkoutServiceImpl) CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutResult, error) {
	log := logger.For(ctx, s.logger)

	order, clientAmount, err := ValidateCheckout(req)
	if err != nil {
		return nil, err
	}

	quote := models.ResolvePrice(order.Plan)
	if quote.Fallback {
		log.Warn("unknown plan, charging default plan",
			zap.String("plan", order.Plan),
			zap.String("charged_plan", quote.PlanID),
		)
	}
	if !clientAmount.Equal(quote.Amount) {
		log.Warn("client amount differs from price table, using server price",
			zap.String("plan", order.Plan),
			zap.String("client_amount", clientAmount.String()),
			zap.String("server_amount", quote.Display()),
			zap.String("price_version", quote.Version),
		)
	}

	params := s.sessionParams(order, quote)
	sess, err := s.gateway.CreateCheckoutSession(ctx, params)
	if err != nil {
		fields := []zap.Field{
			zap.String("step", StepCreateSession),
			zap.String("email", order.Email),
			zap.String("plan", quote.PlanID),
			zap.Error(err),
		}
		var se *stripe.Error
		if errors.As(err, &se) {
			fields = append(fields,
				zap.String("type", string(se.Type)),
				zap.String("code", string(se.Code)),
				zap.String("param", se.Param),
			)
		}
		log.Error("Stripe create-checkout error", fields...)
		return nil, apperrors.Collaborator(StepCreateSession, ErrMsgCheckoutFailed, err)
	}

	log.Info("checkout session created",
		zap.String("session_id", sess.ID),
		zap.String("plan", quote.PlanID),
		zap.Int64("amount", quote.MinorUnits),
		zap.String("metadata_mode", params.Metadata[metaMode]),
	)
	s.observer.count(awspkg.MetricCheckoutSessionsCreated, map[string]string{"Plan": quote.PlanID})

	return &CheckoutResult{ID: sess.ID, URL: sess.URL, Quote: quote}, nil
}

func (s *checkoutServiceImpl) sessionParams(order models.Order, quote models.PriceQuote) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(quote.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(productNamePrefix + order.Plan),
						Description: stripe.String(productDescPrefix + order.PrenomEnfants),
					},
					UnitAmount: stripe.Int64(quote.MinorUnits),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:    stripe.String(fmt.Sprintf("%s/success?session_id={CHECKOUT_SESSION_ID}", s.siteURL)),
		CancelURL:     stripe.String(s.siteURL + "/#commander"),
		CustomerEmail: stripe.String(order.Email),
	}
	for k, v := range PackMetadata(order, quote, s.now()) {
		params.AddMetadata(k, v)
	}
	return params
}
