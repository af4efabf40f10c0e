package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	awspkg "github.com/bouboudada/labbekids-site-V1/backend/pkg/aws"
	apperrors "github.com/bouboudada/labbekids-site-V1/backend/services/common/errors"
	"github.com/bouboudada/labbekids-site-V1/backend/services/common/logger"
	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/models"
	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/repository"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// WebhookState is a step of webhook processing.
type WebhookState string

const (
	StateReceived           WebhookState = "received"
	StateSignatureVerified  WebhookState = "signature_verified"
	StateEventFiltered      WebhookState = "event_filtered"
	StateOrderReconstructed WebhookState = "order_reconstructed"
	StateNotified           WebhookState = "notified"
	StateDone               WebhookState = "done"
	StateSignatureInvalid   WebhookState = "signature_invalid"
	StateProcessingFailed   WebhookState = "processing_failed"
)

const (
	EventCheckoutSessionCompleted = "checkout.session.completed"

	StepDecodeSession = "decode_session"
	StepComposeMail   = "compose_notifications"
)

// WebhookOutcome reports where processing stopped and why.
type WebhookOutcome struct {
	State     WebhookState
	EventID   string
	EventType string
	SessionID string
	Ignored   bool
	Duplicate bool
}

type ConfirmationService interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookOutcome, error)
}

type confirmationServiceImpl struct {
	gateway  PaymentGateway
	composer *Composer
	notifier *Notifier
	idem     repository.IdempotencyStore
	observer Observer
	logger   *zap.Logger
	now      func() time.Time
}

func NewConfirmationService(
	gateway PaymentGateway,
	composer *Composer,
	notifier *Notifier,
	idem repository.IdempotencyStore,
	observer Observer,
	logger *zap.Logger,
) ConfirmationService {
	if idem == nil {
		idem = repository.NewNoopIdempotencyStore()
	}
	observer.Logger = logger
	return &confirmationServiceImpl{
		gateway:  gateway,
		composer: composer,
		notifier: notifier,
		idem:     idem,
		observer: observer,
		logger:   logger,
		now:      time.Now,
	}
}

// HandleWebhook verifies a Stripe event and, for completed checkout
// sessions, sends the customer and admin notifications. A nil error means
// the event must be acknowledged with 200.
func (s *confirmationServiceImpl) HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookOutcome, error) {
	log := logger.For(ctx, s.logger)
	out := &WebhookOutcome{State: StateReceived}

	event, err := s.gateway.VerifyEvent(payload, signature)
	if err != nil {
		out.State = StateSignatureInvalid
		log.Warn("Stripe webhook signature verification failed", zap.Error(err))
		s.observer.count(awspkg.MetricWebhooksRejected, nil)
		return out, apperrors.Signature(err)
	}
	out.State = StateSignatureVerified
	out.EventID = event.ID
	out.EventType = string(event.Type)

	log = log.With(zap.String("event_id", event.ID), zap.String("event_type", out.EventType))
	if out.EventType != EventCheckoutSessionCompleted {
		log.Info("Unhandled webhook event type")
		out.State = StateDone
		out.Ignored = true
		return out, nil
	}
	out.State = StateEventFiltered

	sess, err := decodeSession(event)
	if err != nil {
		out.State = StateProcessingFailed
		log.Error("Failed to unmarshal checkout session", zap.String("step", StepDecodeSession), zap.Error(err))
		s.observer.count(awspkg.MetricOrdersFailed, map[string]string{"Source": models.SourceWebhook})
		return out, apperrors.Serialization("Invalid checkout session payload", err, true)
	}
	out.SessionID = sess.ID
	log = log.With(zap.String("order_id", sess.ID))

	key := "webhook:session:" + sess.ID
	claimed, err := s.idem.Claim(ctx, key)
	if err != nil {
		log.Warn("idempotency store unavailable, processing without guard", zap.Error(err))
		claimed = true
	}
	if !claimed {
		log.Info("Skipping duplicate checkout webhook")
		out.State = StateDone
		out.Duplicate = true
		return out, nil
	}

	conf := s.reconstruct(ctx, log, sess)
	out.State = StateOrderReconstructed

	if err := s.notify(ctx, conf); err != nil {
		out.State = StateProcessingFailed
		s.fail(ctx, log, key, conf, err)
		return out, err
	}
	out.State = StateNotified

	log.Info("Order notifications sent", zap.String("email", conf.Order.Email))
	s.observer.count(awspkg.MetricOrdersConfirmed, map[string]string{"Source": models.SourceWebhook})
	s.observer.publishOrderPaid(ctx, models.OrderEvent{
		Type:       models.EventOrderPaid,
		Source:     models.SourceWebhook,
		OrderRef:   conf.OrderRef,
		PaymentRef: conf.PaymentRef,
		Email:      conf.Order.Email,
		Plan:       conf.Order.Plan,
		Amount:     sess.AmountTotal,
		Currency:   string(sess.Currency),
		Timestamp:  conf.PaidAt.UTC(),
	})

	out.State = StateDone
	return out, nil
}

func decodeSession(event stripe.Event) (*stripe.CheckoutSession, error) {
	if event.Data == nil {
		return nil, errors.New("event has no data object")
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, err
	}
	if sess.ID == "" {
		return nil, errors.New("checkout session has no id")
	}
	return &sess, nil
}

// reconstruct recovers the order, falling back to a session lookup with
// expanded line items when the metadata only carries the essential fields.
func (s *confirmationServiceImpl) reconstruct(ctx context.Context, log *zap.Logger, sess *stripe.CheckoutSession) Confirmation {
	source := sess
	if NeedsLookup(sess) {
		expanded, err := s.gateway.GetCheckoutSession(ctx, sess.ID)
		if err != nil {
			log.Warn("checkout session lookup failed, using essential metadata", zap.Error(err))
		} else if expanded != nil {
			if expanded.Metadata == nil {
				expanded.Metadata = sess.Metadata
			}
			source = expanded
		}
	}

	order, full := ReconstructOrder(source)
	if !full {
		log.Info("order reconstructed from essential metadata", zap.String("email", order.Email))
	}

	paymentRef := ""
	if sess.PaymentIntent != nil {
		paymentRef = sess.PaymentIntent.ID
	}
	return Confirmation{
		Order:         order,
		OrderRef:      sess.ID,
		PaymentRef:    paymentRef,
		PaymentStatus: string(sess.PaymentStatus),
		Amount:        decimal.New(sess.AmountTotal, -2).StringFixed(2),
		PaidAt:        s.now(),
		Source:        models.SourceWebhook,
	}
}

func (s *confirmationServiceImpl) notify(ctx context.Context, conf Confirmation) error {
	pair, err := s.composer.Compose(conf)
	if err != nil {
		return apperrors.Collaborator(StepComposeMail, "Failed to render notifications", err)
	}
	return s.notifier.Send(ctx, conf.OrderRef, pair)
}

func (s *confirmationServiceImpl) fail(ctx context.Context, log *zap.Logger, key string, conf Confirmation, err error) {
	steps := make([]string, 0, 2)
	for _, e := range multierr.Errors(err) {
		if appErr, ok := apperrors.As(e); ok {
			steps = append(steps, appErr.Step)
		}
	}
	log.Error("Order processing failed",
		zap.String("email", conf.Order.Email),
		zap.Strings("failed_steps", steps),
		zap.Error(err),
	)
	s.observer.count(awspkg.MetricOrdersFailed, map[string]string{"Source": models.SourceWebhook})
	if relErr := s.idem.Release(ctx, key); relErr != nil {
		log.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(relErr))
	}
}
