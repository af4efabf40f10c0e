package services

import (
	"context"
	"time"

	awspkg "github.com/bouboudada/labbekids-site-V1/backend/pkg/aws"
	apperrors "github.com/bouboudada/labbekids-site-V1/backend/services/common/errors"
	"github.com/bouboudada/labbekids-site-V1/backend/services/common/logger"
	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/models"
	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/repository"
	"go.uber.org/zap"
)

const (
	StepLedgerAppend = "ledger_append"

	ErrMsgLedgerFailed = "Failed to save order"
)

// SaveOrderRequest is the save-order body.
type SaveOrderRequest struct {
	OrderData      models.Submission     `json:"orderData"`
	PaymentDetails models.PaymentDetails `json:"paymentDetails"`
}

type OrderService interface {
	// SaveOrder appends the order to the ledger, then notifies the customer
	// and the admin. A notification failure is returned as an error but the
	// ledger row stays.
	SaveOrder(ctx context.Context, req *SaveOrderRequest) error
}

type orderServiceImpl struct {
	ledger   repository.LedgerRepository
	composer *Composer
	notifier *Notifier
	idem     repository.IdempotencyStore
	observer Observer
	logger   *zap.Logger
	now      func() time.Time
}

func NewOrderService(
	ledger repository.LedgerRepository,
	composer *Composer,
	notifier *Notifier,
	idem repository.IdempotencyStore,
	observer Observer,
	logger *zap.Logger,
) OrderService {
	if idem == nil {
		idem = repository.NewNoopIdempotencyStore()
	}
	observer.Logger = logger
	return &orderServiceImpl{
		ledger:   ledger,
		composer: composer,
		notifier: notifier,
		idem:     idem,
		observer: observer,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *orderServiceImpl) SaveOrder(ctx context.Context, req *SaveOrderRequest) error {
	if req.OrderData == nil {
		return apperrors.Validation(ErrMsgMissingOrder)
	}

	order := req.OrderData.Order()
	payment := req.PaymentDetails
	ref := payment.Reference()
	log := logger.For(ctx, s.logger).With(zap.String("order_id", ref), zap.String("email", order.Email))

	// Without a payment reference there is nothing stable to deduplicate on.
	key := ""
	if ref != "N/A" {
		key = "save-order:" + ref
		claimed, err := s.idem.Claim(ctx, key)
		if err != nil {
			log.Warn("idempotency store unavailable, processing without guard", zap.Error(err))
		} else if !claimed {
			log.Info("Skipping duplicate save-order request")
			return nil
		}
	}

	now := s.now()
	quote := models.ResolvePrice(order.Plan)
	row := models.NewLedgerRow(order, payment, quote, now)

	if err := s.ledger.Append(ctx, row); err != nil {
		log.Error("Ledger append failed", zap.String("step", StepLedgerAppend), zap.Error(err))
		s.release(ctx, log, key)
		s.observer.count(awspkg.MetricOrdersFailed, map[string]string{"Source": models.SourceSaveOrder})
		return apperrors.Collaborator(StepLedgerAppend, ErrMsgLedgerFailed, err)
	}
	log.Info("Ledger row appended", zap.String("plan", order.Plan))
	s.observer.count(awspkg.MetricLedgerRowsAppended, nil)

	conf := Confirmation{
		Order:         order,
		OrderRef:      ref,
		PaymentRef:    ref,
		PaymentStatus: payment.StatusOrDefault(),
		Amount:        quote.Display(),
		PaidAt:        now,
		Source:        models.SourceSaveOrder,
	}
	pair, err := s.composer.Compose(conf)
	if err == nil {
		err = s.notifier.Send(ctx, ref, pair)
	} else {
		err = apperrors.Collaborator(StepComposeMail, "Failed to render notifications", err)
	}
	if err != nil {
		// The ledger row is kept; operators recover from the log.
		log.Error("Order saved but notification failed", zap.Bool("ledger_appended", true), zap.Error(err))
		s.release(ctx, log, key)
		s.observer.count(awspkg.MetricOrdersFailed, map[string]string{"Source": models.SourceSaveOrder})
		return err
	}

	s.observer.count(awspkg.MetricOrdersConfirmed, map[string]string{"Source": models.SourceSaveOrder})
	s.observer.publishOrderPaid(ctx, models.OrderEvent{
		Type:       models.EventOrderPaid,
		Source:     models.SourceSaveOrder,
		OrderRef:   ref,
		PaymentRef: ref,
		Email:      order.Email,
		Plan:       order.Plan,
		Amount:     quote.MinorUnits,
		Currency:   quote.Currency,
		Timestamp:  now.UTC(),
	})
	return nil
}

func (s *orderServiceImpl) release(ctx context.Context, log *zap.Logger, key string) {
	if key == "" {
		return
	}
	if err := s.idem.Release(ctx, key); err != nil {
		log.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(err))
	}
}
