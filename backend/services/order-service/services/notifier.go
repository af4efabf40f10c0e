package services

import (
	"context"
	"errors"

	apperrors "github.com/bouboudada/labbekids-site-V1/backend/services/common/errors"
	"github.com/bouboudada/labbekids-site-V1/backend/services/common/logger"
	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/models"
	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/repository"
	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/sender"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	StepNotifyCustomer = "notify_customer"
	StepNotifyAdmin    = "notify_admin"
)

var errMailDisabled = errors.New("email sender is not configured")

// Notifier delivers a NotificationPair: customer first, then admin. Both
// sends are always attempted.
type Notifier struct {
	emailSender sender.EmailSender
	logs        repository.NotificationLogRepository
	logger      *zap.Logger
}

// NewNotifier creates a Notifier. logs may be nil.
func NewNotifier(emailSender sender.EmailSender, logs repository.NotificationLogRepository, logger *zap.Logger) *Notifier {
	return &Notifier{emailSender: emailSender, logs: logs, logger: logger}
}

// Send returns nil only when both messages were accepted by the transport.
// Otherwise the failures are combined into one error.
func (n *Notifier) Send(ctx context.Context, orderRef string, pair NotificationPair) error {
	var errs error
	for _, item := range []struct {
		step    string
		kind    string
		msg     sender.Message
		message string
	}{
		{StepNotifyCustomer, models.TypeCustomerConfirmation, pair.Customer, "Failed to send confirmation email"},
		{StepNotifyAdmin, models.TypeAdminAlert, pair.Admin, "Failed to send admin notification"},
	} {
		if err := n.send(ctx, orderRef, item.kind, item.msg); err != nil {
			errs = multierr.Append(errs, apperrors.Collaborator(item.step, item.message, err))
		}
	}
	return errs
}

func (n *Notifier) send(ctx context.Context, orderRef, kind string, msg sender.Message) error {
	log := logger.For(ctx, n.logger)
	var (
		result sender.SendResult
		err    error
	)
	if n.emailSender == nil {
		err = errMailDisabled
	} else {
		result, err = n.emailSender.SendEmail(ctx, msg)
	}

	entry := &models.NotificationLog{
		OrderRef:  orderRef,
		Recipient: msg.To,
		Type:      kind,
		Channel:   models.ChannelEmail,
		Status:    models.StatusSent,
		MessageID: result.MessageID,
	}
	if err != nil {
		entry.Status = models.StatusFailed
		entry.Error = err.Error()
		log.Error("notification failed",
			zap.String("order_id", orderRef),
			zap.String("type", kind),
			zap.String("recipient", msg.To),
			zap.Error(err),
		)
	} else {
		log.Info("notification sent",
			zap.String("order_id", orderRef),
			zap.String("type", kind),
			zap.String("message_id", result.MessageID),
		)
	}

	if n.logs != nil {
		if logErr := n.logs.SaveLog(ctx, entry); logErr != nil {
			log.Warn("failed to save notification log", zap.Error(logErr))
		}
	}
	return err
}
