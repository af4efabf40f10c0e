package services

import (
	"context"
	"encoding/json"
	"time"

	awspkg "github.com/bouboudada/labbekids-site-V1/backend/pkg/aws"
	"github.com/bouboudada/labbekids-site-V1/backend/services/common/logger"
	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/models"
	"go.uber.org/zap"
)

const serviceName = "order-service"

// Observer bundles the optional side channels of the order flows: CloudWatch
// business counters and the SNS order_paid event. Zero values disable them.
type Observer struct {
	Metrics  awspkg.MetricsRecorder
	SNS      awspkg.SNSPublisher
	TopicArn string
	Logger   *zap.Logger
}

func (o Observer) count(metric string, dims map[string]string) {
	if o.Metrics == nil || !o.Metrics.IsEnabled() {
		return
	}
	d := map[string]string{"Service": serviceName}
	for k, v := range dims {
		d[k] = v
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.Metrics.RecordCount(ctx, metric, d)
	}()
}

// publishOrderPaid sends the event to SNS. Failures are logged only.
func (o Observer) publishOrderPaid(ctx context.Context, event models.OrderEvent) {
	if o.SNS == nil || o.TopicArn == "" {
		return
	}
	log := logger.For(ctx, o.Logger)
	payload, _ := json.Marshal(event)
	attrs := map[string]string{"event_type": event.Type, "source": event.Source}
	if err := o.SNS.Publish(ctx, o.TopicArn, payload, attrs); err != nil {
		log.Error("Failed to publish order event to SNS",
			zap.String("event_type", event.Type),
			zap.String("order_id", event.OrderRef),
			zap.Error(err),
		)
		return
	}
	log.Info("Order event published to SNS",
		zap.String("event_type", event.Type),
		zap.String("order_id", event.OrderRef),
	)
}
