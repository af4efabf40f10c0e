package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/bouboudada/labbekids-site-V1/backend/services/common/logger"
	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/config"
	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WebhookController receives Stripe events.
type WebhookController struct {
	confirmationService services.ConfirmationService
	cfg                 *config.Config
	logger              *zap.Logger
}

// NewWebhookController creates a new WebhookController.
func NewWebhookController(svc services.ConfirmationService, cfg *config.Config, logger *zap.Logger) *WebhookController {
	return &WebhookController{confirmationService: svc, cfg: cfg, logger: logger}
}

// HandleStripeWebhook handles POST /stripe-webhook. The raw body is passed
// through untouched so its signature can be checked.
func (wc *WebhookController) HandleStripeWebhook(ctx *gin.Context) {
	if !requireConfig(ctx, wc.cfg, config.HandlerStripeWebhook, wc.logger) {
		return
	}

	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ctx.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": ErrMsgPayloadTooLarge})
			return
		}
		ctx.JSON(http.StatusBadRequest, gin.H{"error": ErrMsgInvalidBody})
		return
	}

	signature := ctx.GetHeader(stripeSignatureHeader)
	if signature == "" {
		logger.For(ctx.Request.Context(), wc.logger).Warn("Stripe webhook without signature header")
		ctx.JSON(http.StatusBadRequest, gin.H{"error": ErrMsgMissingSignature})
		return
	}

	out, err := wc.confirmationService.HandleWebhook(ctx.Request.Context(), payload, signature)
	if err != nil {
		respondError(ctx, err)
		return
	}
	if out.Ignored {
		ctx.JSON(http.StatusOK, gin.H{"status": statusIgnored})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": MsgOrderProcessed})
}
