package controllers

import (
	"errors"
	"net/http"

	apperrors "github.com/bouboudada/labbekids-site-V1/backend/services/common/errors"
	"github.com/bouboudada/labbekids-site-V1/backend/services/common/logger"
	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/config"
	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

const (
	ErrMsgInvalidBody      = "Invalid JSON body"
	ErrMsgMethodNotAllowed = "Method Not Allowed"
	ErrMsgMissingSignature = "Missing stripe-signature header"
	ErrMsgPayloadTooLarge  = "Payload too large"
	MsgOrderProcessed      = "Commande traitée avec succès"

	maxWebhookBodyBytes   = 64 << 10
	stripeSignatureHeader = "Stripe-Signature"
	statusIgnored         = "ignored"
)

// requireConfig answers 500 when the handler is missing required settings.
func requireConfig(ctx *gin.Context, cfg *config.Config, handler string, l *zap.Logger) bool {
	missing := cfg.MissingFor(handler)
	if len(missing) == 0 {
		return true
	}
	err := apperrors.Configuration(missing[0])
	logger.For(ctx.Request.Context(), l).Error("configuration error",
		zap.String("handler", handler),
		zap.Strings("missing", missing),
	)
	ctx.JSON(err.Code, gin.H{"error": err.Message})
	return false
}

func respondError(ctx *gin.Context, err error) {
	ctx.JSON(apperrors.StatusOf(err), gin.H{"error": apperrors.MessageOf(err)})
}

// respondCheckoutError adds the provider error type when Stripe rejected the call.
func respondCheckoutError(ctx *gin.Context, err error) {
	body := gin.H{"error": apperrors.MessageOf(err)}
	var se *stripe.Error
	if errors.As(err, &se) && se.Type != "" {
		body["type"] = se.Type
	}
	ctx.JSON(apperrors.StatusOf(err), body)
}

// Preflight answers OPTIONS with an empty 200.
func Preflight(ctx *gin.Context) {
	ctx.Status(http.StatusOK)
}

// MethodNotAllowed answers any method other than POST and OPTIONS.
func MethodNotAllowed(ctx *gin.Context) {
	ctx.JSON(http.StatusMethodNotAllowed, gin.H{"error": ErrMsgMethodNotAllowed})
}
