package controllers

import (
	"net/http"

	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/config"
	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CheckoutController handles checkout session issuance.
type CheckoutController struct {
	checkoutService services.CheckoutService
	cfg             *config.Config
	logger          *zap.Logger
}

// NewCheckoutController creates a new CheckoutController.
func NewCheckoutController(svc services.CheckoutService, cfg *config.Config, logger *zap.Logger) *CheckoutController {
	return &CheckoutController{checkoutService: svc, cfg: cfg, logger: logger}
}

// CreateCheckout handles POST /create-checkout
func (cc *CheckoutController) CreateCheckout(ctx *gin.Context) {
	if !requireConfig(ctx, cc.cfg, config.HandlerCreateCheckout, cc.logger) {
		return
	}

	var req services.CheckoutRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": ErrMsgInvalidBody})
		return
	}

	res, err := cc.checkoutService.CreateCheckout(ctx.Request.Context(), &req)
	if err != nil {
		respondCheckoutError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"id": res.ID, "url": res.URL})
}
