package controllers

import (
	"net/http"

	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/config"
	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OrderController records paid orders posted by the storefront.
type OrderController struct {
	orderService services.OrderService
	cfg          *config.Config
	logger       *zap.Logger
}

// NewOrderController creates a new OrderController.
func NewOrderController(svc services.OrderService, cfg *config.Config, logger *zap.Logger) *OrderController {
	return &OrderController{orderService: svc, cfg: cfg, logger: logger}
}

// SaveOrder handles POST /save-order
func (oc *OrderController) SaveOrder(ctx *gin.Context) {
	if !requireConfig(ctx, oc.cfg, config.HandlerSaveOrder, oc.logger) {
		return
	}

	var req services.SaveOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": ErrMsgInvalidBody})
		return
	}

	if err := oc.orderService.SaveOrder(ctx.Request.Context(), &req); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true})
}
