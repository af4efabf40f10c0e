package routes

import (
	"net/http"

	"github.com/bouboudada/labbekids-site-V1/backend/services/common/middleware"
	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/controllers"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const netlifyPrefix = "/.netlify/functions"

// Handlers groups the controllers mounted by RegisterOrderRoutes.
type Handlers struct {
	Checkout *controllers.CheckoutController
	Webhook  *controllers.WebhookController
	Order    *controllers.OrderController
}

// CORS allows every origin; the endpoints are called from the storefront
// and from Stripe.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins:           true,
		AllowMethods:              []string{http.MethodPost, http.MethodOptions},
		AllowHeaders:              []string{"Content-Type", "Stripe-Signature", "X-Request-ID"},
		ExposeHeaders:             []string{"X-Request-ID"},
		OptionsResponseStatusCode: http.StatusOK,
	})
}

// RegisterOrderRoutes mounts the three handlers at the root and under the
// Netlify functions prefix. Only the storefront-facing handlers are rate
// limited; Stripe retries webhooks on its own schedule.
func RegisterOrderRoutes(r *gin.Engine, h Handlers, perMinute, burst int) {
	r.HandleMethodNotAllowed = true
	r.NoMethod(controllers.MethodNotAllowed)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "order-service"})
	})

	limit := middleware.RateLimitMiddleware(perMinute, burst)

	for _, prefix := range []string{"", netlifyPrefix} {
		post(r, prefix+"/create-checkout", limit, h.Checkout.CreateCheckout)
		post(r, prefix+"/stripe-webhook", nil, h.Webhook.HandleStripeWebhook)
		post(r, prefix+"/save-order", limit, h.Order.SaveOrder)
	}
}

func post(r *gin.Engine, path string, limit gin.HandlerFunc, handler gin.HandlerFunc) {
	chain := []gin.HandlerFunc{handler}
	if limit != nil {
		chain = append([]gin.HandlerFunc{limit}, chain...)
	}
	r.POST(path, chain...)
	r.OPTIONS(path, controllers.Preflight)
}
