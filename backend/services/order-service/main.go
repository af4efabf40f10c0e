package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awspkg "github.com/bouboudada/labbekids-site-V1/backend/pkg/aws"
	"github.com/bouboudada/labbekids-site-V1/backend/services/common/logger"
	"github.com/bouboudada/labbekids-site-V1/backend/services/common/middleware"
	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/config"
	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/controllers"
	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/database"
	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/repository"
	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/routes"
	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/sender"
	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/services"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const serviceName = "order-service"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	ctx := context.Background()

	// AWS (non-fatal: every AWS feature is optional)
	awsCfg, awsErr := awspkg.LoadAWSConfig(ctx)
	var secrets config.SecretsSource
	if awsErr == nil {
		secrets = awspkg.NewSecretsClient(awsCfg)
	}

	cfg, err := config.LoadConfig(ctx, secrets)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var logSink io.Writer
	if cfg.CloudWatchEnabled && awsErr == nil {
		cwLogs, err := awspkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.CloudWatchLogGroup, serviceName)
		if err != nil {
			log.Printf("CloudWatch Logs unavailable: %v", err)
		} else {
			logSink = cwLogs
		}
	}

	zl, err := logger.New(cfg.Env, logSink)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	if awsErr != nil {
		zl.Warn("AWS config unavailable, secrets, metrics and SNS disabled", zap.Error(awsErr))
	}
	for _, h := range []string{config.HandlerCreateCheckout, config.HandlerStripeWebhook, config.HandlerSaveOrder} {
		if missing := cfg.MissingFor(h); len(missing) > 0 {
			zl.Warn("configuration error", zap.String("handler", h), zap.Strings("missing", missing))
		}
	}

	observer := services.Observer{TopicArn: cfg.OrderEventsTopicARN}
	var metrics awspkg.MetricsRecorder
	if awsErr == nil {
		mc := awspkg.NewMetricsClient(awsCfg, cfg.CloudWatchNamespace, cfg.CloudWatchEnabled)
		metrics = mc
		observer.Metrics = mc
		if cfg.OrderEventsTopicARN != "" {
			observer.SNS = awspkg.NewSNSClient(awsCfg)
		}
	}

	// Idempotency guard
	var idem repository.IdempotencyStore
	if cfg.RedisURL != "" {
		rdb, err := repository.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			zl.Warn("Redis unavailable, duplicate deliveries will be processed again", zap.Error(err))
		} else {
			defer rdb.Close() //nolint:errcheck
			idem = repository.NewRedisIdempotencyStore(rdb, repository.DefaultIdempotencyTTL)
		}
	} else {
		zl.Warn("REDIS_URL not set, duplicate deliveries will be processed again")
	}

	// Notification log
	var notificationLogs repository.NotificationLogRepository
	if cfg.DatabaseURL != "" {
		db, err := database.ConnectNotificationLog(cfg.DatabaseURL, zl)
		if err != nil {
			zl.Warn("Notification log disabled", zap.Error(err))
		} else {
			defer database.Close(db) //nolint:errcheck
			notificationLogs = repository.NewNotificationLogRepository(db)
		}
	}

	// Mail
	var emailSender sender.EmailSender
	if smtpSender, err := sender.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFromName); err != nil {
		zl.Warn("SMTP sender disabled", zap.Error(err))
	} else {
		emailSender = smtpSender
	}

	// Ledger
	var ledger repository.LedgerRepository
	if len(cfg.MissingFor(config.HandlerSaveOrder)) == 0 {
		creds := repository.ServiceAccountCredentials(cfg.GoogleServiceAccountEmail, cfg.GooglePrivateKey)
		ledger, err = repository.NewSheetsLedger(ctx, cfg.GoogleSheetID, cfg.LedgerRange, option.WithCredentialsJSON(creds))
		if err != nil {
			zl.Fatal("Failed to init Google Sheets ledger", zap.Error(err))
		}
	}

	composer, err := services.NewComposer(cfg.AdminEmail, cfg.SupportEmail, cfg.SiteURL)
	if err != nil {
		zl.Fatal("Failed to parse mail templates", zap.Error(err))
	}

	// Dependency injection
	gateway := services.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, nil)
	notifier := services.NewNotifier(emailSender, notificationLogs, zl)
	checkoutService := services.NewCheckoutService(gateway, cfg.SiteURL, observer, zl)
	confirmationService := services.NewConfirmationService(gateway, composer, notifier, idem, observer, zl)
	orderService := services.NewOrderService(ledger, composer, notifier, idem, observer, zl)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(zl))
	r.Use(middleware.MetricsMiddleware(metrics, serviceName))
	r.Use(middleware.SecurityHeaders())
	r.Use(routes.CORS())

	// 30-second request timeout
	r.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	routes.RegisterOrderRoutes(r, routes.Handlers{
		Checkout: controllers.NewCheckoutController(checkoutService, cfg, zl),
		Webhook:  controllers.NewWebhookController(confirmationService, cfg, zl),
		Order:    controllers.NewOrderController(orderService, cfg, zl),
	}, cfg.RateLimitPerMinute, cfg.RateLimitBurst)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Fatal("Server failed", zap.Error(err))
		}
	}()

	zl.Info("Order service started", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
	<-quit
	zl.Info("Shutting down order service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Fatal("Server forced to shutdown", zap.Error(err))
	}
	zl.Info("Server exited cleanly")
}
