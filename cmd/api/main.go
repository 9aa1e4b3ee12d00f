package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-canteen-orderflow/internal/aws"
	"github.com/imrishuroy/go-canteen-orderflow/internal/config"
	"github.com/imrishuroy/go-canteen-orderflow/internal/handlers"
	"github.com/imrishuroy/go-canteen-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-canteen-orderflow/internal/ids"
	"github.com/imrishuroy/go-canteen-orderflow/internal/logging"
	"github.com/imrishuroy/go-canteen-orderflow/internal/metrics"
	"github.com/imrishuroy/go-canteen-orderflow/internal/notify"
	"github.com/imrishuroy/go-canteen-orderflow/internal/orders"
	"github.com/imrishuroy/go-canteen-orderflow/internal/otp"
	"github.com/imrishuroy/go-canteen-orderflow/internal/payments"
	"github.com/imrishuroy/go-canteen-orderflow/internal/reconcile"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}
	if err := cfg.ValidatePayments(); err != nil {
		logger.Fatal("invalid payment config", zap.Error(err))
	}

	ctx := context.Background()
	clients, err := aws.NewAWSClients(ctx, cfg.AWSRegion, cfg.AWSEndpointOverride)
	if err != nil {
		logger.Fatal("init aws clients", zap.Error(err))
	}
	recorder, metricsHandler := metrics.FromConfig(cfg.Metrics, clients.CloudWatch, logger)

	deps := orders.Deps{
		Repo:     orders.NewStore(clients.DynamoDB, cfg.OrdersTable),
		IDs:      ids.NewGenerator(),
		Metrics:  recorder,
		Logger:   logger,
		Window:   cfg.OrderWindow,
		Currency: cfg.Currency,
	}
	if cfg.IdempotencyTable != "" {
		deps.Idempotency = idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL)
	}
	if cfg.EventsQueueURL != "" {
		deps.Publisher = aws.NewPublisher(clients.SQS, cfg.EventsQueueURL)
	} else {
		logger.Warn("EVENTS_QUEUE_URL not set, lifecycle events are not published")
	}
	orderSvc := orders.NewService(deps)

	checkout := payments.NewCheckout(orderSvc, newGateway(cfg.Payments), recorder, logger)
	reconciler := reconcile.New(orderSvc, recorder, logger, webhookProviders(cfg.Payments)...)

	notifier, err := notify.FromConfig(cfg.SMTP, cfg.CanteenEmails, logger)
	if err != nil {
		logger.Fatal("init notifier", zap.Error(err))
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	otpSvc := otp.NewService(otp.NewRedisStore(rdb), notifier, cfg.OTP.TTL, recorder, logger)

	r := handlers.NewRouter(handlers.RouterConfig{
		Orders:         orderSvc,
		Checkout:       checkout,
		Webhooks:       reconciler,
		OTP:            otpSvc,
		OTPPerMinute:   cfg.OTP.RatePerMinute,
		Metrics:        metricsHandler,
		Logger:         logger,
		AllowedOrigins: cfg.CORSOrigins,
	})

	// RUN_LOCAL=true serves HTTP directly instead of behind API Gateway.
	if cfg.RunLocal {
		logger.Info("running local server", zap.String("addr", cfg.HTTPAddr))
		if err := r.Run(cfg.HTTPAddr); err != nil {
			logger.Fatal("local server stopped", zap.Error(err))
		}
		return
	}

	adapter := ginadapter.New(r)
	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}

func newGateway(cfg config.PaymentsConfig) payments.Gateway {
	if cfg.Provider == config.ProviderStripe {
		return payments.NewStripeGateway(cfg.StripeSecretKey)
	}
	return payments.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
}

// webhookProviders accepts callbacks from every provider with a webhook secret, so
// switching PAYMENT_PROVIDER does not strand payments already in flight.
func webhookProviders(cfg config.PaymentsConfig) []reconcile.Provider {
	var out []reconcile.Provider
	if cfg.RazorpayWebhookSecret != "" {
		out = append(out, reconcile.NewRazorpay(cfg.RazorpayWebhookSecret))
	}
	if cfg.StripeWebhookSecret != "" {
		out = append(out, reconcile.NewStripe(cfg.StripeWebhookSecret))
	}
	return out
}
