package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-canteen-orderflow/internal/aws"
	"github.com/imrishuroy/go-canteen-orderflow/internal/config"
	"github.com/imrishuroy/go-canteen-orderflow/internal/ids"
	"github.com/imrishuroy/go-canteen-orderflow/internal/logging"
	"github.com/imrishuroy/go-canteen-orderflow/internal/metrics"
	"github.com/imrishuroy/go-canteen-orderflow/internal/orders"
)

// batchSize bounds one ListExpiredPending page; a run keeps paging until a short page.
const batchSize = 100

// maxBatches caps a single invocation so a backlog cannot outrun the Lambda timeout.
const maxBatches = 50

type sweeper interface {
	SweepExpired(ctx context.Context, limit int32) (int, error)
}

func sweep(ctx context.Context, svc sweeper, logger *zap.Logger) (int, error) {
	total := 0
	for i := 0; i < maxBatches; i++ {
		n, err := svc.SweepExpired(ctx, batchSize)
		total += n
		if err != nil {
			return total, err
		}
		if n < batchSize {
			break
		}
	}
	logger.Info("sweep finished", zap.Int("expired", total))
	return total, nil
}

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

	clients, err := aws.NewAWSClients(context.Background(), cfg.AWSRegion, cfg.AWSEndpointOverride)
	if err != nil {
		logger.Fatal("init aws clients", zap.Error(err))
	}
	recorder, _ := metrics.FromConfig(cfg.Metrics, clients.CloudWatch, logger)

	svc := orders.NewService(orders.Deps{
		Repo:    orders.NewStore(clients.DynamoDB, cfg.OrdersTable),
		IDs:     ids.NewGenerator(),
		Metrics: recorder,
		Logger:  logger,
		Window:  cfg.OrderWindow,
	})

	if cfg.RunLocal {
		if _, err := sweep(context.Background(), svc, logger); err != nil {
			logger.Fatal("sweep failed", zap.Error(err))
		}
		return
	}

	// Scheduled by an EventBridge rule; the event payload is ignored.
	lambda.Start(func(ctx context.Context) error {
		_, err := sweep(ctx, svc, logger)
		return err
	})
}
