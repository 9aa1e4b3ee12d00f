package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/imrishuroy/go-canteen-orderflow/internal/config"
	"github.com/imrishuroy/go-canteen-orderflow/internal/logging"
	"github.com/imrishuroy/go-canteen-orderflow/internal/notify"
	"go.uber.org/zap"
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

	notifier, err := notify.FromConfig(cfg.SMTP, cfg.CanteenEmails, logger)
	if err != nil {
		logger.Fatal("init notifier", zap.Error(err))
	}
	p := NewProcessor(notify.NewEventHandler(notifier, logger), logger)

	// RUN_LOCAL processes a single message from LOCAL_SQS_BODY and exits.
	if cfg.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			body = `{"type":"order.paid","order_id":"local-order-1","short_code":"K7QX2M","canteen":"AZAD Hall","total_amount":"20","currency":"INR"}`
		}
		resp, err := p.Handle(context.Background(), events.SQSEvent{
			Records: []events.SQSMessage{{MessageId: "local-1", Body: body}},
		})
		if err != nil || len(resp.BatchItemFailures) > 0 {
			logger.Fatal("local message failed", zap.Error(err), zap.Int("failures", len(resp.BatchItemFailures)))
		}
		return
	}

	lambda.Start(p.Handle)
}
