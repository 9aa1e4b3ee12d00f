package main

import (
	"context"
	"errors"

	"github.com/aws/aws-lambda-go/events"
	orderevents "github.com/imrishuroy/go-canteen-orderflow/internal/events"
	"go.uber.org/zap"
)

var errPoison = errors.New("undecodable message")

// EventHandler reacts to one lifecycle event. *notify.EventHandler implements it.
type EventHandler interface {
	Handle(ctx context.Context, ev orderevents.OrderEvent) error
}

// Processor consumes the events queue and reports failures per record, so one bad
// delivery does not force the whole batch to be retried.
type Processor struct {
	handler EventHandler
	log     *zap.Logger
}

func NewProcessor(handler EventHandler, log *zap.Logger) *Processor {
	return &Processor{handler: handler, log: log}
}

func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			if errors.Is(err, errPoison) {
				p.log.Error("dropping message", zap.String("message_id", rec.MessageId), zap.Error(err))
				continue
			}
			p.log.Warn("message failed, will be redelivered", zap.String("message_id", rec.MessageId), zap.Error(err))
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: rec.MessageId,
			})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	ev, err := decodeEvent(rec.Body)
	if err != nil {
		return err
	}
	p.log.Info("event received",
		zap.String("type", ev.Type),
		zap.String("order_id", ev.OrderID),
		zap.String("message_id", rec.MessageId))
	return p.handler.Handle(ctx, ev)
}
