package aws

import (
	"context"
	"encoding/json"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/imrishuroy/go-canteen-orderflow/internal/events"
)

// Publisher wraps an SQS client and a queue URL.
type Publisher struct {
	SQS      SQSAPI
	QueueURL string
}

// NewPublisher returns a Publisher bound to a queue URL.
func NewPublisher(sqsClient SQSAPI, queueURL string) *Publisher {
	return &Publisher{
		SQS:      sqsClient,
		QueueURL: queueURL,
	}
}

// Publish sends a lifecycle event as a JSON message; type and order id also travel as
// message attributes so queue subscriptions can filter without decoding the body.
func (p *Publisher) Publish(ctx context.Context, ev events.OrderEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.send(ctx, string(body), map[string]string{
		"event_type": ev.Type,
		"order_id":   ev.OrderID,
	})
}

func (p *Publisher) send(ctx context.Context, body string, attributes map[string]string) error {
	attrs := make(map[string]sqstypes.MessageAttributeValue, len(attributes))
	for k, v := range attributes {
		if v != "" {
			attrs[k] = sqstypes.MessageAttributeValue{DataType: sdkaws.String("String"), StringValue: sdkaws.String(v)}
		}
	}
	_, err := p.SQS.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          sdkaws.String(p.QueueURL),
		MessageBody:       sdkaws.String(body),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("send %s event: %w", attributes["event_type"], err)
	}
	return nil
}

var _ events.Publisher = (*Publisher)(nil)
