package metrics

import (
	"context"
	"sort"
	"time"

	cw "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/imrishuroy/go-canteen-orderflow/internal/aws"
	"go.uber.org/zap"
)

// CloudWatch publishes each count as a single PutMetricData datum.
type CloudWatch struct {
	client    aws.CloudWatchAPI
	namespace string
	log       *zap.Logger
	nowFunc   func() time.Time
}

func NewCloudWatch(client aws.CloudWatchAPI, namespace string, log *zap.Logger) *CloudWatch {
	return &CloudWatch{client: client, namespace: namespace, log: log, nowFunc: time.Now}
}

func (c *CloudWatch) Count(ctx context.Context, name string, dims map[string]string) {
	keys := make([]string, 0, len(dims))
	for k := range dims {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	dimensions := make([]types.Dimension, 0, len(keys))
	for _, k := range keys {
		if dims[k] == "" {
			continue
		}
		dimensions = append(dimensions, types.Dimension{Name: awsString(k), Value: awsString(dims[k])})
	}

	now := c.nowFunc()
	_, err := c.client.PutMetricData(ctx, &cw.PutMetricDataInput{
		Namespace: &c.namespace,
		MetricData: []types.MetricDatum{{
			MetricName: awsString(name),
			Dimensions: dimensions,
			Timestamp:  &now,
			Unit:       types.StandardUnitCount,
			Value:      awsFloat(1),
		}},
	})
	if err != nil {
		c.log.Warn("put metric data failed", zap.String("metric", name), zap.Error(err))
	}
}

func awsString(s string) *string  { return &s }
func awsFloat(f float64) *float64 { return &f }
