package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	cw "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/imrishuroy/go-canteen-orderflow/internal/config"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCloudWatch struct {
	inputs []*cw.PutMetricDataInput
	err    error
}

func (f *fakeCloudWatch) PutMetricData(ctx context.Context, params *cw.PutMetricDataInput, optFns ...func(*cw.Options)) (*cw.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, params)
	return &cw.PutMetricDataOutput{}, f.err
}

func TestCloudWatch_Count(t *testing.T) {
	fake := &fakeCloudWatch{}
	rec := NewCloudWatch(fake, "CanteenOrders", zap.NewNop())

	rec.Count(context.Background(), WebhookOutcome, map[string]string{"outcome": "applied", "provider": "razorpay", "empty": ""})

	require.Len(t, fake.inputs, 1)
	in := fake.inputs[0]
	assert.Equal(t, "CanteenOrders", *in.Namespace)
	require.Len(t, in.MetricData, 1)
	d := in.MetricData[0]
	assert.Equal(t, WebhookOutcome, *d.MetricName)
	assert.Equal(t, 1.0, *d.Value)
	require.Len(t, d.Dimensions, 2)
	assert.Equal(t, "outcome", *d.Dimensions[0].Name)
	assert.Equal(t, "applied", *d.Dimensions[0].Value)
	assert.Equal(t, "provider", *d.Dimensions[1].Name)
}

func TestCloudWatch_ErrorIsSwallowed(t *testing.T) {
	fake := &fakeCloudWatch{err: errors.New("throttled")}
	rec := NewCloudWatch(fake, "CanteenOrders", zap.NewNop())

	assert.NotPanics(t, func() { rec.Count(context.Background(), OTPSent, nil) })
	assert.Len(t, fake.inputs, 1)
}

func TestPrometheus_CountAndServe(t *testing.T) {
	p := NewPrometheus("canteen", zap.NewNop())
	ctx := context.Background()

	p.Count(ctx, WebhookOutcome, map[string]string{"provider": "stripe", "outcome": "duplicate"})
	p.Count(ctx, WebhookOutcome, map[string]string{"provider": "stripe", "outcome": "duplicate", "extra": "x"})
	p.Count(ctx, OTPSent, nil)
	p.Count(ctx, "unknown_metric", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.counters[WebhookOutcome].WithLabelValues("stripe", "duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.counters[OTPSent].WithLabelValues()))

	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "canteen_webhook_outcome_total"))
}

func TestOrNop(t *testing.T) {
	assert.IsType(t, Nop{}, OrNop(nil))
	p := NewPrometheus("x", zap.NewNop())
	assert.Same(t, p, OrNop(p))
}

func TestFromConfig(t *testing.T) {
	rec, h := FromConfig(config.MetricsConfig{Backend: config.MetricsCloudWatch, Namespace: "Canteen"}, &fakeCloudWatch{}, zap.NewNop())
	assert.IsType(t, &CloudWatch{}, rec)
	assert.Nil(t, h)

	rec, h = FromConfig(config.MetricsConfig{Backend: config.MetricsPrometheus, Namespace: "canteen"}, nil, zap.NewNop())
	assert.IsType(t, &Prometheus{}, rec)
	assert.NotNil(t, h)

	rec, h = FromConfig(config.MetricsConfig{Backend: config.MetricsNone}, nil, zap.NewNop())
	assert.Equal(t, Nop{}, rec)
	assert.Nil(t, h)
}
