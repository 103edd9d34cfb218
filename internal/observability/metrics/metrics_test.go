package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("member_id", "123"),
		attribute.String("transaction_type", "deposit"),
		attribute.String("outcome", "approved"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("transaction_type"), attrs[0].Key)
	assert.Equal(t, attribute.Key("outcome"), attrs[1].Key)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordTransaction(ctx, "deposit")
	m.RecordReceiptIssued(ctx)
	m.RecordReceiptConflict(ctx)
	m.RecordWithdrawalDecision(ctx, "approved")
	m.RecordLiquidation(ctx, "exit", "success", 10)
}

func TestRecordTransactionIsExported(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := New(Config{ServiceName: "test"}, provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordTransaction(ctx, "deposit")
	m.RecordTransaction(ctx, "deposit")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	var found bool
	for _, metric := range rm.ScopeMetrics[0].Metrics {
		if metric.Name != "coopledger_transactions_total" {
			continue
		}
		sum, ok := metric.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, sum.DataPoints, 1)
		assert.Equal(t, int64(2), sum.DataPoints[0].Value)
		found = true
	}
	assert.True(t, found)
}
