package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes ledger-level instruments. A nil *Metrics is a no-op.
type Metrics struct {
	transactions       metric.Int64Counter
	receiptsIssued     metric.Int64Counter
	receiptConflicts   metric.Int64Counter
	withdrawalDecision metric.Int64Counter
	liquidations       metric.Int64Counter
	liquidatedAmount   metric.Float64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "coopledger"
	}
	meter := provider.Meter(name)

	transactions, err := meter.Int64Counter("coopledger_transactions_total")
	if err != nil {
		return nil, err
	}
	receiptsIssued, err := meter.Int64Counter("coopledger_receipts_issued_total")
	if err != nil {
		return nil, err
	}
	receiptConflicts, err := meter.Int64Counter("coopledger_receipt_sequence_conflicts_total")
	if err != nil {
		return nil, err
	}
	withdrawalDecision, err := meter.Int64Counter("coopledger_withdrawal_decisions_total")
	if err != nil {
		return nil, err
	}
	liquidations, err := meter.Int64Counter("coopledger_liquidations_total")
	if err != nil {
		return nil, err
	}
	liquidatedAmount, err := meter.Float64Counter("coopledger_liquidated_amount_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		transactions:       transactions,
		receiptsIssued:     receiptsIssued,
		receiptConflicts:   receiptConflicts,
		withdrawalDecision: withdrawalDecision,
		liquidations:       liquidations,
		liquidatedAmount:   liquidatedAmount,
	}, nil
}

// RecordTransaction counts a committed ledger entry.
func (m *Metrics) RecordTransaction(ctx context.Context, transactionType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("transaction_type", strings.TrimSpace(transactionType)))
	m.transactions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReceiptIssued counts an issued receipt number.
func (m *Metrics) RecordReceiptIssued(ctx context.Context) {
	if m == nil {
		return
	}
	m.receiptsIssued.Add(ctx, 1)
}

// RecordReceiptConflict counts a lost sequence race that was retried.
func (m *Metrics) RecordReceiptConflict(ctx context.Context) {
	if m == nil {
		return
	}
	m.receiptConflicts.Add(ctx, 1)
}

// RecordWithdrawalDecision counts approved, rejected and failed approvals.
func (m *Metrics) RecordWithdrawalDecision(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.withdrawalDecision.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLiquidation counts a per-member liquidation outcome and its payout.
func (m *Metrics) RecordLiquidation(ctx context.Context, liquidationType, outcome string, amount float64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("liquidation_type", strings.TrimSpace(liquidationType)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.liquidations.Add(ctx, 1, metric.WithAttributes(attrs...))
	if amount > 0 {
		m.liquidatedAmount.Add(ctx, amount, metric.WithAttributes(attrs...))
	}
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"transaction_type": {},
	"liquidation_type": {},
	"outcome":          {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
// Member, account and cooperative IDs never become labels.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
