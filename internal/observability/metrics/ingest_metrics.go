package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config carries the constant labels attached to every metric.
type Config struct {
	ServiceName string
	Environment string
}

type IngestMetrics struct {
	webhookEvents  *prometheus.CounterVec
	ingestDuration *prometheus.HistogramVec
	priceFallback  prometheus.Counter
}

var (
	ingestMetricsOnce sync.Once
	ingestMetrics     *IngestMetrics
)

func Ingest() *IngestMetrics {
	return IngestWithConfig(Config{})
}

func IngestWithConfig(cfg Config) *IngestMetrics {
	ingestMetricsOnce.Do(func() {
		ingestMetrics = newIngestMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return ingestMetrics
}

func ResetIngestMetricsForTest() {
	ingestMetricsOnce = sync.Once{}
	ingestMetrics = nil
}

func newIngestMetrics(registerer prometheus.Registerer, cfg Config) *IngestMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "polarsync"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	webhookEvents := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "polarsync_webhook_events_total",
			Help:        "Total webhook deliveries by ingestion result.",
			ConstLabels: constLabels,
		},
		[]string{"result"}, // processed | duplicate | ignored | rejected | failed
	)

	ingestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "polarsync_webhook_ingest_duration_seconds",
			Help:        "Time spent verifying, persisting, and dispatching one delivery.",
			Buckets:     []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			ConstLabels: constLabels,
		},
		[]string{"event_type"},
	)

	priceFallback := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "polarsync_subscription_price_fallback_total",
			Help:        "Subscriptions stored without a price reference after repair failed.",
			ConstLabels: constLabels,
		},
	)

	registerer.MustRegister(
		webhookEvents,
		ingestDuration,
		priceFallback,
	)

	return &IngestMetrics{
		webhookEvents:  webhookEvents,
		ingestDuration: ingestDuration,
		priceFallback:  priceFallback,
	}
}

func (m *IngestMetrics) IncWebhookEvent(result string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(result).Inc()
}

func (m *IngestMetrics) ObserveIngestDuration(eventType string, elapsed time.Duration) {
	if m == nil {
		return
	}

	seconds := elapsed.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.ingestDuration.WithLabelValues(eventType).Observe(seconds)
}

func (m *IngestMetrics) IncPriceFallback() {
	if m == nil {
		return
	}
	m.priceFallback.Inc()
}
