package observability

import (
	"github.com/Zhima-Mochi/juice-vending/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/juice-vending/internal/observability"
)

type instrument struct {
	key    observability.MetricKey
	help   string
	labels []string
}

var counters = []instrument{
	{observability.MUsecaseRequests, "Total number of use case invocations.", []string{"use_case", "outcome"}},
	{observability.MInputRejections, "Customer inputs rejected and re-prompted.", []string{"prompt", "reason"}},
	{observability.MUnitsSold, "Units sold per product.", []string{"product"}},
	{observability.MCashDeposited, "Cash deposited into the vault.", nil},
	{observability.MHTTPRequests, "Status server requests.", []string{"method", "route", "status"}},
	{observability.MEventsPublished, "Domain events published.", []string{"event", "outcome"}},
}

var histograms = []instrument{
	{observability.MUsecaseDuration, "Duration of use case execution in seconds.", []string{"use_case"}},
	{observability.MHTTPRequestDuration, "Status server request duration in seconds.", []string{"method", "route", "status"}},
}

var gauges = []instrument{
	{observability.MSlotStock, "Units left per product.", []string{"product"}},
	{observability.MVaultBalance, "Cash held by the vault.", nil},
}

type provider struct {
	tracer  observability.Tracer
	logger  observability.Logger
	metrics observability.Metrics
}

type registeredMetrics struct {
	counters   map[observability.MetricKey]observability.Counter
	histograms map[observability.MetricKey]observability.Histogram
	gauges     map[observability.MetricKey]observability.Gauge
}

func (m *registeredMetrics) Counter(name observability.MetricKey) observability.Counter {
	if c, ok := m.counters[name]; ok {
		return c
	}
	return observability.NopCounter()
}

func (m *registeredMetrics) Histogram(name observability.MetricKey) observability.Histogram {
	if h, ok := m.histograms[name]; ok {
		return h
	}
	return observability.NopHistogram()
}

func (m *registeredMetrics) Gauge(name observability.MetricKey) observability.Gauge {
	if g, ok := m.gauges[name]; ok {
		return g
	}
	return observability.NopGauge()
}

// New assembles the application's Observability. Every known instrument is created
// on reg; a nil reg disables metrics.
func New(tracer observability.Tracer, logger observability.Logger, reg prometrics.Registry) observability.Observability {
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	var metrics observability.Metrics = observability.NopMetrics()
	if reg != nil {
		m := &registeredMetrics{
			counters:   make(map[observability.MetricKey]observability.Counter, len(counters)),
			histograms: make(map[observability.MetricKey]observability.Histogram, len(histograms)),
			gauges:     make(map[observability.MetricKey]observability.Gauge, len(gauges)),
		}
		for _, in := range counters {
			m.counters[in.key] = reg.Counter(string(in.key), in.help, in.labels...)
		}
		for _, in := range histograms {
			m.histograms[in.key] = reg.Histogram(string(in.key), in.help, nil, in.labels...)
		}
		for _, in := range gauges {
			m.gauges[in.key] = reg.Gauge(string(in.key), in.help, in.labels...)
		}
		metrics = m
	}

	return &provider{
		tracer:  tracer,
		logger:  logger,
		metrics: metrics,
	}
}

func (p *provider) Tracer() observability.Tracer {
	return p.tracer
}

func (p *provider) Logger() observability.Logger {
	return p.logger
}

func (p *provider) Metrics() observability.Metrics {
	return p.metrics
}
