package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	errorsTotal      *prometheus.CounterVec
	latency          *prometheus.HistogramVec
	lastPrice        *prometheus.GaugeVec
	streamState      *prometheus.GaugeVec
	reconnects       *prometheus.CounterVec
	frames           *prometheus.CounterVec
	decisions        *prometheus.CounterVec
	analyzerFailures *prometheus.CounterVec
	dropped          *prometheus.CounterVec
	queueDepth       *prometheus.GaugeVec
	executions       *prometheus.CounterVec
	orders           *prometheus.CounterVec
	drawdown         prometheus.Gauge
}

// streamStates lists every label value RecordStreamState toggles between.
var streamStates = []string{"DISCONNECTED", "CONNECTING", "CONNECTED", "RECONNECTING", "CLOSED"}

// New creates a recorder registered with the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered with reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ordrebook_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ordrebook_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ordrebook_last_price",
				Help: "Last reference price for a symbol",
			},
			[]string{"symbol"},
		),
		streamState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ordrebook_stream_state",
				Help: "1 for the current connection state of each stream",
			},
			[]string{"stream", "state"},
		),
		reconnects: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ordrebook_stream_reconnects_total",
				Help: "Reconnect attempts per stream",
			},
			[]string{"stream"},
		),
		frames: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ordrebook_stream_frames_total",
				Help: "Frames received per stream and kind",
			},
			[]string{"stream", "kind"},
		),
		decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ordrebook_decisions_total",
				Help: "Aggregated decisions by final action",
			},
			[]string{"symbol", "action"},
		),
		analyzerFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ordrebook_analyzer_failures_total",
				Help: "Analyzer errors replaced by HOLD",
			},
			[]string{"source"},
		),
		dropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ordrebook_queue_dropped_total",
				Help: "Items dropped by a mailbox overflow policy",
			},
			[]string{"queue"},
		),
		queueDepth: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ordrebook_queue_depth",
				Help: "Items waiting in a mailbox",
			},
			[]string{"queue"},
		),
		executions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ordrebook_executions_total",
				Help: "Processed trade signals by outcome",
			},
			[]string{"outcome"},
		),
		orders: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ordrebook_orders_total",
				Help: "Supervised orders by final status",
			},
			[]string{"status"},
		),
		drawdown: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "ordrebook_drawdown_ratio",
				Help: "Latest observed drawdown relative to the baseline balance",
			},
		),
	}
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordStreamState marks state as current for stream and clears the others.
func (r *Recorder) RecordStreamState(stream, state string) {
	for _, s := range streamStates {
		v := 0.0
		if s == state {
			v = 1
		}
		r.streamState.WithLabelValues(stream, s).Set(v)
	}
}

func (r *Recorder) RecordReconnect(stream string) {
	r.reconnects.WithLabelValues(stream).Inc()
}

func (r *Recorder) RecordFrame(stream, kind string) {
	r.frames.WithLabelValues(stream, kind).Inc()
}

func (r *Recorder) RecordDecision(symbol, action string) {
	r.decisions.WithLabelValues(symbol, action).Inc()
}

func (r *Recorder) RecordAnalyzerFailure(source string) {
	r.analyzerFailures.WithLabelValues(source).Inc()
}

func (r *Recorder) RecordDropped(queue string) {
	r.dropped.WithLabelValues(queue).Inc()
}

func (r *Recorder) RecordQueueDepth(queue string, depth int) {
	r.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

func (r *Recorder) RecordExecution(outcome string) {
	r.executions.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordOrder(status string) {
	r.orders.WithLabelValues(status).Inc()
}

func (r *Recorder) RecordDrawdown(ratio float64) {
	r.drawdown.Set(ratio)
}
