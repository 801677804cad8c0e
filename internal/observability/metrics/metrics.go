package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BotMetrics exposes counters/histograms for the conversation engine.
type BotMetrics struct {
	turnsTotal      *prometheus.CounterVec
	turnLatency     *prometheus.HistogramVec
	detectionsTotal *prometheus.CounterVec
	fallbacksTotal  *prometheus.CounterVec
	appointments    *prometheus.CounterVec
	outboundTotal   *prometheus.CounterVec
	catalogReloads  *prometheus.CounterVec
	catalogIntents  prometheus.Gauge
}

func NewBotMetrics(reg prometheus.Registerer) *BotMetrics {
	m := &BotMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadbot",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Inbound messages processed, by outcome",
		}, []string{"outcome"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "leadbot",
			Subsystem: "conversation",
			Name:      "turn_latency_seconds",
			Help:      "Time spent deciding the reply to one message",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		detectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadbot",
			Subsystem: "intent",
			Name:      "detections_total",
			Help:      "Detected intents, by intent and matching method",
		}, []string{"intent", "method"}),
		fallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadbot",
			Subsystem: "conversation",
			Name:      "fallbacks_total",
			Help:      "Unrecognized messages, by escalation level",
		}, []string{"level"}),
		appointments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadbot",
			Subsystem: "appointment",
			Name:      "outcomes_total",
			Help:      "Booking dialogue outcomes",
		}, []string{"outcome"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadbot",
			Subsystem: "whatsapp",
			Name:      "outbound_total",
			Help:      "Outbound WhatsApp sends, by response kind and status",
		}, []string{"kind", "status"}),
		catalogReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadbot",
			Subsystem: "intent",
			Name:      "catalog_reloads_total",
			Help:      "Intent catalog reloads, by status",
		}, []string{"status"}),
		catalogIntents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "leadbot",
			Subsystem: "intent",
			Name:      "catalog_active_intents",
			Help:      "Active intents in the last loaded catalog",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.turnsTotal,
		m.turnLatency,
		m.detectionsTotal,
		m.fallbacksTotal,
		m.appointments,
		m.outboundTotal,
		m.catalogReloads,
		m.catalogIntents,
	)
	return m
}

func (m *BotMetrics) ObserveTurn(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome).Inc()
	m.turnLatency.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *BotMetrics) ObserveDetection(intentName, method string) {
	if m == nil {
		return
	}
	m.detectionsTotal.WithLabelValues(intentName, method).Inc()
}

// ObserveFallback buckets levels above 3 into "3".
func (m *BotMetrics) ObserveFallback(level int) {
	if m == nil {
		return
	}
	if level > 3 {
		level = 3
	}
	m.fallbacksTotal.WithLabelValues(strconv.Itoa(level)).Inc()
}

func (m *BotMetrics) ObserveAppointment(outcome string) {
	if m == nil {
		return
	}
	m.appointments.WithLabelValues(outcome).Inc()
}

func (m *BotMetrics) ObserveSend(kind, status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(kind, status).Inc()
}

// ObserveCatalogReload leaves the active intents gauge untouched on errors.
func (m *BotMetrics) ObserveCatalogReload(status string, intents int) {
	if m == nil {
		return
	}
	m.catalogReloads.WithLabelValues(status).Inc()
	if status == "success" {
		m.catalogIntents.Set(float64(intents))
	}
}
