// Package metrics exposes Prometheus collectors for the chat client and relay.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "slotchat"

// Results used as label values.
const (
	ResultOK        = "ok"
	ResultMalformed = "malformed"
	ResultIgnored   = "ignored"
	ResultError     = "error"
	ResultRejected  = "rejected"
)

// Metrics holds every collector the module records.
type Metrics struct {
	connectionState   prometheus.Gauge
	reconnectAttempts prometheus.Counter
	envelopesReceived *prometheus.CounterVec
	sends             *prometheus.CounterVec
	relayClients      prometheus.Gauge
	relayed           prometheus.Counter
	relayDropped      *prometheus.CounterVec
	relayRequests     *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is useful in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Current connection state (0 disconnected, 1 connecting, 2 connected, 3 reconnecting, 4 given up).",
		}),
		reconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Reconnect attempts scheduled after a transport failure.",
		}),
		envelopesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelopes_received_total",
			Help:      "Inbound envelopes by decode result.",
		}, []string{"result"}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_total",
			Help:      "Outbound sends by result.",
		}, []string{"result"}),
		relayClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "clients",
			Help:      "Connected relay clients.",
		}),
		relayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "envelopes_total",
			Help:      "Envelopes re-broadcast by the relay.",
		}),
		relayDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "dropped_total",
			Help:      "Inbound relay frames dropped, by reason.",
		}, []string{"reason"}),
		relayRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "http_request_duration_seconds",
			Help:      "Relay HTTP request latency by route pattern and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.connectionState,
			m.reconnectAttempts,
			m.envelopesReceived,
			m.sends,
			m.relayClients,
			m.relayed,
			m.relayDropped,
			m.relayRequests,
		)
	}
	return m
}

// SetConnectionState records the numeric connection state.
func (m *Metrics) SetConnectionState(state int) {
	if m == nil {
		return
	}
	m.connectionState.Set(float64(state))
}

// IncReconnect counts one scheduled reconnect attempt.
func (m *Metrics) IncReconnect() {
	if m == nil {
		return
	}
	m.reconnectAttempts.Inc()
}

// ObserveEnvelope counts one inbound envelope.
func (m *Metrics) ObserveEnvelope(result string) {
	if m == nil {
		return
	}
	m.envelopesReceived.WithLabelValues(result).Inc()
}

// ObserveSend counts one outbound send.
func (m *Metrics) ObserveSend(result string) {
	if m == nil {
		return
	}
	m.sends.WithLabelValues(result).Inc()
}

// RelayClientAdded increments the relay client gauge.
func (m *Metrics) RelayClientAdded() {
	if m == nil {
		return
	}
	m.relayClients.Inc()
}

// RelayClientRemoved decrements the relay client gauge.
func (m *Metrics) RelayClientRemoved() {
	if m == nil {
		return
	}
	m.relayClients.Dec()
}

// IncRelayed counts one re-broadcast envelope.
func (m *Metrics) IncRelayed() {
	if m == nil {
		return
	}
	m.relayed.Inc()
}

// IncDropped counts one dropped relay frame.
func (m *Metrics) IncDropped(reason string) {
	if m == nil {
		return
	}
	m.relayDropped.WithLabelValues(reason).Inc()
}

// ObserveRequest records one relay HTTP request. route is the matched mux
// pattern so the label set stays bounded.
func (m *Metrics) ObserveRequest(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.relayRequests.WithLabelValues(route, strconv.Itoa(code)).Observe(d.Seconds())
}
