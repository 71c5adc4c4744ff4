// Package metrics exposes Prometheus counters for the node runtime and the
// master. A nil *Metrics is valid and records nothing, so components can be
// built without a registry in tests.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "titan"

// Metrics holds every collector of one process.
type Metrics struct {
	registry *prometheus.Registry

	activations        *prometheus.CounterVec
	activationsDropped *prometheus.CounterVec
	packetsDropped     *prometheus.CounterVec
	errors             *prometheus.CounterVec
	framesSent         *prometheus.CounterVec
	framesReceived     *prometheus.CounterVec
	retries            *prometheus.CounterVec
	deliveryFailures   *prometheus.CounterVec
	cacheLookups       *prometheus.CounterVec
	tasks              *prometheus.GaugeVec
	links              *prometheus.GaugeVec
}

// New creates the collectors and registers them with a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		activations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scheduler", Name: "activations_total",
			Help: "Task activations executed",
		}, []string{"node"}),
		activationsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scheduler", Name: "activations_dropped_total",
			Help: "Activations dropped because the queue was full",
		}, []string{"node"}),
		packetsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "interconnect", Name: "packets_dropped_total",
			Help: "Packets dropped on a full link",
		}, []string{"node"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "node", Name: "errors_total",
			Help: "Error reports raised, by error code",
		}, []string{"node", "code"}),
		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "radio", Name: "frames_sent_total",
			Help: "Protocol frames transmitted, by message type",
		}, []string{"node", "type"}),
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "radio", Name: "frames_received_total",
			Help: "Protocol frames received, by message type",
		}, []string{"node", "type"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "protocol", Name: "retransmissions_total",
			Help: "Frames retransmitted after a missing acknowledgement",
		}, []string{"policy"}),
		deliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "protocol", Name: "delivery_failures_total",
			Help: "Deliveries abandoned after the last retry",
		}, []string{"policy"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "configcache", Name: "lookups_total",
			Help: "Configuration cache lookups, by result",
		}, []string{"node", "result"}),
		tasks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "registry", Name: "tasks",
			Help: "Configured task instances",
		}, []string{"node"}),
		links: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "interconnect", Name: "links",
			Help: "Configured links",
		}, []string{"node"}),
	}
	m.registry.MustRegister(
		m.activations, m.activationsDropped, m.packetsDropped, m.errors,
		m.framesSent, m.framesReceived, m.retries, m.deliveryFailures,
		m.cacheLookups, m.tasks, m.links,
	)
	return m
}

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func node(id uint16) string { return strconv.Itoa(int(id)) }

func (m *Metrics) Activation(nodeID uint16) {
	if m != nil {
		m.activations.WithLabelValues(node(nodeID)).Inc()
	}
}

func (m *Metrics) ActivationDropped(nodeID uint16) {
	if m != nil {
		m.activationsDropped.WithLabelValues(node(nodeID)).Inc()
	}
}

func (m *Metrics) PacketDropped(nodeID uint16) {
	if m != nil {
		m.packetsDropped.WithLabelValues(node(nodeID)).Inc()
	}
}

func (m *Metrics) Error(nodeID uint16, code string) {
	if m != nil {
		m.errors.WithLabelValues(node(nodeID), code).Inc()
	}
}

func (m *Metrics) FrameSent(nodeID uint16, msgType string) {
	if m != nil {
		m.framesSent.WithLabelValues(node(nodeID), msgType).Inc()
	}
}

func (m *Metrics) FrameReceived(nodeID uint16, msgType string) {
	if m != nil {
		m.framesReceived.WithLabelValues(node(nodeID), msgType).Inc()
	}
}

func (m *Metrics) Retry(policy string) {
	if m != nil {
		m.retries.WithLabelValues(policy).Inc()
	}
}

func (m *Metrics) DeliveryFailed(policy string) {
	if m != nil {
		m.deliveryFailures.WithLabelValues(policy).Inc()
	}
}

func (m *Metrics) CacheLookup(nodeID uint16, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(node(nodeID), result).Inc()
}

func (m *Metrics) Topology(nodeID uint16, tasks, links int) {
	if m != nil {
		m.tasks.WithLabelValues(node(nodeID)).Set(float64(tasks))
		m.links.WithLabelValues(node(nodeID)).Set(float64(links))
	}
}
