package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the dispatcher and pairing counters. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	FramesReceived  prometheus.Counter
	FramesDropped   *prometheus.CounterVec
	EventsDelivered *prometheus.CounterVec
	FramesSent      prometheus.Counter
	SendFailures    prometheus.Counter
	Pairings        *prometheus.CounterVec
	PairedPeers     prometheus.Gauge
	PairingState    prometheus.Gauge
}

// NewMetrics registers the metrics on reg. Tests pass a fresh prometheus.NewRegistry().
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FramesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total number of frames read from the radio",
		}),
		FramesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Frames discarded by the dispatcher or transport",
		}, []string{"reason"}),
		EventsDelivered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_delivered_total",
			Help:      "Events delivered to a local flag or callback",
		}, []string{"class"}),
		FramesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Total number of frames handed to the radio",
		}),
		SendFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "Transmissions rejected by the radio",
		}),
		Pairings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairing_sessions_total",
			Help:      "Pairing sessions by outcome",
		}, []string{"result"}),
		PairedPeers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "paired_peers",
			Help:      "Number of peers with a stored hardware address",
		}),
		PairingState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pairing_state",
			Help:      "Current pairing state (0 idle, 1 offering, 2 paired, 3 timed out)",
		}),
	}
}

func (m *Metrics) frameReceived() {
	if m != nil {
		m.FramesReceived.Inc()
	}
}

func (m *Metrics) frameDropped(reason string) {
	if m != nil {
		m.FramesDropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) delivered(class Classification) {
	if m != nil {
		m.EventsDelivered.WithLabelValues(class.String()).Inc()
	}
}

func (m *Metrics) sent(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SendFailures.Inc()
		return
	}
	m.FramesSent.Inc()
}

func (m *Metrics) pairing(result string) {
	if m != nil {
		m.Pairings.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) pairingState(s PairingState) {
	if m != nil {
		m.PairingState.Set(float64(s))
	}
}

func (m *Metrics) pairedPeers(n int) {
	if m != nil {
		m.PairedPeers.Set(float64(n))
	}
}
