package socket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gopherlabs/mintcp/internal/tcp"
)

// Metrics holds the process-wide counters and per-connection gauges a
// Socket updates as connections open, close, move bytes, and tick.
// Construct one with NewMetrics and share it across every Socket in a
// process; a nil *Metrics is valid everywhere a Socket accepts one and
// simply disables instrumentation. The gauges are labeled by connection id
// the way runZeroInc-sockstats' TCPInfoCollector labels live TCP_INFO
// samples per tracked net.Conn, since one process may host many endpoints.
type Metrics struct {
	connectionsOpened prometheus.Counter
	connectionsClosed prometheus.Counter
	bytesSent         prometheus.Counter
	bytesReceived     prometheus.Counter

	sequenceNumbersInFlight *prometheus.GaugeVec
	consecutiveRetransmits  *prometheus.GaugeVec
	currentRTO              *prometheus.GaugeVec
	windowSize              *prometheus.GaugeVec
	reassemblyPendingBytes  *prometheus.GaugeVec
}

// NewMetrics registers the connection counters and per-connection gauges
// against reg and returns a Metrics ready to pass to Connect/ListenAndAccept.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	gauge := func(name, help string) *prometheus.GaugeVec {
		return factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mintcp",
			Name:      name,
			Help:      help,
		}, []string{"conn_id"})
	}
	return &Metrics{
		connectionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mintcp",
			Name:      "connections_opened_total",
			Help:      "Number of TCP connections that completed the handshake.",
		}),
		connectionsClosed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mintcp",
			Name:      "connections_closed_total",
			Help:      "Number of TCP connections torn down, cleanly or via reset.",
		}),
		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mintcp",
			Name:      "bytes_sent_total",
			Help:      "Application bytes accepted into outbound streams.",
		}),
		bytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mintcp",
			Name:      "bytes_received_total",
			Help:      "Application bytes delivered out of inbound streams.",
		}),
		sequenceNumbersInFlight: gauge("sequence_numbers_in_flight", "Sequence numbers sent but not yet acknowledged."),
		consecutiveRetransmits:  gauge("consecutive_retransmissions", "Current run of back-to-back retransmissions without a new ack."),
		currentRTO:              gauge("current_rto_milliseconds", "Sender's current retransmission timeout."),
		windowSize:              gauge("window_size_bytes", "Last window size advertised by the peer."),
		reassemblyPendingBytes:  gauge("reassembly_pending_bytes", "Bytes buffered in the reassembler awaiting in-order delivery."),
	}
}

// observe updates the per-connection gauges from a fresh snapshot, called
// by the Socket's metrics goroutine on its own ticker, at the event loop's
// tick interval.
func (m *Metrics) observe(connID string, snap tcp.Snapshot) {
	m.sequenceNumbersInFlight.WithLabelValues(connID).Set(float64(snap.InFlight))
	m.consecutiveRetransmits.WithLabelValues(connID).Set(float64(snap.ConsecutiveRtx))
	m.currentRTO.WithLabelValues(connID).Set(float64(snap.CurrentRTOMs))
	m.windowSize.WithLabelValues(connID).Set(float64(snap.Window))
	m.reassemblyPendingBytes.WithLabelValues(connID).Set(float64(snap.ReassemblyBytes))
}

// forget removes a closed connection's gauge series so it stops being
// exported, mirroring TCPInfoCollector.Remove.
func (m *Metrics) forget(connID string) {
	m.sequenceNumbersInFlight.DeleteLabelValues(connID)
	m.consecutiveRetransmits.DeleteLabelValues(connID)
	m.currentRTO.DeleteLabelValues(connID)
	m.windowSize.DeleteLabelValues(connID)
	m.reassemblyPendingBytes.DeleteLabelValues(connID)
}
